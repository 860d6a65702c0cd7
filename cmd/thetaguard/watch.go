package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"theta-guard/internal/live"
	"theta-guard/internal/output/feed"
)

func newWatchCmd(a *app) *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "订阅结果推送并实时显示（断线自动重连）",
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = "ws://" + a.cfg.Feed.ListenAddr + feed.Path
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sub := feed.NewSubscriber(url, a.logger)
			done := make(chan error, 1)
			go func() { done <- sub.Run(ctx) }()

			for msg := range sub.Messages() {
				if err := a.showMessage(msg); err != nil {
					a.logger.Warn("render feed message failed", zap.Error(err))
				}
			}

			err := <-done
			m := sub.Metrics()
			a.logger.Info("watch stopped",
				zap.Int64("received", m.Received),
				zap.Int64("reconnects", m.Reconnects),
				zap.Int64("decode_errors", m.DecodeErrors),
			)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "推送地址，默认 ws://<feed.listen_addr>/ws")
	return cmd
}

// showMessage week_result 消息按模拟盘报告渲染，其余原样输出
func (a *app) showMessage(msg feed.Message) error {
	if !a.styled() {
		return json.NewEncoder(a.out).Encode(msg)
	}
	if msg.Type == live.FeedMessageType {
		var rep live.Report
		if err := json.Unmarshal(msg.Data, &rep); err != nil {
			return fmt.Errorf("解析推送内容失败: %w", err)
		}
		_, err := fmt.Fprintln(a.out, renderLive(rep))
		return err
	}
	_, err := fmt.Fprintf(a.out, "%s %s\n", msg.Type, string(msg.Data))
	return err
}
