package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"theta-guard/internal/core/store"
	"theta-guard/internal/metrics"
	"theta-guard/internal/replay"
	"theta-guard/internal/source/csvfile"
)

func newReplayCmd(a *app) *cobra.Command {
	var (
		pricesPath string
		chainsPath string
		lookback   int
		record     bool
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "在历史日线与期权链快照上逐周回放并结算",
		Long: `在历史日线与期权链快照上逐周回放：每个周一评估入场，周五按结算价计算盈亏。

盈亏只按各腿的入场价与结算价计算（卖出 (入场-结算)×手数，买入 (结算-入场)×手数），
入场权利金已包含在各腿价格中，不再额外加一次净权利金。在结算时把净权利金再计入一次的
算法得到的 pnl 与本命令相差一个净权利金，胜率、期望与累计盈亏等回测指标也不能直接比较。`,
		Example: `  thetaguard replay --prices spx.csv --chains chains.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			series, err := csvfile.Load(pricesPath)
			if err != nil {
				return fmt.Errorf("读取收盘价失败: %w", err)
			}
			var chains *store.Store
			if chainsPath != "" {
				if chains, err = store.Load(chainsPath); err != nil {
					return fmt.Errorf("读取期权链快照失败: %w", err)
				}
			}

			m := metrics.New()
			runner, cleanup, err := a.newPipeline(m)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			opts := []replay.Option{
				replay.WithLookback(lookback),
				replay.WithLogger(a.logger.Named("replay")),
			}
			if record {
				j, closeJournal, err := a.newJournal(ctx)
				if err != nil {
					return err
				}
				defer closeJournal()
				opts = append(opts, replay.WithJournal(j, a.cfg.Slippage.Pcts))
			}

			report, err := replay.New(runner, chains, opts...).Run(ctx, series)
			// 中断时仍输出已完成部分
			if err != nil && !errors.Is(err, ctx.Err()) {
				return err
			}
			m.ObserveBacktest(report.Metrics)
			a.writeTextfile(m)

			if a.styled() {
				if _, werr := fmt.Fprintln(a.out, renderReplay(report)); werr != nil {
					return werr
				}
			} else if werr := a.writeJSON(report); werr != nil {
				return werr
			}
			return err
		},
	}
	cmd.Flags().StringVar(&pricesPath, "prices", "", "日线收盘价 CSV（date,close）")
	cmd.Flags().StringVar(&chainsPath, "chains", "", "期权链快照 JSON（按到期日索引，含 entry 与 settlement）")
	cmd.Flags().IntVar(&lookback, "lookback", replay.DefaultLookback, "每周使用的收盘价行数（含周一）")
	cmd.Flags().BoolVar(&record, "journal", false, "将每周结果写入周记")
	_ = cmd.MarkFlagRequired("prices")
	return cmd
}
