package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"theta-guard/internal/core/model"
	"theta-guard/internal/journal"
	"theta-guard/internal/live"
	"theta-guard/internal/live/envguard"
	"theta-guard/internal/metrics"
	"theta-guard/internal/output/feed"
	"theta-guard/internal/source"
	"theta-guard/internal/source/tradier"
	"theta-guard/internal/source/yahoo"
)

func newLiveCmd(a *app) *cobra.Command {
	var (
		dotenv         string
		entryTimeValid bool
		serve          bool
		structure      string
		accountSize    float64
	)
	cmd := &cobra.Command{
		Use:   "live",
		Short: "模拟盘：拉取当前周行情并评估（不下单）",
		Long: `在环境校验通过后拉取 SPX 日线与本周五到期期权链，评估本周入场条件，
写入周记、推送结果并更新指标。任何失败都记为 NO_TRADE。`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := envguard.LoadDotEnv(dotenv); err != nil {
				a.logger.Warn("load .env failed", zap.String("path", dotenv), zap.Error(err))
			}
			typ := model.StructureType(structure)
			if structure != "" && typ != model.StructurePutCredit && typ != model.StructureCallDebit {
				return fmt.Errorf("无效的 --structure: %s", structure)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			m := metrics.New()
			runner, cleanup, err := a.newPipeline(m)
			if err != nil {
				return err
			}
			defer cleanup()

			j, closeJournal, err := a.newJournal(ctx)
			if err != nil {
				return err
			}
			defer closeJournal()

			opts := []live.Option{
				live.WithJournal(j),
				live.WithObserver(m),
				live.WithSlippage(a.cfg.Slippage.Pcts),
				live.WithAdvisory(a.advisoryParams(accountSize)),
				live.WithHistoryDays(a.cfg.Tradier.HistoryDays),
				live.WithLogger(a.logger.Named("live")),
			}
			if typ != "" {
				opts = append(opts, live.WithStructureType(typ))
			}

			var serveErr chan error
			if a.cfg.Feed.Enabled {
				hub := feed.NewHub(a.logger.Named("feed"))
				srv, err := feed.Listen(a.cfg.Feed.ListenAddr, hub)
				if err != nil {
					return fmt.Errorf("启动推送服务失败: %w", err)
				}
				srv.Handle("/metrics", m.Handler())
				serveErr = make(chan error, 1)
				go func() { serveErr <- srv.Serve(ctx) }()
				a.logger.Info("feed listening", zap.String("addr", srv.Addr()))
				opts = append(opts, live.WithFeed(hub))
			}

			rep := live.New(runner, a.sourceFactory(), opts...).RunOnce(ctx, entryTimeValid)
			a.writeTextfile(m)

			if a.styled() {
				if _, err := fmt.Fprintln(a.out, renderLive(rep)); err != nil {
					return err
				}
			} else if err := a.writeJSON(rep); err != nil {
				return err
			}

			if serve && serveErr != nil {
				a.logger.Info("serving feed until interrupted")
				<-ctx.Done()
			}
			cancel()
			if serveErr != nil {
				if err := <-serveErr; err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dotenv, "env-file", ".env", "环境变量文件")
	cmd.Flags().BoolVar(&entryTimeValid, "entry-time-valid", true, "入场时间是否有效")
	cmd.Flags().BoolVar(&serve, "serve", false, "运行后保持推送与指标服务，直到收到退出信号")
	cmd.Flags().StringVar(&structure, "structure", "", "结构类型 PUT_CREDIT / CALL_DEBIT，为空时使用配置")
	cmd.Flags().Float64Var(&accountSize, "account-size", 0, "账户规模（美元），覆盖 advisory.account_size")
	return cmd
}

// sourceFactory Tradier 为主、Yahoo 为日线备用；凭据来自环境校验结果
func (a *app) sourceFactory() live.SourceFactory {
	return func(env envguard.Result) (live.Sources, error) {
		client, err := tradier.NewClient(a.tradierConfig(env.Token, env.BaseURL), a.logger.Named("tradier"))
		if err != nil {
			return live.Sources{}, err
		}
		return live.Sources{
			Prices: source.Fallback{client, yahoo.New(yahoo.DefaultSymbol)},
			Chains: client,
		}, nil
	}
}

// newJournal 按配置创建周记存储；Postgres 不可用时仅告警并继续使用其余存储
func (a *app) newJournal(ctx context.Context) (*journal.Journal, func(), error) {
	var (
		sinks   []journal.Sink
		closers []func() error
	)
	jc := a.cfg.Journal
	if jc.JSONLEnabled {
		s, err := journal.NewJSONLSink(jc.Dir, jc.BufferSize)
		if err != nil {
			return nil, nil, fmt.Errorf("创建周记文件失败: %w", err)
		}
		sinks = append(sinks, s)
		closers = append(closers, s.Close)
	}
	if jc.Postgres.Enabled {
		s, err := journal.OpenPostgres(ctx, journal.PostgresConfig{
			DSN:     jc.Postgres.DSN,
			Timeout: jc.Postgres.Timeout(),
		}, a.logger.Named("journal"))
		if err != nil {
			a.logger.Warn("postgres journal unavailable", zap.Error(err))
		} else {
			sinks = append(sinks, s)
			closers = append(closers, s.Close)
		}
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				a.logger.Warn("close journal sink failed", zap.Error(err))
			}
		}
	}
	return journal.New(a.logger.Named("journal"), sinks...), closeAll, nil
}
