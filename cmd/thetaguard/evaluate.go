package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"theta-guard/internal/advisory"
	"theta-guard/internal/advisory/events"
	"theta-guard/internal/advisory/slippage"
	"theta-guard/internal/core/model"
	"theta-guard/internal/core/store"
	"theta-guard/internal/journal"
	"theta-guard/internal/metrics"
	"theta-guard/internal/pipeline"
	"theta-guard/internal/replay"
	"theta-guard/internal/source/csvfile"
	"theta-guard/internal/util/timeutil"
)

// evaluateReport evaluate 命令输出
type evaluateReport struct {
	Result   pipeline.WeekResult `json:"pipeline_result"`
	Slippage *slippage.Analysis  `json:"slippage_analysis"`
	Events   events.Details      `json:"macro_events"`
	Advisory advisory.Layers     `json:"advisory"`
}

type evaluateFlags struct {
	input          string
	monday         string
	prices         string
	chain          string
	chains         string
	structure      string
	entryTimeValid bool
	journal        bool
	accountSize    float64
}

func newEvaluateCmd(a *app) *cobra.Command {
	f := &evaluateFlags{}
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "离线评估单周（周度判定、EMA 规则、BWB 构建）",
		Example: `  thetaguard evaluate --input week.json
  thetaguard evaluate --monday 2024-01-08 --prices spx.csv --chain chain.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := f.weekInput()
			if err != nil {
				return err
			}

			m := metrics.New()
			runner, cleanup, err := a.newPipeline(m)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			rep := evaluateReport{
				Result: runner.EvaluateWeek(ctx, in),
				Events: events.Describe(in.Monday),
			}
			if s := rep.Result.Structure; rep.Result.Entry.Allowed() && s != nil && s.Valid {
				net := s.NetPremium
				an := slippage.Analyze(&net, s.MaxLoss, a.cfg.Slippage.Pcts)
				rep.Slippage = &an
			}
			rep.Advisory = advisory.Compute(rep.Result, in.Prices, in.Chain, a.advisoryParams(f.accountSize), a.logger.Named("advisory"))

			if f.journal {
				j, closeJournal, err := a.newJournal(ctx)
				if err != nil {
					return err
				}
				var slip slippage.Analysis
				if rep.Slippage != nil {
					slip = *rep.Slippage
				}
				if err := j.Log(ctx, journal.FromWeek(journal.ModeEvaluate, &rep.Result, slip, rep.Events.Tags)); err != nil {
					a.logger.Warn("journal failed", zap.Error(err))
				}
				closeJournal()
			}
			a.writeTextfile(m)

			if a.styled() {
				_, err := fmt.Fprintln(a.out, renderWeek(rep.Result, rep.Slippage, rep.Events, rep.Advisory))
				return err
			}
			return a.writeJSON(rep)
		},
	}
	cmd.Flags().StringVar(&f.input, "input", "", "周度输入 JSON（monday、prices、chain 等字段）")
	cmd.Flags().StringVar(&f.monday, "monday", "", "周一日期 YYYY-MM-DD")
	cmd.Flags().StringVar(&f.prices, "prices", "", "日线收盘价 CSV（date,close）")
	cmd.Flags().StringVar(&f.chain, "chain", "", "周五到期期权链 JSON 数组")
	cmd.Flags().StringVar(&f.chains, "chains", "", "期权链快照文件（按到期日索引），与 --chain 二选一")
	cmd.Flags().StringVar(&f.structure, "structure", "", "结构类型 PUT_CREDIT / CALL_DEBIT，为空时使用配置")
	cmd.Flags().BoolVar(&f.entryTimeValid, "entry-time-valid", true, "入场时间是否有效")
	cmd.Flags().BoolVar(&f.journal, "journal", false, "将结果写入周记")
	cmd.Flags().Float64Var(&f.accountSize, "account-size", 0, "账户规模（美元），覆盖 advisory.account_size")
	return cmd
}

// weekInput 由命令行参数组装单周输入
func (f *evaluateFlags) weekInput() (pipeline.WeekInput, error) {
	var in pipeline.WeekInput
	if f.input != "" {
		if err := readJSON(f.input, &in); err != nil {
			return in, err
		}
	} else {
		if f.monday == "" || f.prices == "" {
			return in, errors.New("需要 --input，或同时提供 --monday 与 --prices")
		}
		monday, err := timeutil.ParseDate(f.monday)
		if err != nil {
			return in, fmt.Errorf("无效的 --monday: %w", err)
		}
		series, err := csvfile.Load(f.prices)
		if err != nil {
			return in, fmt.Errorf("读取收盘价失败: %w", err)
		}
		// 节假日周一没有收盘价，取之前最近的收盘价，由交易周判定给出阻断原因
		idx := series.IndexOnOrBefore(monday)
		if idx < 0 {
			return in, fmt.Errorf("收盘价序列中没有 %s 及之前的数据", f.monday)
		}

		in = pipeline.WeekInput{
			Monday:         timeutil.FormatDate(monday),
			EntryDay:       pipeline.DefaultEntryDay,
			EntryTimeValid: f.entryTimeValid,
			Prices:         series.Lookback(idx, replay.DefaultLookback),
		}
		switch {
		case f.chain != "":
			if err := readJSON(f.chain, &in.Chain); err != nil {
				return in, err
			}
		case f.chains != "":
			st, err := store.Load(f.chains)
			if err != nil {
				return in, fmt.Errorf("读取期权链快照失败: %w", err)
			}
			in.Chain, _ = st.GetPair(monday)
		}
	}

	if f.structure != "" {
		typ := model.StructureType(f.structure)
		if typ != model.StructurePutCredit && typ != model.StructureCallDebit {
			return in, fmt.Errorf("无效的 --structure: %s", f.structure)
		}
		in.StructureType = typ
	}
	return in, nil
}
