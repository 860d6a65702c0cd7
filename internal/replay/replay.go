// Package replay 在历史日线与期权链快照上逐周回放完整流水线，
// 以到期结算价计算真实盈亏并汇总回测指标。
package replay

import (
	"context"

	"go.uber.org/zap"

	"theta-guard/internal/advisory/events"
	"theta-guard/internal/advisory/slippage"
	"theta-guard/internal/core/model"
	"theta-guard/internal/core/paper"
	"theta-guard/internal/core/store"
	"theta-guard/internal/journal"
	"theta-guard/internal/pipeline"
	"theta-guard/internal/source/csvfile"
	"theta-guard/internal/util/timeutil"
)

// DefaultLookback 每周评估使用的收盘价行数（含周一当天）
const DefaultLookback = 15

// WeekRecord 单周回放记录
type WeekRecord struct {
	model.WeeklyOutcomeRecord
	Monday string `json:"monday"`
	// StructureType 仅在允许交易时填写
	StructureType model.StructureType `json:"structure_type,omitempty"`
	// Reason 决策或跳过的说明
	Reason string `json:"reason"`
}

// Report 回放结果
type Report struct {
	Records []WeekRecord          `json:"weekly_records"`
	Metrics model.BacktestMetrics `json:"metrics"`
}

// Outcomes 返回回测输入记录
func (r Report) Outcomes() []model.WeeklyOutcomeRecord {
	out := make([]model.WeeklyOutcomeRecord, 0, len(r.Records))
	for _, rec := range r.Records {
		out = append(out, rec.WeeklyOutcomeRecord)
	}
	return out
}

// Replayer 历史回放器
type Replayer struct {
	runner   *pipeline.Runner
	chains   *store.Store
	lookback int
	journal  *journal.Journal
	pcts     []float64
	logger   *zap.Logger
}

// Option 回放选项
type Option func(*Replayer)

// WithLookback 设置回看行数
func WithLookback(n int) Option {
	return func(r *Replayer) {
		if n > 0 {
			r.lookback = n
		}
	}
}

// WithJournal 每周评估结果以 REPLAY 模式写入周记
// pcts 为空时使用默认滑点情景
func WithJournal(j *journal.Journal, pcts []float64) Option {
	return func(r *Replayer) {
		r.journal = j
		if len(pcts) > 0 {
			r.pcts = pcts
		}
	}
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(r *Replayer) {
		if l != nil {
			r.logger = l
		}
	}
}

// New 创建回放器
// chains 可为 nil：此时所有允许交易的周均因缺少期权链而记为 SKIPPED
func New(runner *pipeline.Runner, chains *store.Store, opts ...Option) *Replayer {
	if chains == nil {
		chains = store.New()
	}
	r := &Replayer{
		runner:   runner,
		chains:   chains,
		lookback: DefaultLookback,
		pcts:     slippage.DefaultPcts,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run 按时间顺序回放序列中出现的每个周一
// ctx 取消时返回已完成部分的结果与 ctx 错误
func (r *Replayer) Run(ctx context.Context, series csvfile.Series) (Report, error) {
	report := Report{Records: []WeekRecord{}}
	for _, i := range series.Mondays() {
		if err := ctx.Err(); err != nil {
			report.Metrics = pipeline.AggregateBacktest(report.Outcomes())
			return report, err
		}
		report.Records = append(report.Records, r.week(ctx, series, i))
	}
	report.Metrics = pipeline.AggregateBacktest(report.Outcomes())
	r.logger.Info("replay finished",
		zap.Int("weeks", len(report.Records)),
		zap.Int("trades", report.Metrics.TotalTrades),
		zap.Float64("cumulative_pnl", report.Metrics.CumulativePnL),
	)
	return report, nil
}

func (r *Replayer) week(ctx context.Context, series csvfile.Series, i int) WeekRecord {
	monday := series[i].Date
	entry, settlement := r.chains.GetPair(monday)

	res := r.runner.EvaluateWeek(ctx, pipeline.WeekInput{
		Monday:         timeutil.FormatDate(monday),
		EntryDay:       pipeline.DefaultEntryDay,
		EntryTimeValid: true,
		Prices:         series.Lookback(i, r.lookback),
		Chain:          entry,
	})
	r.record(ctx, &res)

	rec := WeekRecord{
		WeeklyOutcomeRecord: model.WeeklyOutcomeRecord{
			Week:     res.Week,
			Decision: res.Entry.Decision,
			Outcome:  model.OutcomeSkipped,
		},
		Monday: res.Monday,
		Reason: res.Entry.Summary(),
	}
	if !res.Entry.Allowed() {
		return rec
	}
	if res.Structure != nil {
		rec.StructureType = res.Structure.Type
	}

	switch {
	case len(entry) == 0:
		rec.Reason = "No entry chain snapshot for this week."
	case len(settlement) == 0:
		rec.Reason = "No settlement snapshot for this week."
	case res.Structure == nil || !res.Structure.Valid:
		if res.Structure != nil {
			rec.Reason = res.Structure.Reason
		}
	default:
		rec.MaxLoss = res.Structure.MaxLoss
		s := paper.Settle(*res.Structure, settlement)
		rec.Outcome = s.Outcome
		rec.PnL = s.PnL
		rec.Reason = s.Reason
	}
	return rec
}

// record 写周记；失败只记日志，不影响回放
func (r *Replayer) record(ctx context.Context, res *pipeline.WeekResult) {
	if r.journal == nil {
		return
	}
	var slip slippage.Analysis
	if s := res.Structure; res.Entry.Allowed() && s != nil && s.Valid {
		net := s.NetPremium
		slip = slippage.Analyze(&net, s.MaxLoss, r.pcts)
	}
	rec := journal.FromWeek(journal.ModeReplay, res, slip, events.Tags(res.Monday))
	if err := r.journal.Log(ctx, rec); err != nil {
		r.logger.Warn("replay journal failed", zap.String("monday", res.Monday), zap.Error(err))
	}
}
