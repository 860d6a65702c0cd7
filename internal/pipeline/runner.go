// Package pipeline 按固定顺序串联周度评估：
// 交易周判定 → EMA 指标 → 入场规则 →（仅允许交易时）BWB 构建。
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"theta-guard/internal/core/holiday"
	"theta-guard/internal/core/indicator"
	"theta-guard/internal/core/model"
	"theta-guard/internal/core/signal"
	"theta-guard/internal/core/structure"
	"theta-guard/internal/stats/backtest"
	"theta-guard/internal/util/timeutil"
)

// DefaultEntryDay 默认入场日
const DefaultEntryDay = "Monday"

// Params 流水线参数（显式传入，无全局常量）
type Params struct {
	Indicator indicator.Params
	Structure structure.Params
	// DefaultStructure 输入未指定结构类型时使用
	DefaultStructure model.StructureType
}

// DefaultParams 返回默认参数
func DefaultParams() Params {
	return Params{
		Indicator:        indicator.DefaultParams(),
		Structure:        structure.DefaultParams(),
		DefaultStructure: model.StructurePutCredit,
	}
}

// WeekInput 单周评估输入（数据已由调用方获取）
type WeekInput struct {
	// Monday 周一日期 YYYY-MM-DD
	Monday string `json:"monday"`
	// EntryDay 入场日，为空时取 Monday
	EntryDay string `json:"entry_day,omitempty"`
	// EntryTimeValid 入场时间是否有效
	EntryTimeValid bool `json:"entry_time_valid"`
	// Prices 收盘价序列，旧到新
	Prices []float64 `json:"prices"`
	// Chain 周五到期的期权链快照
	Chain []model.OptionRecord `json:"chain"`
	// StructureType 结构类型，为空时使用默认值
	StructureType model.StructureType `json:"structure_type,omitempty"`
}

// WeekResult 单周评估结果
type WeekResult struct {
	Monday    string                  `json:"monday"`
	Week      string                  `json:"week"`
	Holiday   model.TradingWeekResult `json:"holiday"`
	Indicator model.IndicatorState    `json:"indicator"`
	Entry     model.EntryDecision     `json:"entry"`
	// Structure 仅在允许交易时构建，否则为 nil
	Structure *model.BWBStructure `json:"structure"`
	Duration  time.Duration       `json:"-"`
}

// Recorder 评估结果观察者（如指标统计），不得影响结果本身
type Recorder interface {
	ObserveWeek(res WeekResult)
}

// Runner 周度评估执行器
// 无共享可变状态，可并发评估不同的周
type Runner struct {
	gate     *holiday.Gate
	engine   *signal.Engine
	params   Params
	recorder Recorder
	logger   *zap.Logger
}

// Option Runner 选项
type Option func(*Runner)

// WithRecorder 设置结果观察者
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner 创建执行器
func NewRunner(gate *holiday.Gate, params Params, opts ...Option) *Runner {
	r := &Runner{
		gate:   gate,
		params: params,
		engine: signal.NewEngine(params.Indicator.ShortPeriod, params.Indicator.LongPeriod),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.gate == nil {
		r.gate = holiday.NewGate(nil, 0, r.logger)
	}
	return r
}

// EvaluateWeek 评估单周
// 各阶段均有类型化的安全默认值，不返回错误
func (r *Runner) EvaluateWeek(ctx context.Context, in WeekInput) (res WeekResult) {
	start := time.Now()
	res.Monday = in.Monday
	if d, err := timeutil.ParseDate(in.Monday); err == nil {
		res.Week = timeutil.ISOWeek(d)
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("week evaluation panic", zap.Any("panic", p), zap.String("monday", in.Monday))
			res.Entry = model.EntryDecision{
				Decision:       model.DecisionNoTrade,
				HardBlocks:     []string{signal.TagEvaluationError},
				SignalFailures: []string{},
				Reasons:        []string{"Unexpected error during evaluation. Defaulting to NO TRADE."},
			}
			res.Structure = nil
		}
		res.Duration = time.Since(start)
		if r.recorder != nil {
			r.recorder.ObserveWeek(res)
		}
	}()

	res.Holiday = r.gate.Check(ctx, in.Monday)
	res.Indicator = indicator.ComputeState(in.Prices, r.params.Indicator)

	entryDay := in.EntryDay
	if entryDay == "" {
		entryDay = DefaultEntryDay
	}
	entryCtx := model.EntryContext{EntryDay: entryDay, EntryTimeValid: in.EntryTimeValid}
	res.Entry = r.engine.Evaluate(&res.Holiday, &res.Indicator, &entryCtx)

	if res.Entry.Allowed() {
		typ := in.StructureType
		if typ == "" {
			typ = r.params.DefaultStructure
		}
		s := structure.Build(in.Chain, typ, r.params.Structure)
		res.Structure = &s
	}

	r.logger.Info("week evaluated",
		zap.String("monday", in.Monday),
		zap.String("decision", string(res.Entry.Decision)),
		zap.Strings("hard_blocks", res.Entry.HardBlocks),
		zap.Strings("signal_failures", res.Entry.SignalFailures),
		zap.Bool("structure_valid", res.Structure != nil && res.Structure.Valid),
	)
	return res
}

// AggregateBacktest 计算回测指标
func AggregateBacktest(records []model.WeeklyOutcomeRecord) model.BacktestMetrics {
	return backtest.Aggregate(records)
}
