// Package live 以模拟盘（PAPER）模式运行本周评估：只读行情，绝不下单。
// 流程：环境校验 → 本周周一 → 拉取日线与周五期权链 → 流水线 → 滑点、参考信息与宏观事件 → 周记 → 推送。
package live

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"theta-guard/internal/advisory"
	"theta-guard/internal/advisory/events"
	"theta-guard/internal/advisory/slippage"
	"theta-guard/internal/core/model"
	"theta-guard/internal/journal"
	"theta-guard/internal/live/envguard"
	"theta-guard/internal/pipeline"
	"theta-guard/internal/source"
	"theta-guard/internal/util/timeutil"
)

// 阻断标签
const (
	TagEnvGuardFailed = "env_guard_failed"
	TagDataFetchError = "data_fetch_error"
)

// DefaultHistoryDays 拉取日线的自然日窗口
const DefaultHistoryDays = 45

// FeedMessageType 推送消息类型
const FeedMessageType = "week_result"

// Sources 行情来源
type Sources struct {
	Prices source.PriceSource
	Chains source.ChainSource
}

// SourceFactory 在环境校验通过后创建行情来源（凭据来自校验结果）
type SourceFactory func(env envguard.Result) (Sources, error)

// Broadcaster 结果推送（feed.Hub）
type Broadcaster interface {
	Broadcast(msgType string, v any) error
}

// Observer 运行指标（metrics.Metrics）
type Observer interface {
	pipeline.Recorder
	CollaboratorError(component string)
}

// Report 一次模拟盘运行的完整结果
type Report struct {
	Timestamp time.Time           `json:"timestamp"`
	Mode      journal.Mode        `json:"mode"`
	RunID     string              `json:"run_id,omitempty"`
	Env       envguard.Result     `json:"env_validation"`
	Result    pipeline.WeekResult `json:"pipeline_result"`
	Slippage  *slippage.Analysis  `json:"slippage_analysis"`
	Events    events.Details      `json:"macro_events"`
	Advisory  advisory.Layers     `json:"advisory"`
	Journaled bool                `json:"journaled"`
}

// Runner 模拟盘执行器
type Runner struct {
	pipeline      *pipeline.Runner
	newSources    SourceFactory
	getenv        func(string) string
	journal       *journal.Journal
	feed          Broadcaster
	observer      Observer
	slippagePcts  []float64
	advisory      advisory.Params
	historyDays   int
	structureType model.StructureType
	now           func() time.Time
	logger        *zap.Logger
}

// Option Runner 选项
type Option func(*Runner)

// WithJournal 设置周记
func WithJournal(j *journal.Journal) Option { return func(r *Runner) { r.journal = j } }

// WithFeed 设置推送
func WithFeed(b Broadcaster) Option { return func(r *Runner) { r.feed = b } }

// WithObserver 设置指标；流水线内的评估由 pipeline.WithRecorder 统计，这里只统计被提前阻断的周
func WithObserver(o Observer) Option { return func(r *Runner) { r.observer = o } }

// WithEnv 替换环境变量读取（测试或 .env 解析结果）
func WithEnv(getenv func(string) string) Option { return func(r *Runner) { r.getenv = getenv } }

// WithClock 替换时钟
func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

// WithSlippage 设置滑点情景
func WithSlippage(pcts []float64) Option { return func(r *Runner) { r.slippagePcts = pcts } }

// WithAdvisory 设置仓位建议等参考信息的输入
func WithAdvisory(p advisory.Params) Option { return func(r *Runner) { r.advisory = p } }

// WithHistoryDays 设置日线窗口
func WithHistoryDays(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.historyDays = n
		}
	}
}

// WithStructureType 设置结构类型
func WithStructureType(t model.StructureType) Option { return func(r *Runner) { r.structureType = t } }

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New 创建执行器
func New(p *pipeline.Runner, newSources SourceFactory, opts ...Option) *Runner {
	r := &Runner{
		pipeline:     p,
		newSources:   newSources,
		slippagePcts: slippage.DefaultPcts,
		historyDays:  DefaultHistoryDays,
		now:          time.Now,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunOnce 评估当前周；所有失败都落为 NO_TRADE，并照常记周记与推送
func (r *Runner) RunOnce(ctx context.Context, entryTimeValid bool) (rep Report) {
	now := r.now().UTC()
	monday := timeutil.MondayOf(now)
	rep = Report{Timestamp: now, Mode: journal.ModePaper}
	if r.journal != nil {
		rep.RunID = r.journal.RunID()
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("paper run panic", zap.Any("panic", p))
			rep.Result = r.blocked(monday, TagDataFetchError, "Unexpected error in paper pipeline.")
			rep.Slippage = nil
			rep.Advisory = advisory.Layers{}
		}
		rep.Events = events.Describe(timeutil.FormatDate(monday))
		r.publish(ctx, &rep)
	}()

	rep.Env = envguard.Validate(r.getenv)
	if !rep.Env.OK {
		rep.Result = r.blocked(monday, TagEnvGuardFailed,
			fmt.Sprintf("Environment validation failed: %s", rep.Env.Reason))
		return rep
	}

	srcs, err := r.newSources(rep.Env)
	if err != nil {
		r.logger.Warn("create market data sources failed", zap.Error(err))
		rep.Result = r.blocked(monday, TagDataFetchError, "Failed to create market data client.")
		return rep
	}

	prices, err := srcs.Prices.DailyCloses(ctx, now, r.historyDays)
	if err != nil || len(prices) == 0 {
		r.logger.Warn("fetch daily closes failed", zap.Error(err))
		r.collaboratorError("prices")
		rep.Result = r.blocked(monday, TagDataFetchError, "Failed to fetch SPX daily closes.")
		return rep
	}

	friday := timeutil.FridayOf(monday)
	chain, err := srcs.Chains.Chain(ctx, friday)
	if err != nil {
		r.logger.Warn("fetch option chain failed", zap.Error(err), zap.String("expiration", timeutil.FormatDate(friday)))
		r.collaboratorError("chain")
		rep.Result = r.blocked(monday, TagDataFetchError, "Failed to fetch SPX option chain.")
		return rep
	}

	rep.Result = r.pipeline.EvaluateWeek(ctx, pipeline.WeekInput{
		Monday:         timeutil.FormatDate(monday),
		EntryDay:       pipeline.DefaultEntryDay,
		EntryTimeValid: entryTimeValid,
		Prices:         prices,
		Chain:          chain,
		StructureType:  r.structureType,
	})

	// 滑点分析仅在允许交易且结构有效时计算，不影响决策
	if s := rep.Result.Structure; rep.Result.Entry.Allowed() && s != nil && s.Valid {
		net := s.NetPremium
		a := slippage.Analyze(&net, s.MaxLoss, r.slippagePcts)
		rep.Slippage = &a
	}
	rep.Advisory = advisory.Compute(rep.Result, prices, chain, r.advisory, r.logger)
	return rep
}

// blocked 构造未进入流水线的阻断结果，并计入指标
func (r *Runner) blocked(monday time.Time, tag, reason string) pipeline.WeekResult {
	res := pipeline.WeekResult{
		Monday: timeutil.FormatDate(monday),
		Week:   timeutil.ISOWeek(monday),
		Holiday: model.TradingWeekResult{
			Reason: "Not evaluated.",
		},
		Indicator: model.IndicatorState{
			Slope:  model.SlopeNegative,
			Reason: "Not evaluated.",
		},
		Entry: model.EntryDecision{
			Decision:       model.DecisionNoTrade,
			HardBlocks:     []string{tag},
			SignalFailures: []string{},
			Reasons:        []string{reason},
		},
	}
	if r.observer != nil {
		r.observer.ObserveWeek(res)
	}
	return res
}

// publish 写周记并推送；失败只记录，不改变结果
func (r *Runner) publish(ctx context.Context, rep *Report) {
	var slip slippage.Analysis
	if rep.Slippage != nil {
		slip = *rep.Slippage
	}

	if r.journal != nil {
		rec := journal.FromWeek(rep.Mode, &rep.Result, slip, rep.Events.Tags)
		rec.Timestamp = rep.Timestamp
		if err := r.journal.Log(ctx, rec); err != nil {
			r.collaboratorError("journal")
		} else {
			rep.Journaled = true
		}
	}

	if r.feed != nil {
		if err := r.feed.Broadcast(FeedMessageType, rep); err != nil {
			r.logger.Warn("feed broadcast failed", zap.Error(err))
			r.collaboratorError("feed")
		}
	}

	r.logger.Info("paper run finished",
		zap.String("week", rep.Result.Week),
		zap.String("decision", string(rep.Result.Entry.Decision)),
		zap.String("summary", rep.Result.Entry.Summary()),
		zap.Strings("macro_events", rep.Events.Tags),
		zap.Bool("journaled", rep.Journaled),
	)
}

func (r *Runner) collaboratorError(component string) {
	if r.observer != nil {
		r.observer.CollaboratorError(component)
	}
}
