// Package metrics 以 Prometheus 格式暴露周度评估的运行指标。
// 指标只做观测，不参与任何决策。
package metrics

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"theta-guard/internal/core/model"
	"theta-guard/internal/pipeline"
)

const namespace = "thetaguard"

// Metrics 指标集合，使用独立 Registry 避免污染全局默认注册表
type Metrics struct {
	reg *prometheus.Registry

	weeks          *prometheus.CounterVec
	hardBlocks     *prometheus.CounterVec
	signalFailures *prometheus.CounterVec
	structures     *prometheus.CounterVec
	evalDuration   prometheus.Histogram
	netPremium     prometheus.Gauge
	maxLoss        prometheus.Gauge
	errors         *prometheus.CounterVec
	backtest       *prometheus.GaugeVec
}

// New 创建并注册全部指标
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		weeks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weeks_evaluated_total",
			Help:      "Weeks evaluated, by entry decision.",
		}, []string{"decision"}),
		hardBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hard_blocks_total",
			Help:      "Hard blocks triggered, by tag.",
		}, []string{"tag"}),
		signalFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signal_failures_total",
			Help:      "Signal conditions not met, by tag.",
		}, []string{"tag"}),
		structures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "structures_built_total",
			Help:      "Broken-wing butterfly build attempts, by type and validity.",
		}, []string{"type", "valid"}),
		evalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "week_evaluation_seconds",
			Help:      "Duration of one weekly pipeline evaluation.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		netPremium: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_net_premium",
			Help:      "Net premium of the most recent valid structure.",
		}),
		maxLoss: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_max_loss",
			Help:      "Max loss of the most recent valid structure.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_errors_total",
			Help:      "Failures at collaborator boundaries, by component.",
		}, []string{"component"}),
		backtest: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backtest",
			Help:      "Latest backtest aggregate, by metric.",
		}, []string{"metric"}),
	}
	m.reg.MustRegister(
		m.weeks, m.hardBlocks, m.signalFailures, m.structures, m.evalDuration,
		m.netPremium, m.maxLoss, m.errors, m.backtest,
	)
	return m
}

// ObserveWeek 实现 pipeline.Recorder
func (m *Metrics) ObserveWeek(res pipeline.WeekResult) {
	m.weeks.WithLabelValues(string(res.Entry.Decision)).Inc()
	for _, tag := range res.Entry.HardBlocks {
		m.hardBlocks.WithLabelValues(tag).Inc()
	}
	for _, tag := range res.Entry.SignalFailures {
		m.signalFailures.WithLabelValues(tag).Inc()
	}
	m.evalDuration.Observe(res.Duration.Seconds())

	if s := res.Structure; s != nil {
		m.structures.WithLabelValues(string(s.Type), fmt.Sprint(s.Valid)).Inc()
		if s.Valid {
			m.netPremium.Set(s.NetPremium)
			if s.MaxLoss != nil {
				m.maxLoss.Set(*s.MaxLoss)
			}
		}
	}
}

// ObserveBacktest 记录最近一次回测汇总
func (m *Metrics) ObserveBacktest(b model.BacktestMetrics) {
	m.backtest.WithLabelValues("total_trades").Set(float64(b.TotalTrades))
	m.backtest.WithLabelValues("win_rate").Set(b.WinRate)
	m.backtest.WithLabelValues("expectancy").Set(b.Expectancy)
	m.backtest.WithLabelValues("cumulative_pnl").Set(b.CumulativePnL)
	m.backtest.WithLabelValues("max_drawdown").Set(b.MaxDrawdown)
	m.backtest.WithLabelValues("return_on_risk").Set(b.ReturnOnRisk)
}

// CollaboratorError 记录外部依赖失败，如 journal、tradier、feed
func (m *Metrics) CollaboratorError(component string) {
	m.errors.WithLabelValues(component).Inc()
}

// Registry 返回底层注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// WriteTextfile 写出 node_exporter textfile collector 格式的文件
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建指标目录失败: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("写出指标文件失败: %w", err)
	}
	return nil
}
