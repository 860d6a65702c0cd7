// Package backtest 把按时间排序的周度结果归约为回测指标。
// 只统计“允许交易且未跳过”的周；回撤按累计盈亏相对历史峰值（初值 0）计算。
package backtest

import (
	"theta-guard/internal/core/model"
	"theta-guard/internal/util/round"
)

// Calculator 回测指标累加器
// 记录必须按时间顺序逐条加入；非并发安全
type Calculator struct {
	// count 计入统计的周数
	count int
	// winCount/lossCount 按结果划分
	winCount  int
	lossCount int
	sumWin    float64
	sumLoss   float64
	sumPnL    float64

	// cumulative 累计盈亏
	cumulative float64
	// peak 累计盈亏历史峰值，初值 0
	peak  float64
	maxDD float64

	// 已知且为正的最大亏损
	riskCount int
	sumRisk   float64
}

// NewCalculator 创建回测累加器
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Add 加入一周记录；未交易或跳过的周直接忽略
func (c *Calculator) Add(r model.WeeklyOutcomeRecord) {
	if !r.Traded() {
		return
	}

	c.count++
	switch r.Outcome {
	case model.OutcomeWin:
		c.winCount++
		c.sumWin += r.PnL
	case model.OutcomeLoss:
		c.lossCount++
		c.sumLoss += r.PnL
	}
	c.sumPnL += r.PnL

	c.cumulative += r.PnL
	if c.cumulative > c.peak {
		c.peak = c.cumulative
	}
	if dd := c.peak - c.cumulative; dd > c.maxDD {
		c.maxDD = dd
	}

	if r.MaxLoss != nil && *r.MaxLoss > 0 {
		c.riskCount++
		c.sumRisk += *r.MaxLoss
	}
}

// Count 返回已计入的交易周数
func (c *Calculator) Count() int {
	return c.count
}

// Metrics 返回当前指标快照，浮点字段保留 4 位小数
func (c *Calculator) Metrics() model.BacktestMetrics {
	if c.count == 0 {
		return model.BacktestMetrics{}
	}
	n := float64(c.count)
	out := model.BacktestMetrics{
		TotalTrades:   c.count,
		Wins:          c.winCount,
		Losses:        c.lossCount,
		WinRate:       float64(c.winCount) / n,
		Expectancy:    c.sumPnL / n,
		CumulativePnL: c.sumPnL,
		MaxDrawdown:   c.maxDD,
	}
	if c.winCount > 0 {
		out.AverageWin = c.sumWin / float64(c.winCount)
	}
	if c.lossCount > 0 {
		out.AverageLoss = c.sumLoss / float64(c.lossCount)
	}
	if c.riskCount > 0 {
		if avgRisk := c.sumRisk / float64(c.riskCount); avgRisk > 0 {
			out.ReturnOnRisk = out.Expectancy / avgRisk
		}
	}

	out.WinRate = round.Round4(out.WinRate)
	out.AverageWin = round.Round4(out.AverageWin)
	out.AverageLoss = round.Round4(out.AverageLoss)
	out.Expectancy = round.Round4(out.Expectancy)
	out.CumulativePnL = round.Round4(out.CumulativePnL)
	out.MaxDrawdown = round.Round4(out.MaxDrawdown)
	out.ReturnOnRisk = round.Round4(out.ReturnOnRisk)
	return out
}

// Aggregate 对一组按时间排序的周度记录计算回测指标
// 空输入、全部跳过或内部异常都返回全零指标
func Aggregate(records []model.WeeklyOutcomeRecord) (m model.BacktestMetrics) {
	defer func() {
		if r := recover(); r != nil {
			m = model.BacktestMetrics{}
		}
	}()

	c := NewCalculator()
	for _, r := range records {
		c.Add(r)
	}
	return c.Metrics()
}
