package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"theta-guard/internal/advisory"
	"theta-guard/internal/advisory/events"
	"theta-guard/internal/advisory/slippage"
	"theta-guard/internal/core/model"
	"theta-guard/internal/live"
	"theta-guard/internal/pipeline"
	"theta-guard/internal/replay"
)

// 终端样式
var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3B82F6")).
		Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280")).
		Width(18)

	allowedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#10B981")).
		Bold(true)

	blockedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#EF4444")).
		Bold(true)

	warnStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#F59E0B"))

	mutedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))
)

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value)
}

func cell(width int, s string) string {
	return lipgloss.NewStyle().Width(width).Render(s)
}

func decisionText(d model.Decision) string {
	if d == model.DecisionTradeAllowed {
		return allowedStyle.Render(string(d))
	}
	return blockedStyle.Render(string(d))
}

func outcomeText(o model.Outcome) string {
	switch o {
	case model.OutcomeWin:
		return allowedStyle.Render(string(o))
	case model.OutcomeLoss:
		return blockedStyle.Render(string(o))
	default:
		return mutedStyle.Render(string(o))
	}
}

func num(v *float64) string {
	if v == nil {
		return mutedStyle.Render("n/a")
	}
	return fmt.Sprintf("%.2f", *v)
}

func joinOrNone(tags []string) string {
	if len(tags) == 0 {
		return mutedStyle.Render("none")
	}
	return strings.Join(tags, ", ")
}

// renderWeek 单周评估结果面板
func renderWeek(res pipeline.WeekResult, slip *slippage.Analysis, ev events.Details, adv advisory.Layers) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Week %s  (Monday %s)", res.Week, res.Monday)))
	b.WriteString("\n")

	lines := []string{
		row("Decision", decisionText(res.Entry.Decision)),
		row("Trading week", res.Holiday.Reason),
		row("EMA short/long", num(res.Indicator.ShortValue)+" / "+num(res.Indicator.LongValue)),
		row("Slope", string(res.Indicator.Slope)),
		row("Hard blocks", joinOrNone(res.Entry.HardBlocks)),
		row("Signal failures", joinOrNone(res.Entry.SignalFailures)),
		row("Macro events", joinOrNone(ev.Tags)),
	}
	for _, r := range res.Entry.Reasons {
		lines = append(lines, mutedStyle.Render("  - "+r))
	}
	b.WriteString(panelStyle.Render(strings.Join(lines, "\n")))

	if s := res.Structure; s != nil {
		b.WriteString("\n")
		b.WriteString(renderStructure(*s))
	}
	if slip != nil && slip.Valid {
		b.WriteString("\n")
		b.WriteString(renderSlippage(*slip))
	}
	if !adv.Empty() {
		b.WriteString("\n")
		b.WriteString(renderAdvisory(adv))
	}
	return b.String()
}

func renderStructure(s model.BWBStructure) string {
	lines := []string{row("Structure", string(s.Type))}
	if !s.Valid {
		lines = append(lines, row("Status", warnStyle.Render("invalid")), mutedStyle.Render(s.Reason))
		return panelStyle.Render(strings.Join(lines, "\n"))
	}
	for _, l := range s.Legs {
		lines = append(lines, row(fmt.Sprintf("%s %d", l.Side, l.Quantity),
			fmt.Sprintf("%s %.0f @ %.2f", l.Kind, l.Strike, l.Price)))
	}
	lines = append(lines,
		row("Net premium", fmt.Sprintf("%.2f", s.NetPremium)),
		row("Max loss", num(s.MaxLoss)),
		mutedStyle.Render(s.Reason),
	)
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func renderSlippage(a slippage.Analysis) string {
	lines := []string{titleStyle.Render("Slippage")}
	for _, k := range a.Order {
		r := a.Scenarios[k]
		lines = append(lines, row(k, fmt.Sprintf("credit %s  max loss %s", num(r.CreditAdjusted), num(r.MaxLossAdjusted))))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

// renderAdvisory 参考信息面板，仅在允许交易时出现
func renderAdvisory(adv advisory.Layers) string {
	lines := []string{titleStyle.Render("Advisory")}
	if c := adv.Confidence; c != nil {
		v := mutedStyle.Render("n/a")
		if c.Valid {
			v = fmt.Sprintf("%.1f / 10  (grade %s)", c.Score, c.Grade)
		}
		lines = append(lines, row("Confidence", v))
		for _, r := range c.Reasons {
			lines = append(lines, mutedStyle.Render("  - "+r))
		}
	}
	if q := adv.Quality; q != nil {
		lines = append(lines, row("Execution", statusText(string(q.Status))))
		for _, c := range q.Checks {
			if c.Status != "PASS" {
				lines = append(lines, mutedStyle.Render("  - "+c.Detail))
			}
		}
	}
	if g := adv.Gamma; g != nil {
		lines = append(lines, row("Gamma", statusText(string(g.Level))), mutedStyle.Render("  "+g.Detail))
	}
	if s := adv.Sizing; s != nil {
		v := mutedStyle.Render(s.Detail)
		if s.Valid {
			v = fmt.Sprintf("%d contract(s)  budget $%s  used $%s", *s.Contracts, num(s.RiskBudget), num(s.RiskUsed))
		}
		lines = append(lines, row("Position size", v))
		if s.Valid && s.ForwardTestNote != "" {
			lines = append(lines, warnStyle.Render("  "+s.ForwardTestNote))
		}
		if m := s.Risk; m != nil && m.Valid {
			lines = append(lines, row("Reward/risk", num(m.RewardToRisk)), row("Account risk %", num(m.AccountRiskPct)))
		}
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

// statusText PASS/NORMAL 绿色，WARN/ELEVATED 黄色，FAIL/HIGH 红色
func statusText(s string) string {
	switch s {
	case "PASS", "NORMAL":
		return allowedStyle.Render(s)
	case "WARN", "ELEVATED":
		return warnStyle.Render(s)
	case "FAIL", "HIGH":
		return blockedStyle.Render(s)
	default:
		return mutedStyle.Render(s)
	}
}

// renderMetrics 回测指标面板
func renderMetrics(m model.BacktestMetrics) string {
	lines := []string{
		titleStyle.Render("Backtest"),
		row("Trades", fmt.Sprintf("%d (%d W / %d L)", m.TotalTrades, m.Wins, m.Losses)),
		row("Win rate", fmt.Sprintf("%.2f%%", m.WinRate*100)),
		row("Average win", fmt.Sprintf("%.2f", m.AverageWin)),
		row("Average loss", fmt.Sprintf("%.2f", m.AverageLoss)),
		row("Expectancy", fmt.Sprintf("%.2f", m.Expectancy)),
		row("Cumulative PnL", fmt.Sprintf("%.2f", m.CumulativePnL)),
		row("Max drawdown", fmt.Sprintf("%.2f", m.MaxDrawdown)),
		row("Return on risk", fmt.Sprintf("%.4f", m.ReturnOnRisk)),
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

// renderReplay 回放逐周表格与汇总
func renderReplay(r replay.Report) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Replay: %d weeks", len(r.Records))))
	b.WriteString("\n")
	for _, rec := range r.Records {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			cell(10, rec.Week), cell(12, rec.Monday),
			cell(15, decisionText(rec.Decision)), cell(9, outcomeText(rec.Outcome)),
			cell(10, fmt.Sprintf("%8.2f", rec.PnL)), mutedStyle.Render(rec.Reason)))
		b.WriteString("\n")
	}
	b.WriteString(renderMetrics(r.Metrics))
	return b.String()
}

// renderLive 模拟盘报告
func renderLive(rep live.Report) string {
	var b strings.Builder
	env := allowedStyle.Render("OK")
	if !rep.Env.OK {
		env = blockedStyle.Render(rep.Env.Reason)
	}
	header := []string{
		row("Mode", string(rep.Mode)),
		row("Run", rep.RunID),
		row("Environment", env),
		row("Journaled", fmt.Sprintf("%t", rep.Journaled)),
	}
	b.WriteString(panelStyle.Render(strings.Join(header, "\n")))
	b.WriteString("\n")
	b.WriteString(renderWeek(rep.Result, rep.Slippage, rep.Events, rep.Advisory))
	return b.String()
}
