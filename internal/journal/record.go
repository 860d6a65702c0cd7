// Package journal 追加式记录每周运行结果，供前向测试与审计。
// 只记录不执行；任何写入失败都不得阻断主流程。
package journal

import (
	"time"

	"github.com/lib/pq"

	"theta-guard/internal/advisory/slippage"
	"theta-guard/internal/pipeline"
)

// Mode 运行模式
type Mode string

const (
	// ModePaper 模拟盘（live 命令）
	ModePaper Mode = "PAPER"
	// ModeEvaluate 单周离线评估
	ModeEvaluate Mode = "EVALUATE"
	// ModeReplay 历史回放
	ModeReplay Mode = "REPLAY"
)

// DecisionError 流水线结果缺失时记录的决策
const DecisionError = "ERROR"

// Record 周记一行
// 可选字段为 nil 时表示不适用（如未构建结构或滑点分析无效）
type Record struct {
	Timestamp     time.Time      `json:"timestamp" db:"ts"`
	RunID         string         `json:"run_id" db:"run_id"`
	Week          string         `json:"week" db:"week"`
	Mode          Mode           `json:"mode" db:"mode"`
	Decision      string         `json:"decision" db:"decision"`
	BWBValid      *bool          `json:"bwb_valid" db:"bwb_valid"`
	StructureType *string        `json:"structure_type" db:"structure_type"`
	ReasonSummary string         `json:"reason_summary" db:"reason_summary"`
	MacroEvents   pq.StringArray `json:"macro_events" db:"macro_events"`

	CreditMid    *float64 `json:"credit_mid" db:"credit_mid"`
	CreditAdj5   *float64 `json:"credit_adj_5" db:"credit_adj_5"`
	CreditAdj10  *float64 `json:"credit_adj_10" db:"credit_adj_10"`
	CreditAdj15  *float64 `json:"credit_adj_15" db:"credit_adj_15"`
	MaxLossMid   *float64 `json:"max_loss_mid" db:"max_loss_mid"`
	MaxLossAdj5  *float64 `json:"max_loss_adj_5" db:"max_loss_adj_5"`
	MaxLossAdj10 *float64 `json:"max_loss_adj_10" db:"max_loss_adj_10"`
	MaxLossAdj15 *float64 `json:"max_loss_adj_15" db:"max_loss_adj_15"`
}

// FromWeek 由一次周度评估构造周记
// res 为 nil 时记为 ERROR；Timestamp 与 RunID 由 Journal 填写
func FromWeek(mode Mode, res *pipeline.WeekResult, slip slippage.Analysis, events []string) Record {
	rec := Record{
		Mode:        mode,
		MacroEvents: pq.StringArray{},
	}
	if len(events) > 0 {
		rec.MacroEvents = append(rec.MacroEvents, events...)
	}
	if res == nil {
		rec.Decision = DecisionError
		rec.ReasonSummary = "Pipeline result missing"
		return rec
	}

	rec.Week = res.Week
	rec.Decision = string(res.Entry.Decision)
	rec.ReasonSummary = res.Entry.Summary()
	if res.Structure != nil {
		valid := res.Structure.Valid
		typ := string(res.Structure.Type)
		rec.BWBValid = &valid
		rec.StructureType = &typ
	}

	if slip.Valid {
		if base, ok := slip.Scenarios[slippage.Key(0)]; ok {
			rec.CreditMid = base.CreditMid
			rec.MaxLossMid = base.MaxLossMid
		}
		rec.CreditAdj5, rec.MaxLossAdj5 = slip.CreditAt(0.05), slip.MaxLossAt(0.05)
		rec.CreditAdj10, rec.MaxLossAdj10 = slip.CreditAt(0.10), slip.MaxLossAt(0.10)
		rec.CreditAdj15, rec.MaxLossAdj15 = slip.CreditAt(0.15), slip.MaxLossAt(0.15)
	}
	return rec
}
