package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OptionKind 期权类型
type OptionKind string

const (
	// KindCall 看涨期权
	KindCall OptionKind = "CALL"
	// KindPut 看跌期权
	KindPut OptionKind = "PUT"
)

// ParseOptionKind 解析期权类型，大小写不敏感
func ParseOptionKind(s string) (OptionKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "call", "c":
		return KindCall, true
	case "put", "p":
		return KindPut, true
	default:
		return "", false
	}
}

// UnmarshalJSON 接受 "put"/"PUT"/"p" 等写法
func (k *OptionKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	kind, ok := ParseOptionKind(s)
	if !ok {
		return fmt.Errorf("unknown option kind %q", s)
	}
	*k = kind
	return nil
}

// LegSide 腿的买卖方向
type LegSide string

const (
	// SideBuy 买入
	SideBuy LegSide = "BUY"
	// SideSell 卖出
	SideSell LegSide = "SELL"
)

// StructureType BWB 结构类型
type StructureType string

const (
	// StructurePutCredit 看跌信用 BWB
	StructurePutCredit StructureType = "PUT_CREDIT"
	// StructureCallDebit 看涨借方 BWB
	StructureCallDebit StructureType = "CALL_DEBIT"
)

// OptionRecord 期权链快照中的单条记录
// 同一到期日的全部记录组成一条链，对构建器只读
type OptionRecord struct {
	Kind   OptionKind `json:"kind"`
	Strike float64    `json:"strike"`
	// Delta 缺失时为 nil，该记录不参与行权价选择
	Delta *float64 `json:"delta,omitempty"`
	Bid   float64  `json:"bid"`
	Ask   float64  `json:"ask"`
	// Volume 与 OpenInterest 仅用于成交质量检查，缺失时为 nil
	Volume       *int64 `json:"volume,omitempty"`
	OpenInterest *int64 `json:"open_interest,omitempty"`
}

// Mid 返回买卖中间价
func (r OptionRecord) Mid() float64 {
	return (r.Bid + r.Ask) / 2
}

// Leg 结构中的一条腿
type Leg struct {
	Side     LegSide    `json:"side"`
	Quantity int        `json:"quantity"`
	Kind     OptionKind `json:"kind"`
	Strike   float64    `json:"strike"`
	// Price 入场价格（中间价）
	Price float64  `json:"price"`
	Delta *float64 `json:"delta,omitempty"`
}

// BWBStructure 破翼蝶式结构
// 每周构建一次，构建后不再修改；无效时 Legs 为空并附带原因
type BWBStructure struct {
	Type StructureType `json:"structure_type"`
	// Legs 依次为：卖出 2 手空头、近端多头、远端翼
	Legs []Leg `json:"legs"`
	// NetPremium 净权利金，正数为收取
	NetPremium float64 `json:"net_premium"`
	// MaxLoss 最大亏损，不小于 0；无法计算时为 nil
	MaxLoss *float64 `json:"max_loss"`
	Valid   bool     `json:"valid"`
	Reason  string   `json:"reason"`
}

// Float 返回指向 v 的指针，便于构造可选数值字段
func Float(v float64) *float64 {
	return &v
}

// SettlementRecord 到期日结算价
type SettlementRecord struct {
	Kind   OptionKind `json:"kind"`
	Strike float64    `json:"strike"`
	// SettlementPrice 结算价，缺失时为 nil
	SettlementPrice *float64 `json:"settlement_price"`
}
