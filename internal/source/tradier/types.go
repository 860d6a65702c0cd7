package tradier

import (
	"bytes"
	"encoding/json"
)

// oneOrMany Tradier 在只有一条记录时返回对象而非数组，空结果时返回 null 或字符串 "null"
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`"null"`)) {
		*o = nil
		return nil
	}
	if b[0] == '[' {
		var many []T
		if err := json.Unmarshal(b, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*o = oneOrMany[T]{one}
	return nil
}

// optional 容忍 "null" 字符串的可选对象
type optional[T any] struct {
	Value *T
}

func (o *optional[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) || bytes.Equal(b, []byte(`"null"`)) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// historyResponse GET markets/history
type historyResponse struct {
	History optional[historyBody] `json:"history"`
}

type historyBody struct {
	Day oneOrMany[historyDay] `json:"day"`
}

type historyDay struct {
	Date  string   `json:"date"`
	Close *float64 `json:"close"`
}

// chainResponse GET markets/options/chains
type chainResponse struct {
	Options optional[chainBody] `json:"options"`
}

type chainBody struct {
	Option oneOrMany[rawOption] `json:"option"`
}

type rawOption struct {
	Symbol     string   `json:"symbol"`
	OptionType string   `json:"option_type"`
	Strike     *float64 `json:"strike"`
	Bid        *float64 `json:"bid"`
	Ask        *float64 `json:"ask"`
	Volume     *int64   `json:"volume"`
	OpenInt    *int64   `json:"open_interest"`
	Greeks     *greeks  `json:"greeks"`
}

type greeks struct {
	Delta *float64 `json:"delta"`
}

// calendarResponse GET markets/calendar
type calendarResponse struct {
	Calendar optional[calendarBody] `json:"calendar"`
}

type calendarBody struct {
	Month int `json:"month"`
	Year  int `json:"year"`
	Days  struct {
		Day oneOrMany[calendarDay] `json:"day"`
	} `json:"days"`
}

type calendarDay struct {
	Date   string `json:"date"`
	Status string `json:"status"`
}
