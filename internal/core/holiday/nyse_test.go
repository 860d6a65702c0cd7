package holiday

import (
	"context"
	"testing"

	"theta-guard/internal/util/timeutil"
)

func TestNYSECalendar_Holidays(t *testing.T) {
	c := mustNYSE(t)
	closed := []string{
		"2024-01-01", "2024-01-15", "2024-02-19", "2024-03-29", "2024-05-27",
		"2024-06-19", "2024-07-04", "2024-09-02", "2024-11-28", "2024-12-25",
		"2023-01-02", // 元旦逢周日，顺延周一
		"2022-12-26", // 圣诞逢周日，顺延周一
	}
	for _, s := range closed {
		d, _ := timeutil.ParseDate(s)
		if c.IsTradingDay(d) {
			t.Errorf("%s should be closed", s)
		}
	}
	open := []string{
		"2024-01-08", "2024-07-05", "2024-12-24",
		"2021-12-31", // 2022 元旦逢周六，交易所不提前休市
		"2021-06-18", // Juneteenth 2022 年前不休市
	}
	for _, s := range open {
		d, _ := timeutil.ParseDate(s)
		if !c.IsTradingDay(d) {
			t.Errorf("%s should be open", s)
		}
	}
}

func TestNYSECalendar_TradingDays(t *testing.T) {
	c := mustNYSE(t)
	start, _ := timeutil.ParseDate("2024-12-23")
	end, _ := timeutil.ParseDate("2024-12-27")
	days, err := c.TradingDays(context.Background(), start, end)
	if err != nil {
		t.Fatalf("TradingDays() error = %v", err)
	}
	if len(days) != 4 {
		t.Fatalf("len(days) = %d, want 4", len(days))
	}
	for _, d := range days {
		if timeutil.FormatDate(d) == "2024-12-25" {
			t.Error("Christmas should be excluded")
		}
	}

	if _, err := c.TradingDays(context.Background(), end, start); err == nil {
		t.Error("expected error for reversed range")
	}
	far := start.AddDate(3, 0, 0)
	if _, err := c.TradingDays(context.Background(), start, far); err == nil {
		t.Error("expected error for oversized range")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.TradingDays(ctx, start, end); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestNewNYSECalendar_BadClosure(t *testing.T) {
	if _, err := NewNYSECalendar([]string{"not-a-date"}); err == nil {
		t.Fatal("expected error")
	}
}
