// Package csvfile 读取 date,close 格式的日收盘价 CSV，供历史回放使用。
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"theta-guard/internal/source"
	"theta-guard/internal/util/timeutil"
)

// Row 单日收盘价
type Row struct {
	Date  time.Time
	Close float64
}

// Series 按日期升序排列的收盘价序列
type Series []Row

// Load 从文件读取
func Load(path string) (Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开 CSV 失败: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read 解析 CSV
// 表头需包含 date 与 close 两列（大小写不敏感，顺序不限）；
// 空行、无法解析或非正数的收盘价逐行跳过。
func Read(r io.Reader) (Series, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("CSV 为空: %w", source.ErrNoData)
		}
		return nil, fmt.Errorf("读取 CSV 表头失败: %w", err)
	}
	dateCol, closeCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "date":
			dateCol = i
		case "close":
			closeCol = i
		}
	}
	if dateCol < 0 || closeCol < 0 {
		return nil, fmt.Errorf("CSV 表头缺少 date/close 列: %v", header)
	}

	byDate := make(map[string]Row)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				continue
			}
			return nil, fmt.Errorf("读取 CSV 失败: %w", err)
		}
		if dateCol >= len(rec) || closeCol >= len(rec) {
			continue
		}
		d, err := timeutil.ParseDate(strings.TrimSpace(rec[dateCol]))
		if err != nil {
			continue
		}
		c, err := strconv.ParseFloat(strings.TrimSpace(rec[closeCol]), 64)
		if err != nil || !(c > 0) {
			continue
		}
		// 同一日期重复出现时以最后一行为准
		byDate[timeutil.FormatDate(d)] = Row{Date: d, Close: c}
	}

	out := make(Series, 0, len(byDate))
	for _, r := range byDate {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// Mondays 返回序列中出现的所有周一的下标
func (s Series) Mondays() []int {
	var idx []int
	for i, r := range s {
		if r.Date.Weekday() == time.Monday {
			idx = append(idx, i)
		}
	}
	return idx
}

// Lookback 返回截至下标 i（含）的最近 n 个收盘价，旧到新
func (s Series) Lookback(i, n int) []float64 {
	if i < 0 || i >= len(s) || n <= 0 {
		return nil
	}
	start := i - n + 1
	if start < 0 {
		start = 0
	}
	out := make([]float64, 0, i-start+1)
	for _, r := range s[start : i+1] {
		out = append(out, r.Close)
	}
	return out
}

// IndexOnOrBefore 返回日期不晚于 t 的最后一个下标；没有时返回 -1
// 用于非交易日（如节假日周一）取最近一个收盘价
func (s Series) IndexOnOrBefore(t time.Time) int {
	day := timeutil.DateOnly(t)
	return sort.Search(len(s), func(i int) bool { return s[i].Date.After(day) }) - 1
}

// DailyCloses 实现 source.PriceSource，按自然日窗口截取
func (s Series) DailyCloses(ctx context.Context, end time.Time, lookbackDays int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	end = timeutil.DateOnly(end)
	start := end.AddDate(0, 0, -lookbackDays)
	var out []float64
	for _, r := range s {
		if r.Date.Before(start) || r.Date.After(end) {
			continue
		}
		out = append(out, r.Close)
	}
	if len(out) == 0 {
		return nil, source.ErrNoData
	}
	return out, nil
}
