package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"theta-guard/internal/core/model"
	"theta-guard/internal/metrics"
	"theta-guard/internal/pipeline"
)

func newBacktestCmd(a *app) *cobra.Command {
	var recordsPath string
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "由周度结果记录计算回测指标",
		Example: `  thetaguard backtest --records weekly_records.json
  thetaguard replay --prices spx.csv --json > report.json && thetaguard backtest --records report.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := loadRecords(recordsPath)
			if err != nil {
				return err
			}
			bm := pipeline.AggregateBacktest(records)

			m := metrics.New()
			m.ObserveBacktest(bm)
			a.writeTextfile(m)

			if a.styled() {
				_, err := fmt.Fprintln(a.out, renderMetrics(bm))
				return err
			}
			return a.writeJSON(bm)
		},
	}
	cmd.Flags().StringVar(&recordsPath, "records", "", "周度结果记录 JSON（数组，或含 weekly_records 的回放报告）")
	_ = cmd.MarkFlagRequired("records")
	return cmd
}

// loadRecords 接受记录数组或回放报告
func loadRecords(path string) ([]model.WeeklyOutcomeRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 %s 失败: %w", path, err)
	}
	data = bytes.TrimSpace(data)

	var records []model.WeeklyOutcomeRecord
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("解析记录失败: %w", err)
		}
		return records, nil
	}

	var report struct {
		Records []model.WeeklyOutcomeRecord `json:"weekly_records"`
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("解析回放报告失败: %w", err)
	}
	return report.Records, nil
}
