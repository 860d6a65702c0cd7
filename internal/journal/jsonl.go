package journal

import (
	"context"
	"path/filepath"

	"theta-guard/internal/output/jsonl"
)

// FileName 周记文件名
const FileName = "theta_guard_weekly_journal.jsonl"

// JSONLSink 以 JSONL 追加写入本地文件
type JSONLSink struct {
	w *jsonl.Writer
}

// NewJSONLSink 在 dir 下打开周记文件
func NewJSONLSink(dir string, bufferSize int) (*JSONLSink, error) {
	w, err := jsonl.NewWriter(filepath.Join(dir, FileName), bufferSize)
	if err != nil {
		return nil, err
	}
	return &JSONLSink{w: w}, nil
}

// Path 返回文件路径
func (s *JSONLSink) Path() string {
	return s.w.Path()
}

// Append 实现 Sink，每条记录同步落盘
func (s *JSONLSink) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.w.WriteSync(rec)
}

// Close 关闭文件
func (s *JSONLSink) Close() error {
	return s.w.Close()
}
