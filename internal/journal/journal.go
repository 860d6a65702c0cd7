package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"theta-guard/internal/util/timeutil"
)

// Sink 周记存储
type Sink interface {
	Append(ctx context.Context, rec Record) error
}

// Journal 将周记分发到所有存储
// 单个存储失败只记录日志，不影响其它存储
type Journal struct {
	runID  string
	sinks  []Sink
	logger *zap.Logger
	now    func() time.Time
}

// New 创建周记，每个实例对应一次运行（run_id）
func New(logger *zap.Logger, sinks ...Sink) *Journal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Journal{
		runID:  uuid.NewString(),
		sinks:  sinks,
		logger: logger,
		now:    time.Now,
	}
}

// RunID 返回本次运行标识
func (j *Journal) RunID() string {
	return j.runID
}

// Log 写入一条周记
// 补全 Timestamp、RunID 与 Week（缺失时取时间戳所在 ISO 周），返回各存储错误的合并
func (j *Journal) Log(ctx context.Context, rec Record) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("journal panic: %v", r)
			j.logger.Error("journal append panic", zap.Any("panic", r))
		}
	}()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = j.now().UTC()
	}
	if rec.RunID == "" {
		rec.RunID = j.runID
	}
	if rec.Week == "" {
		rec.Week = timeutil.ISOWeek(rec.Timestamp)
	}

	var errs []error
	for _, s := range j.sinks {
		if s == nil {
			continue
		}
		if e := s.Append(ctx, rec); e != nil {
			j.logger.Warn("journal append failed",
				zap.String("sink", fmt.Sprintf("%T", s)),
				zap.String("week", rec.Week),
				zap.Error(e),
			)
			errs = append(errs, e)
		}
	}
	return errors.Join(errs...)
}
