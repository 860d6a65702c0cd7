package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// PostgresConfig Postgres 存储配置
type PostgresConfig struct {
	DSN string
	// Timeout 单条写入超时
	Timeout time.Duration
	// ConnectTimeout 建连重试的总时长
	ConnectTimeout time.Duration
	// RetryInterval 建连重试的初始间隔
	RetryInterval time.Duration
}

func (c *PostgresConfig) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 500 * time.Millisecond
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS weekly_journal (
	id              BIGSERIAL PRIMARY KEY,
	ts              TIMESTAMPTZ NOT NULL,
	run_id          TEXT NOT NULL,
	week            TEXT NOT NULL,
	mode            TEXT NOT NULL,
	decision        TEXT NOT NULL,
	bwb_valid       BOOLEAN,
	structure_type  TEXT,
	reason_summary  TEXT NOT NULL,
	macro_events    TEXT[] NOT NULL DEFAULT '{}',
	credit_mid      DOUBLE PRECISION,
	credit_adj_5    DOUBLE PRECISION,
	credit_adj_10   DOUBLE PRECISION,
	credit_adj_15   DOUBLE PRECISION,
	max_loss_mid    DOUBLE PRECISION,
	max_loss_adj_5  DOUBLE PRECISION,
	max_loss_adj_10 DOUBLE PRECISION,
	max_loss_adj_15 DOUBLE PRECISION
)`

const insertRecord = `
INSERT INTO weekly_journal
	(ts, run_id, week, mode, decision, bwb_valid, structure_type, reason_summary, macro_events,
	 credit_mid, credit_adj_5, credit_adj_10, credit_adj_15,
	 max_loss_mid, max_loss_adj_5, max_loss_adj_10, max_loss_adj_15)
VALUES
	(:ts, :run_id, :week, :mode, :decision, :bwb_valid, :structure_type, :reason_summary, :macro_events,
	 :credit_mid, :credit_adj_5, :credit_adj_10, :credit_adj_15,
	 :max_loss_mid, :max_loss_adj_5, :max_loss_adj_10, :max_loss_adj_15)`

const selectRecent = `
SELECT ts, run_id, week, mode, decision, bwb_valid, structure_type, reason_summary, macro_events,
       credit_mid, credit_adj_5, credit_adj_10, credit_adj_15,
       max_loss_mid, max_loss_adj_5, max_loss_adj_10, max_loss_adj_15
FROM weekly_journal
ORDER BY ts DESC
LIMIT $1`

// PostgresSink 写入 weekly_journal 表
type PostgresSink struct {
	db      *sqlx.DB
	timeout time.Duration
}

// OpenPostgres 连接数据库（带指数退避重试）并确保表结构存在
func OpenPostgres(ctx context.Context, cfg PostgresConfig, logger *zap.Logger) (*PostgresSink, error) {
	if cfg.DSN == "" {
		return nil, errors.New("journal: postgres DSN is required when enabled")
	}
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s, err := connect(ctx, db, cfg, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func connect(ctx context.Context, db *sqlx.DB, cfg PostgresConfig, logger *zap.Logger) (*PostgresSink, error) {
	cfg.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.RetryInterval
	b.MaxElapsedTime = cfg.ConnectTimeout

	ping := func() error {
		pctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		return db.PingContext(pctx)
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("postgres ping failed, retrying", zap.Error(err), zap.Duration("wait", wait))
	}
	if err := backoff.RetryNotify(ping, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := NewPostgresSink(db, cfg.Timeout)
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewPostgresSink 基于已连接的数据库创建存储
func NewPostgresSink(db *sqlx.DB, timeout time.Duration) *PostgresSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PostgresSink{db: db, timeout: timeout}
}

// EnsureSchema 创建 weekly_journal 表（已存在则跳过）
func (s *PostgresSink) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create weekly_journal: %w", err)
	}
	return nil
}

// Append 实现 Sink，写入失败不重试
func (s *PostgresSink) Append(ctx context.Context, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if rec.MacroEvents == nil {
		rec.MacroEvents = []string{}
	}
	if _, err := s.db.NamedExecContext(ctx, insertRecord, rec); err != nil {
		return fmt.Errorf("failed to insert journal record: %w", err)
	}
	return nil
}

// Recent 按时间倒序读取最近 limit 条周记
func (s *PostgresSink) Recent(ctx context.Context, limit int) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if limit <= 0 {
		limit = 10
	}
	var out []Record
	if err := s.db.SelectContext(ctx, &out, selectRecent, limit); err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	return out, nil
}

// Close 关闭连接
func (s *PostgresSink) Close() error {
	return s.db.Close()
}
