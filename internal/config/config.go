// Package config 负责加载和验证 YAML 配置文件。
// 提供周度评估、行情数据源、日志落盘、推送与指标所需的全部配置项。
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"theta-guard/internal/advisory/sizing"
	"theta-guard/internal/core/indicator"
	"theta-guard/internal/core/model"
	"theta-guard/internal/core/structure"
	"theta-guard/internal/pipeline"
	"theta-guard/internal/util/timeutil"
)

// 日历提供方
const (
	CalendarNYSE    = "nyse"
	CalendarTradier = "tradier"
)

// Config 应用配置根结构
// 包含所有子模块的配置项
type Config struct {
	// App 应用基础配置
	App AppConfig `yaml:"app"`
	// Indicator EMA 指标参数
	Indicator IndicatorConfig `yaml:"indicator"`
	// Structure BWB 构建参数
	Structure StructureConfig `yaml:"structure"`
	// Calendar 交易日历配置
	Calendar CalendarConfig `yaml:"calendar"`
	// Tradier 行情 API 配置（令牌只从环境变量读取）
	Tradier TradierConfig `yaml:"tradier"`
	// Slippage 滑点情景
	Slippage SlippageConfig `yaml:"slippage"`
	// Advisory 仓位建议等参考信息
	Advisory AdvisoryConfig `yaml:"advisory"`
	// Journal 周度日志
	Journal JournalConfig `yaml:"journal"`
	// Feed 结果推送
	Feed FeedConfig `yaml:"feed"`
	// Metrics 指标输出
	Metrics MetricsConfig `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	// Name 应用名称，用于日志标识
	Name string `yaml:"name"`
	// LogLevel 日志级别: debug, info, warn, error
	LogLevel string `yaml:"log_level"`
}

// IndicatorConfig EMA 参数
type IndicatorConfig struct {
	ShortPeriod  int     `yaml:"short_period"`
	LongPeriod   int     `yaml:"long_period"`
	SlopeEpsilon float64 `yaml:"slope_epsilon"`
}

// StructureConfig BWB 构建参数
type StructureConfig struct {
	// DefaultType 未指定时使用的结构类型: PUT_CREDIT / CALL_DEBIT
	DefaultType     string  `yaml:"default_type"`
	PutTargetDelta  float64 `yaml:"put_target_delta"`
	CallTargetDelta float64 `yaml:"call_target_delta"`
}

// CalendarConfig 交易日历配置
type CalendarConfig struct {
	// Provider nyse（本地规则）或 tradier（远程日历）
	Provider string `yaml:"provider"`
	// TimeoutMs 单次日历查询超时（毫秒），超时按非交易周处理
	TimeoutMs int `yaml:"timeout_ms"`
	// ExtraClosures 额外休市日 YYYY-MM-DD（临时闭市等）
	ExtraClosures []string    `yaml:"extra_closures"`
	Cache         CacheConfig `yaml:"cache"`
}

// CacheConfig 日历 Redis 缓存
type CacheConfig struct {
	Enabled   bool   `yaml:"enabled"`
	RedisAddr string `yaml:"redis_addr"`
	TTLSec    int    `yaml:"ttl_sec"`
	KeyPrefix string `yaml:"key_prefix"`
}

// TradierConfig Tradier 行情 API 配置
type TradierConfig struct {
	// BaseURL 为空时使用环境变量 TRADIER_BASE
	BaseURL string `yaml:"base_url"`
	Symbol  string `yaml:"symbol"`
	// HistoryDays 日线回溯的自然日数
	HistoryDays     int     `yaml:"history_days"`
	TimeoutMs       int     `yaml:"timeout_ms"`
	RequestsPerSec  float64 `yaml:"requests_per_sec"`
	BreakerFailures int     `yaml:"breaker_failures"`
}

// SlippageConfig 滑点情景配置
type SlippageConfig struct {
	// Pcts 滑点比例列表（0-1）
	Pcts []float64 `yaml:"pcts"`
}

// AdvisoryConfig 参考信息配置，不影响交易决策
type AdvisoryConfig struct {
	// AccountSize 账户规模（美元），0 表示不计算仓位建议
	AccountSize float64 `yaml:"account_size"`
	// MaxRiskPct 单笔风险占账户比例（0-1]
	MaxRiskPct float64 `yaml:"max_risk_pct"`
}

// JournalConfig 周度日志配置
type JournalConfig struct {
	// Dir 输出目录
	Dir          string         `yaml:"dir"`
	JSONLEnabled bool           `yaml:"jsonl_enabled"`
	BufferSize   int            `yaml:"buffer_size"`
	Postgres     PostgresConfig `yaml:"postgres"`
}

// PostgresConfig 可选的 Postgres 日志
type PostgresConfig struct {
	Enabled   bool   `yaml:"enabled"`
	DSN       string `yaml:"dsn"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

// FeedConfig WebSocket 结果推送
type FeedConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// MetricsConfig 指标输出
type MetricsConfig struct {
	// Textfile 非空时每次运行后写出 Prometheus 文本格式
	Textfile string `yaml:"textfile"`
}

// Default 返回填充了全部默认值的配置，无配置文件时各命令也能运行
func Default() *Config {
	cfg := &Config{}
	cfg.Journal.JSONLEnabled = true
	cfg.setDefaults()
	return cfg
}

// Load 从文件加载配置
// 参数 path: 配置文件路径
// 返回: 配置对象和可能的错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 内容，设置默认值后校验
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	// 未写 jsonl_enabled 时默认开启
	cfg.Journal.JSONLEnabled = true
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	return cfg, nil
}

// setDefaults 设置默认值
func (c *Config) setDefaults() {
	if c.App.Name == "" {
		c.App.Name = "theta-guard"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}

	if c.Indicator.ShortPeriod == 0 {
		c.Indicator.ShortPeriod = indicator.DefaultShortPeriod
	}
	if c.Indicator.LongPeriod == 0 {
		c.Indicator.LongPeriod = indicator.DefaultLongPeriod
	}
	if c.Indicator.SlopeEpsilon == 0 {
		c.Indicator.SlopeEpsilon = indicator.DefaultSlopeEpsilon
	}

	if c.Structure.DefaultType == "" {
		c.Structure.DefaultType = string(model.StructurePutCredit)
	}
	if c.Structure.PutTargetDelta == 0 {
		c.Structure.PutTargetDelta = structure.DefaultPutTargetDelta
	}
	if c.Structure.CallTargetDelta == 0 {
		c.Structure.CallTargetDelta = structure.DefaultCallTargetDelta
	}

	c.Calendar.Provider = strings.ToLower(strings.TrimSpace(c.Calendar.Provider))
	if c.Calendar.Provider == "" {
		c.Calendar.Provider = CalendarNYSE
	}
	if c.Calendar.TimeoutMs == 0 {
		c.Calendar.TimeoutMs = 5000
	}
	if c.Calendar.Cache.TTLSec == 0 {
		c.Calendar.Cache.TTLSec = 86400
	}
	if c.Calendar.Cache.KeyPrefix == "" {
		c.Calendar.Cache.KeyPrefix = "thetaguard:calendar"
	}
	if c.Calendar.Cache.RedisAddr == "" {
		c.Calendar.Cache.RedisAddr = "127.0.0.1:6379"
	}

	if c.Tradier.Symbol == "" {
		c.Tradier.Symbol = "SPX"
	}
	if c.Tradier.HistoryDays == 0 {
		c.Tradier.HistoryDays = 45
	}
	if c.Tradier.TimeoutMs == 0 {
		c.Tradier.TimeoutMs = 10000
	}
	if c.Tradier.RequestsPerSec == 0 {
		c.Tradier.RequestsPerSec = 2
	}
	if c.Tradier.BreakerFailures == 0 {
		c.Tradier.BreakerFailures = 3
	}

	if len(c.Slippage.Pcts) == 0 {
		c.Slippage.Pcts = []float64{0, 0.05, 0.10, 0.15}
	}

	if c.Advisory.MaxRiskPct == 0 {
		c.Advisory.MaxRiskPct = sizing.DefaultMaxRiskPct
	}

	if c.Journal.Dir == "" {
		c.Journal.Dir = "./logs"
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = 256
	}
	if c.Journal.Postgres.TimeoutMs == 0 {
		c.Journal.Postgres.TimeoutMs = 5000
	}

	if c.Feed.ListenAddr == "" {
		c.Feed.ListenAddr = "127.0.0.1:8765"
	}
}

// Validate 验证配置有效性
// 返回: 若配置无效则返回包含全部问题的错误
func (c *Config) Validate() error {
	var errs []string

	// 验证指标参数
	if c.Indicator.ShortPeriod <= 0 {
		errs = append(errs, "indicator.short_period: 短周期必须为正数")
	}
	if c.Indicator.LongPeriod <= 0 {
		errs = append(errs, "indicator.long_period: 长周期必须为正数")
	}
	if c.Indicator.ShortPeriod > 0 && c.Indicator.LongPeriod > 0 && c.Indicator.ShortPeriod >= c.Indicator.LongPeriod {
		errs = append(errs, fmt.Sprintf("indicator: 短周期 %d 必须小于长周期 %d", c.Indicator.ShortPeriod, c.Indicator.LongPeriod))
	}
	if c.Indicator.SlopeEpsilon < 0 {
		errs = append(errs, "indicator.slope_epsilon: 斜率阈值不能为负数")
	}

	// 验证结构参数
	if _, ok := c.StructureType(); !ok {
		errs = append(errs, fmt.Sprintf("structure.default_type: 无效的结构类型 '%s'，有效值: PUT_CREDIT, CALL_DEBIT", c.Structure.DefaultType))
	}
	if err := validateDelta(c.Structure.PutTargetDelta, "structure.put_target_delta"); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateDelta(c.Structure.CallTargetDelta, "structure.call_target_delta"); err != nil {
		errs = append(errs, err.Error())
	}

	// 验证日历配置
	switch c.Calendar.Provider {
	case CalendarNYSE, CalendarTradier:
	default:
		errs = append(errs, fmt.Sprintf("calendar.provider: 无效的日历提供方 '%s'，有效值: nyse, tradier", c.Calendar.Provider))
	}
	if c.Calendar.TimeoutMs <= 0 {
		errs = append(errs, "calendar.timeout_ms: 超时必须为正数")
	}
	for i, d := range c.Calendar.ExtraClosures {
		if _, err := timeutil.ParseDate(d); err != nil {
			errs = append(errs, fmt.Sprintf("calendar.extra_closures[%d]: 无效日期 '%s'", i, d))
		}
	}
	if c.Calendar.Cache.Enabled && c.Calendar.Cache.TTLSec <= 0 {
		errs = append(errs, "calendar.cache.ttl_sec: 缓存时长必须为正数")
	}

	// 验证 Tradier 配置
	if c.Tradier.HistoryDays <= 0 {
		errs = append(errs, "tradier.history_days: 回溯天数必须为正数")
	}
	if c.Tradier.TimeoutMs <= 0 {
		errs = append(errs, "tradier.timeout_ms: 超时必须为正数")
	}
	if c.Tradier.RequestsPerSec < 0 {
		errs = append(errs, "tradier.requests_per_sec: 限速不能为负数")
	}
	if c.Tradier.BreakerFailures < 0 {
		errs = append(errs, "tradier.breaker_failures: 熔断阈值不能为负数")
	}

	// 验证滑点比例（范围 0-1）
	for i, p := range c.Slippage.Pcts {
		if p < 0 || p > 1 {
			errs = append(errs, fmt.Sprintf("slippage.pcts[%d]: 滑点比例必须在 0-1 之间，当前值: %f", i, p))
		}
	}

	// 验证参考信息配置
	if c.Advisory.AccountSize < 0 {
		errs = append(errs, "advisory.account_size: 账户规模不能为负数")
	}
	if c.Advisory.MaxRiskPct <= 0 || c.Advisory.MaxRiskPct > 1 {
		errs = append(errs, fmt.Sprintf("advisory.max_risk_pct: 风险比例必须在 (0,1] 之间，当前值: %f", c.Advisory.MaxRiskPct))
	}

	// 验证日志配置
	if c.Journal.BufferSize < 0 {
		errs = append(errs, "journal.buffer_size: 缓冲区大小不能为负数")
	}
	if c.Journal.Postgres.Enabled && strings.TrimSpace(c.Journal.Postgres.DSN) == "" {
		errs = append(errs, "journal.postgres.dsn: 启用 Postgres 时 DSN 不能为空")
	}
	if c.Feed.Enabled && strings.TrimSpace(c.Feed.ListenAddr) == "" {
		errs = append(errs, "feed.listen_addr: 启用推送时监听地址不能为空")
	}

	// 验证日志级别
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.App.LogLevel)] {
		errs = append(errs, fmt.Sprintf("app.log_level: 无效的日志级别 '%s'，有效值: debug, info, warn, error", c.App.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("配置验证错误:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// validateDelta 目标 delta 必须在 (0, 1) 内
func validateDelta(v float64, field string) error {
	if v <= 0 || v >= 1 {
		return fmt.Errorf("%s: 目标 delta 必须在 0-1 之间（不含端点），当前值: %f", field, v)
	}
	return nil
}

// StructureType 解析默认结构类型（大小写不敏感）
func (c *Config) StructureType() (model.StructureType, bool) {
	switch model.StructureType(strings.ToUpper(strings.TrimSpace(c.Structure.DefaultType))) {
	case model.StructurePutCredit:
		return model.StructurePutCredit, true
	case model.StructureCallDebit:
		return model.StructureCallDebit, true
	}
	return "", false
}

// PipelineParams 转换为流水线参数
func (c *Config) PipelineParams() pipeline.Params {
	typ, ok := c.StructureType()
	if !ok {
		typ = model.StructurePutCredit
	}
	return pipeline.Params{
		Indicator: indicator.Params{
			ShortPeriod:  c.Indicator.ShortPeriod,
			LongPeriod:   c.Indicator.LongPeriod,
			SlopeEpsilon: c.Indicator.SlopeEpsilon,
		},
		Structure: structure.Params{
			PutTargetDelta:  c.Structure.PutTargetDelta,
			CallTargetDelta: c.Structure.CallTargetDelta,
		},
		DefaultStructure: typ,
	}
}

// CalendarTimeout 日历查询超时
func (c *Config) CalendarTimeout() time.Duration {
	return time.Duration(c.Calendar.TimeoutMs) * time.Millisecond
}

// TTL 日历缓存时长
func (c *CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSec) * time.Second
}

// Timeout Tradier 单次请求超时
func (t *TradierConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutMs) * time.Millisecond
}

// Timeout Postgres 单次写入超时
func (p *PostgresConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutMs) * time.Millisecond
}
