package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"theta-guard/internal/advisory"
	"theta-guard/internal/config"
	"theta-guard/internal/core/holiday"
	"theta-guard/internal/live/envguard"
	"theta-guard/internal/metrics"
	"theta-guard/internal/pipeline"
	"theta-guard/internal/source/tradier"
)

// app 各子命令共享的运行环境
type app struct {
	configPath string
	jsonOut    bool
	logLevel   string

	out    io.Writer
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:           "thetaguard",
		Short:         "SPX 周度 BWB 入场守卫（研究与模拟盘）",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "配置文件路径（为空时使用默认配置）")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "以 JSON 输出结果")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "覆盖配置中的日志级别")

	root.AddCommand(
		newEvaluateCmd(a),
		newBacktestCmd(a),
		newReplayCmd(a),
		newLiveCmd(a),
		newWatchCmd(a),
	)
	return root
}

// setup 加载配置与日志
func (a *app) setup() error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		cfg = loaded
	}
	a.cfg = cfg

	level := cfg.App.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	a.logger = newLogger(level).With(zap.String("app", cfg.App.Name))
	return nil
}

// styled 输出到终端且未要求 JSON 时使用 lipgloss 渲染
func (a *app) styled() bool {
	if a.jsonOut {
		return false
	}
	f, ok := a.out.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newPipeline 按配置构建交易日历、周度判定与评估流水线
// 返回的 cleanup 释放 Redis 连接
func (a *app) newPipeline(rec pipeline.Recorder) (*pipeline.Runner, func(), error) {
	cal, cleanup, err := a.newCalendar()
	if err != nil {
		return nil, nil, err
	}
	gate := holiday.NewGate(cal, a.cfg.CalendarTimeout(), a.logger.Named("holiday"))
	opts := []pipeline.Option{pipeline.WithLogger(a.logger.Named("pipeline"))}
	if rec != nil {
		opts = append(opts, pipeline.WithRecorder(rec))
	}
	return pipeline.NewRunner(gate, a.cfg.PipelineParams(), opts...), cleanup, nil
}

func (a *app) newCalendar() (holiday.Calendar, func(), error) {
	var inner holiday.Calendar
	switch a.cfg.Calendar.Provider {
	case config.CalendarTradier:
		if err := envguard.LoadDotEnv(); err != nil {
			a.logger.Warn("load .env failed", zap.Error(err))
		}
		client, err := tradier.NewClient(a.tradierConfig(os.Getenv(envguard.EnvTradierToken), os.Getenv(envguard.EnvTradierBase)), a.logger.Named("tradier"))
		if err != nil {
			return nil, nil, fmt.Errorf("创建 Tradier 日历失败: %w", err)
		}
		inner = client
	default:
		nyse, err := holiday.NewNYSECalendar(a.cfg.Calendar.ExtraClosures)
		if err != nil {
			return nil, nil, fmt.Errorf("创建 NYSE 日历失败: %w", err)
		}
		inner = nyse
	}

	cache := a.cfg.Calendar.Cache
	if !cache.Enabled {
		return inner, func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cache.RedisAddr})
	cached := holiday.NewCachedCalendar(inner, rdb, cache.TTL(), cache.KeyPrefix, a.logger.Named("calendar_cache"))
	return cached, func() { _ = rdb.Close() }, nil
}

// tradierConfig 配置文件中的 base_url 优先于环境变量
func (a *app) tradierConfig(token, envBase string) tradier.Config {
	base := a.cfg.Tradier.BaseURL
	if base == "" {
		base = envBase
	}
	return tradier.Config{
		BaseURL:         base,
		Token:           token,
		Symbol:          a.cfg.Tradier.Symbol,
		Timeout:         a.cfg.Tradier.Timeout(),
		RequestsPerSec:  a.cfg.Tradier.RequestsPerSec,
		BreakerFailures: a.cfg.Tradier.BreakerFailures,
	}
}

// advisoryParams 命令行账户规模大于 0 时覆盖配置
func (a *app) advisoryParams(accountSize float64) advisory.Params {
	p := advisory.Params{
		AccountSize: a.cfg.Advisory.AccountSize,
		MaxRiskPct:  a.cfg.Advisory.MaxRiskPct,
	}
	if accountSize > 0 {
		p.AccountSize = accountSize
	}
	return p
}

// writeTextfile 写出指标文件；未配置时跳过
func (a *app) writeTextfile(m *metrics.Metrics) {
	path := a.cfg.Metrics.Textfile
	if path == "" {
		return
	}
	if err := m.WriteTextfile(path); err != nil {
		a.logger.Warn("write metrics textfile failed", zap.String("path", path), zap.Error(err))
	}
}

// readJSON 读取 JSON 文件
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("读取 %s 失败: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("解析 %s 失败: %w", path, err)
	}
	return nil
}
