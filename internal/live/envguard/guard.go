// Package envguard 校验纸面运行所需的环境变量（总开关）。
// 任何一项不满足都拒绝运行，默认不交易。
package envguard

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// 环境变量名
const (
	EnvLiveMode             = "LIVE_MODE"
	EnvRequireHumanApproval = "REQUIRE_HUMAN_APPROVAL"
	EnvTradierToken         = "TRADIER_TOKEN"
	EnvTradierBase          = "TRADIER_BASE"
)

// Result 校验结果
type Result struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason"`
	// Token/BaseURL 仅在 OK 时填充
	Token   string `json:"-"`
	BaseURL string `json:"base_url,omitempty"`
}

// LoadDotEnv 加载 .env 文件（不覆盖已存在的环境变量）
// 文件不存在不视为错误
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Validate 校验环境；getenv 为 nil 时使用 os.Getenv
func Validate(getenv func(string) string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Reason: "Unexpected error during environment validation"}
		}
	}()
	if getenv == nil {
		getenv = os.Getenv
	}

	if strings.ToLower(strings.TrimSpace(getenv(EnvLiveMode))) != "true" {
		return Result{Reason: "LIVE_MODE disabled"}
	}
	if strings.ToLower(strings.TrimSpace(getenv(EnvRequireHumanApproval))) != "true" {
		return Result{Reason: "Human approval not enforced"}
	}
	token := strings.TrimSpace(getenv(EnvTradierToken))
	if token == "" {
		return Result{Reason: "TRADIER_TOKEN missing"}
	}
	base := strings.TrimSpace(getenv(EnvTradierBase))
	if base == "" {
		return Result{Reason: "TRADIER_BASE missing"}
	}
	return Result{OK: true, Reason: "Live environment validated", Token: token, BaseURL: base}
}

// MapEnv 由 map 构造 getenv，便于测试与 .env 解析结果复用
func MapEnv(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

// ReadDotEnv 解析 .env 文件而不修改进程环境
func ReadDotEnv(path string) (map[string]string, error) {
	return godotenv.Read(path)
}
