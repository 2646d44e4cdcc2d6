package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,notEmpty"`

	// Session
	SessionSecret  string `env:"SESSION_SECRET,notEmpty"`
	SessionMaxAge  int    `env:"SESSION_MAX_AGE" envDefault:"86400"`
	RememberMaxAge int    `env:"REMEMBER_MAX_AGE" envDefault:"31536000"`

	// Password
	BcryptCost int `env:"BCRYPT_COST" envDefault:"10"`

	// Rate Limit（フォーム送信 req/min/IP）
	RateLimitAuth int `env:"RATE_LIMIT_AUTH" envDefault:"10"`

	// X-Forwarded-Forを信頼するリバースプロキシ（CIDRまたはIP、カンマ区切り）
	TrustedProxyCIDRs []string `env:"TRUSTED_PROXY_CIDRS" envSeparator:","`

	// Worker
	SessionCleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"1h"`

	// Static
	StaticJSDir string `env:"STATIC_JS_DIR" envDefault:"value-trainer/dist"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL,notEmpty"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Cookie
	CookieSecure bool
	CookieDomain string `env:"COOKIE_DOMAIN"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if cfg.SessionMaxAge <= 0 {
		return nil, fmt.Errorf("SESSION_MAX_AGE must be positive: %d", cfg.SessionMaxAge)
	}
	if cfg.RememberMaxAge < cfg.SessionMaxAge {
		return nil, fmt.Errorf("REMEMBER_MAX_AGE (%d) must not be shorter than SESSION_MAX_AGE (%d)",
			cfg.RememberMaxAge, cfg.SessionMaxAge)
	}
	if cfg.RateLimitAuth <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_AUTH must be positive: %d", cfg.RateLimitAuth)
	}

	if cfg.SessionCleanupInterval <= 0 {
		return nil, fmt.Errorf("SESSION_CLEANUP_INTERVAL must be positive: %s", cfg.SessionCleanupInterval)
	}
	for _, entry := range cfg.TrustedProxyCIDRs {
		if entry = strings.TrimSpace(entry); entry != "" && !validProxyEntry(entry) {
			return nil, fmt.Errorf("TRUSTED_PROXY_CIDRS contains an invalid entry: %q", entry)
		}
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	return cfg, nil
}

// validProxyEntry はCIDR表記または単一のIPアドレスであればtrueを返す。
func validProxyEntry(entry string) bool {
	if _, _, err := net.ParseCIDR(entry); err == nil {
		return true
	}
	return net.ParseIP(entry) != nil
}
