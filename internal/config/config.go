// Package config loads service settings from the environment via Viper,
// with defaults suitable for local development.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServerPort      string        `mapstructure:"SERVER_PORT"`
	Env             string        `mapstructure:"ENVIRONMENT"`
	SessionToken    string        `mapstructure:"SESSION_TOKEN"`
	ProcessingDelay time.Duration `mapstructure:"PROCESSING_DELAY"`
	FixturePath     string        `mapstructure:"FIXTURE_PATH"`
	DemoBalance     float64       `mapstructure:"DEMO_BALANCE"`
	LiveBalance     float64       `mapstructure:"LIVE_BALANCE"`
	SummaryCacheTTL time.Duration `mapstructure:"SUMMARY_CACHE_TTL"`
	RateLimitRPS    float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `mapstructure:"RATE_LIMIT_BURST"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("PROCESSING_DELAY", "2s")
	v.SetDefault("FIXTURE_PATH", "")
	v.SetDefault("DEMO_BALANCE", 10000.0)
	v.SetDefault("LIVE_BALANCE", 2500.0)
	v.SetDefault("SUMMARY_CACHE_TTL", "30s")
	v.SetDefault("RATE_LIMIT_RPS", 10.0)
	v.SetDefault("RATE_LIMIT_BURST", 30)

	keys := []string{
		"SERVER_PORT", "ENVIRONMENT", "SESSION_TOKEN", "PROCESSING_DELAY",
		"FIXTURE_PATH", "DEMO_BALANCE", "LIVE_BALANCE", "SUMMARY_CACHE_TTL",
		"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.SessionToken == "" {
		return nil, fmt.Errorf("SESSION_TOKEN is required")
	}
	if cfg.ProcessingDelay <= 0 {
		cfg.ProcessingDelay = 2 * time.Second
	}
	if cfg.SummaryCacheTTL <= 0 {
		cfg.SummaryCacheTTL = 30 * time.Second
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 10
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 30
	}
	return &cfg, nil
}
