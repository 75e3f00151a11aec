// Package config loads the YAML configuration shared by all commands.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"breakout-lab/internal/machine"
	"breakout-lab/internal/risk"
)

// EnvPrefix is the prefix for environment overrides, e.g. BREAKOUT_STORAGE_BACKEND.
const EnvPrefix = "BREAKOUT"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

// Config is the root configuration.
type Config struct {
	Strategy StrategyConfig `mapstructure:"strategy"`
	Session  SessionConfig  `mapstructure:"session"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Backtest BacktestConfig `mapstructure:"backtest"`
}

// StrategyConfig holds the decision engine parameters.
type StrategyConfig struct {
	MaxBreakAttempts     int       `mapstructure:"max_break_attempts"`
	MinZoneSpreadCents   int64     `mapstructure:"min_zone_spread_cents"`
	MaxZoneSpreadPercent float64   `mapstructure:"max_zone_spread_percent"`
	TargetMultiples      []float64 `mapstructure:"target_multiples"`
	TrailStopAt1R        bool      `mapstructure:"trail_stop_at_1r"`
}

// SessionConfig describes the exchange-local trading window.
type SessionConfig struct {
	Timezone       string `mapstructure:"timezone"`
	BarSizeMinutes int    `mapstructure:"bar_size_minutes"`
	ZoneStart      string `mapstructure:"zone_start"`
	ZoneEnd        string `mapstructure:"zone_end"`
	ExecutionEnd   string `mapstructure:"execution_end"`
}

type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickHouseDSN string `mapstructure:"clickhouse_dsn"`
}

type FeedConfig struct {
	WSURL string `mapstructure:"ws_url"`
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
	Addr      string `mapstructure:"addr"`
}

type BacktestConfig struct {
	Concurrency int  `mapstructure:"concurrency"`
	Verbose     bool `mapstructure:"verbose"`
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// defaults are static and always valid
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	d := machine.DefaultConfig()
	v.SetDefault("strategy.max_break_attempts", d.MaxBreakAttempts)
	v.SetDefault("strategy.min_zone_spread_cents", d.MinZoneSpreadCents)
	v.SetDefault("strategy.max_zone_spread_percent", d.MaxZoneSpreadPercent)
	v.SetDefault("strategy.target_multiples", []float64{d.Multiples.First, d.Multiples.Second, d.Multiples.Third})
	v.SetDefault("strategy.trail_stop_at_1r", d.TrailStopAt1R)

	v.SetDefault("session.timezone", "America/New_York")
	v.SetDefault("session.bar_size_minutes", d.BarSizeMinutes)
	v.SetDefault("session.zone_start", "09:30")
	v.SetDefault("session.zone_end", "09:35")
	v.SetDefault("session.execution_end", "15:55")

	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.clickhouse_dsn", "")

	v.SetDefault("feed.ws_url", "")

	v.SetDefault("metrics.namespace", "breakout_lab")
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("backtest.concurrency", 4)
	v.SetDefault("backtest.verbose", false)
}

// Validate checks every section and names the offending key on failure.
func (c *Config) Validate() error {
	if len(c.Strategy.TargetMultiples) != 3 {
		return invalid("strategy.target_multiples", "exactly three multiples required, got %d", len(c.Strategy.TargetMultiples))
	}
	if err := c.MachineConfig().Validate(); err != nil {
		return fmt.Errorf("%w: strategy: %w", ErrInvalidConfig, err)
	}

	if _, err := time.LoadLocation(c.Session.Timezone); err != nil {
		return invalid("session.timezone", "%v", err)
	}
	clocks := []struct{ key, value string }{
		{"session.zone_start", c.Session.ZoneStart},
		{"session.zone_end", c.Session.ZoneEnd},
		{"session.execution_end", c.Session.ExecutionEnd},
	}
	var minutes [3]int
	for i, ck := range clocks {
		m, err := ParseClock(ck.value)
		if err != nil {
			return invalid(ck.key, "%v", err)
		}
		minutes[i] = m
	}
	if minutes[1] <= minutes[0] {
		return invalid("session.zone_end", "must be after zone_start")
	}
	if minutes[2] <= minutes[1] {
		return invalid("session.execution_end", "must be after zone_end")
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return invalid("storage.postgres_dsn", "required for postgres backend")
		}
	default:
		return invalid("storage.backend", "unknown backend %q", c.Storage.Backend)
	}

	if c.Backtest.Concurrency < 1 {
		return invalid("backtest.concurrency", "must be >= 1")
	}
	return nil
}

// MachineConfig converts the strategy section into engine parameters.
func (c *Config) MachineConfig() machine.Config {
	var m risk.Multiples
	if len(c.Strategy.TargetMultiples) == 3 {
		m = risk.Multiples{
			First:  c.Strategy.TargetMultiples[0],
			Second: c.Strategy.TargetMultiples[1],
			Third:  c.Strategy.TargetMultiples[2],
		}
	}
	return machine.Config{
		MaxBreakAttempts:     c.Strategy.MaxBreakAttempts,
		MinZoneSpreadCents:   c.Strategy.MinZoneSpreadCents,
		MaxZoneSpreadPercent: c.Strategy.MaxZoneSpreadPercent,
		BarSizeMinutes:       c.Session.BarSizeMinutes,
		Multiples:            m,
		TrailStopAt1R:        c.Strategy.TrailStopAt1R,
	}
}

// ParseClock parses "HH:MM" into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func invalid(key, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, key, fmt.Sprintf(format, args...))
}
