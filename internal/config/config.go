// Package config loads stonetick settings from an optional YAML file and
// STONETICK_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/stonetick/internal/engine"
)

// Config is the top-level configuration.
type Config struct {
	Tick    TickConfig    `yaml:"tick"`
	Offline OfflineConfig `yaml:"offline"`
	Save    SaveConfig    `yaml:"save"`
	Random  RandomConfig  `yaml:"random"`

	MiningEnabled *bool  `yaml:"mining_enabled"`
	LogLevel      string `yaml:"log_level"` // debug | info | warn | error
}

// TickConfig controls the live clock.
type TickConfig struct {
	Interval       time.Duration `yaml:"interval"`
	CountdownEvery time.Duration `yaml:"countdown_every"`
	SaveEvery      int           `yaml:"save_every"`
	HistoryLimit   int           `yaml:"history_limit"`
}

// OfflineConfig controls catch-up replay.
type OfflineConfig struct {
	BatchDivisor    int           `yaml:"batch_divisor"`
	MinBatch        int           `yaml:"min_batch"`
	BatchYield      time.Duration `yaml:"batch_yield"`
	FinalizeDelay   time.Duration `yaml:"finalize_delay"`
	SummaryDuration time.Duration `yaml:"summary_duration"`
}

// SaveConfig selects the storage backend.
type SaveConfig struct {
	Backend string        `yaml:"backend"` // sqlite | file
	Path    string        `yaml:"path"`    // database file or directory
	Key     string        `yaml:"key"`
	Version string        `yaml:"version"`
	Timeout time.Duration `yaml:"timeout"`
}

// RandomConfig selects the entropy source.
type RandomConfig struct {
	Seed   int64  `yaml:"seed"` // 0 means unseeded
	APIKey string `yaml:"-"`    // RANDOM_ORG_API_KEY only
}

// Load reads path (if non-empty), applies environment overrides, fills
// defaults and validates.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Save.Backend = envOrDefault("STONETICK_SAVE_BACKEND", c.Save.Backend)
	c.Save.Path = envOrDefault("STONETICK_SAVE_PATH", c.Save.Path)
	c.Save.Key = envOrDefault("STONETICK_SAVE_KEY", c.Save.Key)
	c.LogLevel = envOrDefault("STONETICK_LOG_LEVEL", c.LogLevel)
	c.Tick.Interval = envDurationOrDefault("STONETICK_TICK_INTERVAL", c.Tick.Interval)
	c.Tick.SaveEvery = envIntOrDefault("STONETICK_SAVE_EVERY", c.Tick.SaveEvery)
	c.Random.Seed = int64(envIntOrDefault("STONETICK_SEED", int(c.Random.Seed)))
	c.Random.APIKey = os.Getenv("RANDOM_ORG_API_KEY")

	if v := os.Getenv("STONETICK_MINING"); v != "" {
		if on, err := strconv.ParseBool(v); err == nil {
			c.MiningEnabled = &on
		} else {
			slog.Warn("ignoring STONETICK_MINING", "value", v)
		}
	}
}

func (c *Config) applyDefaults() {
	d := engine.DefaultSettings()

	if c.Tick.Interval <= 0 {
		c.Tick.Interval = d.Interval
	}
	if c.Tick.CountdownEvery <= 0 {
		c.Tick.CountdownEvery = d.CountdownEvery
	}
	if c.Tick.SaveEvery <= 0 {
		c.Tick.SaveEvery = int(d.SaveEvery)
	}
	if c.Tick.HistoryLimit <= 0 {
		c.Tick.HistoryLimit = d.HistoryLimit
	}
	if c.Offline.BatchDivisor <= 0 {
		c.Offline.BatchDivisor = d.BatchDivisor
	}
	if c.Offline.MinBatch <= 0 {
		c.Offline.MinBatch = d.MinBatch
	}
	if c.Offline.BatchYield <= 0 {
		c.Offline.BatchYield = d.BatchYield
	}
	if c.Offline.FinalizeDelay <= 0 {
		c.Offline.FinalizeDelay = d.FinalizeDelay
	}
	if c.Offline.SummaryDuration <= 0 {
		c.Offline.SummaryDuration = d.SummaryDuration
	}
	if c.Save.Backend == "" {
		c.Save.Backend = "sqlite"
	}
	if c.Save.Path == "" {
		if c.Save.Backend == "file" {
			c.Save.Path = "saves"
		} else {
			c.Save.Path = "stonetick.db"
		}
	}
	if c.Save.Key == "" {
		c.Save.Key = "stonetickSave"
	}
	if c.Save.Version == "" {
		c.Save.Version = "1.0.0"
	}
	if c.Save.Timeout <= 0 {
		c.Save.Timeout = d.SaveTimeout
	}
	if c.MiningEnabled == nil {
		off := false
		c.MiningEnabled = &off
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Save.Backend {
	case "sqlite", "file":
	default:
		errs = append(errs, fmt.Errorf("save.backend %q: want sqlite or file", c.Save.Backend))
	}
	if c.Tick.CountdownEvery > c.Tick.Interval {
		errs = append(errs, fmt.Errorf("tick.countdown_every %s exceeds tick.interval %s", c.Tick.CountdownEvery, c.Tick.Interval))
	}
	if strings.ContainsAny(c.Save.Key, `/\`) {
		errs = append(errs, fmt.Errorf("save.key %q must not contain path separators", c.Save.Key))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return l, nil
}

// Mining reports whether new games start with mining on. Off by default;
// the player turns it on.
func (c *Config) Mining() bool {
	return c.MiningEnabled != nil && *c.MiningEnabled
}

// Settings converts to engine settings.
func (c *Config) Settings() engine.Settings {
	return engine.Settings{
		Interval:        c.Tick.Interval,
		CountdownEvery:  c.Tick.CountdownEvery,
		SaveEvery:       uint64(c.Tick.SaveEvery),
		HistoryLimit:    c.Tick.HistoryLimit,
		BatchDivisor:    c.Offline.BatchDivisor,
		MinBatch:        c.Offline.MinBatch,
		BatchYield:      c.Offline.BatchYield,
		FinalizeDelay:   c.Offline.FinalizeDelay,
		SummaryDuration: c.Offline.SummaryDuration,
		SaveTimeout:     c.Save.Timeout,
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
