package scheduler

import (
	"os"
	"strconv"
	"time"
)

// Config controls sweep cadence and batch size.
type Config struct {
	RunInterval time.Duration
	StaleAfter  time.Duration
	BatchSize   int
}

func DefaultConfig() Config {
	return Config{
		RunInterval: time.Minute,
		StaleAfter:  2 * time.Minute,
		BatchSize:   50,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = defaults.StaleAfter
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	return c
}

func ProvideConfig() Config {
	cfg := Config{}
	if v := os.Getenv("SCHEDULER_RUN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RunInterval = d
		}
	}
	if v := os.Getenv("SCHEDULER_STALE_AFTER"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StaleAfter = d
		}
	}
	if v := os.Getenv("SCHEDULER_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BatchSize = n
		}
	}
	return cfg.withDefaults()
}
