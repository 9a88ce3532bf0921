// Package config loads the engine settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/zakazai/jsonsql/internal/types"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config holds everything needed to open an engine
type Config struct {
	DataDir  string      `yaml:"data_dir"`
	Database string      `yaml:"database"`
	LogLevel string      `yaml:"log_level"`
	Cache    CacheConfig `yaml:"cache"`
	Queue    QueueConfig `yaml:"queue"`
}

// CacheConfig bounds the table cache
type CacheConfig struct {
	MaxItems       int   `yaml:"max_items"`
	MaxMemoryBytes int64 `yaml:"max_memory_bytes"`
}

// QueueConfig tunes the write queue. FlushSchedule is a cron schedule with a
// seconds field; empty disables the background flusher.
type QueueConfig struct {
	Limit         int    `yaml:"limit"`
	FlushSchedule string `yaml:"flush_schedule"`
}

// Default returns the built-in settings
func Default() Config {
	return Config{
		DataDir:  "data",
		LogLevel: "warning",
		Cache: CacheConfig{
			MaxItems:       1000,
			MaxMemoryBytes: 100 << 20,
		},
		Queue: QueueConfig{
			Limit: 1000,
		},
	}
}

// Load reads path over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, cfg.Validate()
}

func (c *Config) decode(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(c)
}

// Validate checks the settings for values the engine cannot run with
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is empty", ErrInvalidConfig)
	}
	if _, err := types.ParseLogLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Cache.MaxItems < 1 {
		return fmt.Errorf("%w: cache.max_items must be positive", ErrInvalidConfig)
	}
	if c.Cache.MaxMemoryBytes < 1 {
		return fmt.Errorf("%w: cache.max_memory_bytes must be positive", ErrInvalidConfig)
	}
	if c.Queue.Limit < 1 {
		return fmt.Errorf("%w: queue.limit must be positive", ErrInvalidConfig)
	}
	return nil
}

// Level returns the parsed log level. Call Validate first.
func (c Config) Level() types.LogLevel {
	level, err := types.ParseLogLevel(c.LogLevel)
	if err != nil {
		return types.LogLevelWarning
	}
	return level
}
