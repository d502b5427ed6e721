// Package config holds the run configuration. Everything is passed
// explicitly into the pipeline; there is no ambient process-wide state.
package config

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration
type Config struct {
	// Type selects the load-balancer log dialect: alb or classic-lb.
	Type string `yaml:"type"`

	// SkipParseErrors logs and skips malformed lines instead of
	// aborting the run on the first one.
	SkipParseErrors bool `yaml:"skip_parse_errors"`

	// Workers bounds the number of files parsed concurrently.
	Workers int `yaml:"workers"`

	// QueueSize is the per-file record channel capacity. A slow output
	// sink stalls producers through this bound.
	QueueSize int `yaml:"queue_size"`

	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Default values
const (
	DefaultType      = "alb"
	DefaultQueueSize = 1024
	DefaultLogLevel  = "info"
	DefaultLogFormat = "console"
)

// Default returns the default configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from a YAML file with environment variable
// expansion, applies defaults and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(expandedData, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for unspecified configuration
func (c *Config) applyDefaults() {
	if c.Type == "" {
		c.Type = DefaultType
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Type != "alb" && c.Type != "classic-lb" {
		return fmt.Errorf("invalid load balancer type: %s", c.Type)
	}

	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}

	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive, got %d", c.QueueSize)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true, "console": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}
