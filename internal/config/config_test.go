package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Type != "alb" {
		t.Errorf("Type = %q, want alb", cfg.Type)
	}
	if cfg.SkipParseErrors {
		t.Error("SkipParseErrors should default to false")
	}
	if cfg.Workers <= 0 {
		t.Errorf("Workers = %d, want positive", cfg.Workers)
	}
	if cfg.QueueSize != DefaultQueueSize {
		t.Errorf("QueueSize = %d, want %d", cfg.QueueSize, DefaultQueueSize)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
type: classic-lb
skip_parse_errors: true
workers: 2
queue_size: 16
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Type != "classic-lb" {
		t.Errorf("Type = %q, want classic-lb", cfg.Type)
	}
	if !cfg.SkipParseErrors {
		t.Error("SkipParseErrors = false, want true")
	}
	if cfg.Workers != 2 {
		t.Errorf("Workers = %d, want 2", cfg.Workers)
	}
	if cfg.QueueSize != 16 {
		t.Errorf("QueueSize = %d, want 16", cfg.QueueSize)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want debug/json", cfg.Logging)
	}
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `skip_parse_errors: true`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Type != DefaultType {
		t.Errorf("Type = %q, want %q", cfg.Type, DefaultType)
	}
	if cfg.Workers <= 0 {
		t.Errorf("Workers = %d, want positive default", cfg.Workers)
	}
	if cfg.Logging.Format != DefaultLogFormat {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, DefaultLogFormat)
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("ELB2JSON_TEST_TYPE", "classic-lb")
	path := writeConfig(t, `type: ${ELB2JSON_TEST_TYPE}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Type != "classic-lb" {
		t.Errorf("Type = %q, want classic-lb", cfg.Type)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "type: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "bad type", mutate: func(c *Config) { c.Type = "nlb" }, wantErr: true},
		{name: "zero workers", mutate: func(c *Config) { c.Workers = 0 }, wantErr: true},
		{name: "negative queue", mutate: func(c *Config) { c.QueueSize = -1 }, wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: true},
		{name: "bad log format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
