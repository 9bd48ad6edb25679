package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Webhooks.MaxAttempts != 3 {
		t.Errorf("Webhooks.MaxAttempts = %d, want 3", cfg.Webhooks.MaxAttempts)
	}
	if cfg.Webhooks.Timeout != 10*time.Second {
		t.Errorf("Webhooks.Timeout = %v, want 10s", cfg.Webhooks.Timeout)
	}
	if cfg.Workers.Concurrency != 16 {
		t.Errorf("Workers.Concurrency = %d, want 16", cfg.Workers.Concurrency)
	}
	if cfg.Kafka.MutationsTopic != "entity.mutations" {
		t.Errorf("Kafka.MutationsTopic = %q, want entity.mutations", cfg.Kafka.MutationsTopic)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
webhooks:
  max_attempts: 5
  initial_backoff: 250ms
filters:
  classifier_url: http://classifier.local/classify
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Webhooks.MaxAttempts != 5 {
		t.Errorf("Webhooks.MaxAttempts = %d, want 5", cfg.Webhooks.MaxAttempts)
	}
	if cfg.Webhooks.InitialBackoff != 250*time.Millisecond {
		t.Errorf("Webhooks.InitialBackoff = %v, want 250ms", cfg.Webhooks.InitialBackoff)
	}
	if cfg.Filters.ClassifierURL != "http://classifier.local/classify" {
		t.Errorf("Filters.ClassifierURL = %q", cfg.Filters.ClassifierURL)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
