package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileDefaultsWhenMissing(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Fetch.Attempts != DefaultFetchAttempts {
		t.Fatalf("expected %d attempts, got %d", DefaultFetchAttempts, cfg.Fetch.Attempts)
	}
	if cfg.Fetch.BaseDelay != DefaultFetchBaseDelay {
		t.Fatalf("expected base delay %s, got %s", DefaultFetchBaseDelay, cfg.Fetch.BaseDelay)
	}
	if cfg.Postgres.MaxConns != DefaultMaxConns {
		t.Fatalf("expected max conns %d, got %d", DefaultMaxConns, cfg.Postgres.MaxConns)
	}
	if cfg.Sync.SkipInactive {
		t.Fatalf("skip_inactive should default to false")
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	doc := `postgres:
  host: db.internal
  database: crous
crous:
  base_url: https://api.example.test/v1/
  timeout: 5s
fetch:
  attempts: 5
  base_delay: 250ms
`
	if err := os.WriteFile(p, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("POSTGRES_HOST", "override.internal")
	t.Setenv("SYNC_SKIP_INACTIVE", "true")

	cfg, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Postgres.Host != "override.internal" {
		t.Fatalf("expected env override for host, got %q", cfg.Postgres.Host)
	}
	if cfg.Crous.BaseURL != "https://api.example.test/v1" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Crous.BaseURL)
	}
	if cfg.Crous.Timeout != 5*time.Second {
		t.Fatalf("expected 5s timeout, got %s", cfg.Crous.Timeout)
	}
	if cfg.Fetch.Attempts != 5 || cfg.Fetch.BaseDelay != 250*time.Millisecond {
		t.Fatalf("unexpected fetch config: %+v", cfg.Fetch)
	}
	if !cfg.Sync.SkipInactive {
		t.Fatalf("expected SYNC_SKIP_INACTIVE to enable skip_inactive")
	}
}

func TestValidate(t *testing.T) {
	cfg, _ := LoadFile(filepath.Join(t.TempDir(), "none.yaml"))
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing base_url to fail validation")
	}
	cfg.Crous.BaseURL = "http://localhost"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	cfg.Fetch.Attempts = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected zero attempts to fail validation")
	}
}

func TestRedacted(t *testing.T) {
	var cfg Config
	cfg.Postgres.Password = "secret"
	cfg.Notify.WebhookURL = "https://hooks.example.test/x"
	r := cfg.Redacted()
	if r.Postgres.Password == "secret" || r.Notify.WebhookURL == cfg.Notify.WebhookURL {
		t.Fatalf("expected secrets masked: %+v", r)
	}
	if cfg.Postgres.Password != "secret" {
		t.Fatalf("Redacted must not modify the receiver")
	}
}
