package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadReadsAllSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9090"
redis:
  addr: localhost:6379
postgres:
  url: postgres://quiz@localhost/quiz
quiz:
  ttl: 2m
auth:
  jwtSecret: s3cret
ledger:
  backend: redis
  guestTTL: 30m
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Auth.JWTSecret != "s3cret" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if got := cfg.LedgerBackend(); got != BackendRedis {
		t.Fatalf("expected explicit redis backend, got %s", got)
	}
	if got := TTLDuration(cfg.Quiz.TTL, time.Minute); got != 2*time.Minute {
		t.Fatalf("expected 2m ttl, got %s", got)
	}
	if got := TTLDuration(cfg.Ledger.GuestTTL, time.Hour); got != 30*time.Minute {
		t.Fatalf("expected 30m guest ttl, got %s", got)
	}
}

func TestLedgerBackendDefaults(t *testing.T) {
	var cfg Config
	if got := cfg.LedgerBackend(); got != BackendMemory {
		t.Fatalf("expected memory, got %s", got)
	}
	cfg.Redis.Addr = "localhost:6379"
	if got := cfg.LedgerBackend(); got != BackendRedis {
		t.Fatalf("expected redis, got %s", got)
	}
	cfg.Postgres.URL = "postgres://localhost/quiz"
	if got := cfg.LedgerBackend(); got != BackendPostgres {
		t.Fatalf("expected postgres, got %s", got)
	}
	cfg.Ledger.Backend = "bogus"
	if got := cfg.LedgerBackend(); got != BackendPostgres {
		t.Fatalf("expected unknown backend to fall back, got %s", got)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for empty, got %s", got)
	}
	if got := TTLDuration("soon", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback for garbage, got %s", got)
	}
}
