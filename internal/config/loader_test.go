package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("expected max_conns 15, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Server.RequestTimeout != 5*time.Second {
		t.Errorf("expected request timeout 5s, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Auth.AccessTokenExpiry != 15*time.Minute {
		t.Errorf("expected token expiry 15m, got %v", cfg.Auth.AccessTokenExpiry)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
  cors_origin: "http://example.com"
postgres:
  max_conns: 20
cache:
  list_ttl: 10s
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.CORSOrigin != "http://example.com" {
		t.Errorf("expected cors http://example.com, got %s", cfg.Server.CORSOrigin)
	}
	if cfg.Postgres.MaxConns != 20 {
		t.Errorf("expected max_conns 20, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Cache.ListTTL != 10*time.Second {
		t.Errorf("expected list TTL 10s, got %v", cfg.Cache.ListTTL)
	}
	// Unchanged fields keep defaults
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL, got %s", cfg.NATS.URL)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	if err := loadYAML(&cfg, "/nonexistent/path.yaml"); err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("DELIVERYHUB_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/test")
	t.Setenv("DELIVERYHUB_PG_MAX_CONNS", "25")
	t.Setenv("DELIVERYHUB_JWT_SECRET", "env-secret")
	t.Setenv("DELIVERYHUB_REQUEST_TIMEOUT", "3s")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://test:test@db:5432/test" {
		t.Errorf("expected test DSN, got %s", cfg.Postgres.DSN)
	}
	if cfg.Postgres.MaxConns != 25 {
		t.Errorf("expected max_conns 25, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Auth.JWTSecret != "env-secret" {
		t.Errorf("expected env secret, got %s", cfg.Auth.JWTSecret)
	}
	if cfg.Server.RequestTimeout != 3*time.Second {
		t.Errorf("expected request timeout 3s, got %v", cfg.Server.RequestTimeout)
	}
}

func TestValidateRequired(t *testing.T) {
	cfg := Defaults()
	cfg.Auth.JWTSecret = ""
	if err := validate(&cfg); err == nil {
		t.Error("expected error for missing jwt secret")
	}

	cfg = Defaults()
	cfg.Postgres.DSN = ""
	if err := validate(&cfg); err == nil {
		t.Error("expected error for missing DSN")
	}

	cfg = Defaults()
	cfg.Server.RequestTimeout = 0
	if err := validate(&cfg); err == nil {
		t.Error("expected error for zero request timeout")
	}
}
