package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingSecretFails(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(""); err == nil {
		t.Fatal("expected an error when no jwt secret is configured")
	}
}

func TestLoad_FileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := "http_addr: \":9000\"\njwt_secret: from-file\nsweep_every: 5m\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("NATS_URL", "nats://broker:4222")
	t.Setenv("JWT_SECRET", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPAddr != ":9000" {
		t.Errorf("expected file http_addr, got %q", cfg.HTTPAddr)
	}
	if cfg.JWTSecret != "from-file" {
		t.Errorf("expected file jwt_secret, got %q", cfg.JWTSecret)
	}
	if cfg.SweepEvery != 5*time.Minute {
		t.Errorf("expected 5m sweep interval, got %v", cfg.SweepEvery)
	}
	if cfg.NATSURL != "nats://broker:4222" {
		t.Errorf("env override lost: %q", cfg.NATSURL)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("expected default http_addr, got %q", cfg.HTTPAddr)
	}
	if cfg.JWTSecret != "from-env" {
		t.Errorf("expected env jwt_secret, got %q", cfg.JWTSecret)
	}
}
