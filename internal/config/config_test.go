package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

// TestLoad_Defaults verifies envDefault tags apply when nothing is set.
func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.BackendTimeout != 15*time.Second {
		t.Errorf("BackendTimeout = %v, want 15s", cfg.BackendTimeout)
	}
	if cfg.WorkflowTTL != 2*time.Hour {
		t.Errorf("WorkflowTTL = %v, want 2h", cfg.WorkflowTTL)
	}
	if cfg.OutboxRetention != 30*24*time.Hour {
		t.Errorf("OutboxRetention = %v, want 720h", cfg.OutboxRetention)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LICENSEDESK_BACKEND_URL", "https://api.example.org")
	t.Setenv("LICENSEDESK_BACKEND_TIMEOUT", "3s")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BackendURL != "https://api.example.org" || cfg.BackendTimeout != 3*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
}

// TestValidate_CSRFKey covers key length and the production requirement.
func TestValidate_CSRFKey(t *testing.T) {
	base := Config{BackendURL: "http://x", BackendTimeout: time.Second, OutboxInterval: time.Minute, WorkflowTTL: time.Hour}

	bad := base
	bad.CSRFKey = "abcd"
	if err := bad.Validate(); err == nil || !strings.Contains(err.Error(), "64 hex") {
		t.Errorf("short key err = %v", err)
	}

	prod := base
	prod.Env = EnvProduction
	if err := prod.Validate(); err == nil {
		t.Error("production without CSRF key should fail")
	}

	good := prod
	good.CSRFKey = strings.Repeat("ab", 32)
	if err := good.Validate(); err != nil {
		t.Errorf("valid key err = %v", err)
	}
	key, _ := good.CSRFKeyBytes()
	if len(key) != 32 {
		t.Errorf("len(key) = %d, want 32", len(key))
	}
}

func TestLoad_TrustedOriginsAndLogLevel(t *testing.T) {
	t.Setenv("LICENSEDESK_TRUSTED_ORIGINS", "desk.example.org,admin.example.org")
	t.Setenv("LICENSEDESK_LOG_LEVEL", "debug")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.TrustedOrigins) != 2 || cfg.TrustedOrigins[1] != "admin.example.org" {
		t.Errorf("TrustedOrigins = %v", cfg.TrustedOrigins)
	}
	if level, _ := cfg.SlogLevel(); level != slog.LevelDebug {
		t.Errorf("SlogLevel = %v, want debug", level)
	}

	t.Setenv("LICENSEDESK_LOG_LEVEL", "loud")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "LICENSEDESK_LOG_LEVEL") {
		t.Errorf("bad level err = %v", err)
	}
}

func TestValidate_OutboxRetention(t *testing.T) {
	cfg := Config{BackendURL: "http://x", BackendTimeout: time.Second, OutboxInterval: time.Minute, WorkflowTTL: time.Hour}
	if err := cfg.Validate(); err != nil {
		t.Errorf("zero retention err = %v", err)
	}
	cfg.OutboxRetention = -time.Hour
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "LICENSEDESK_OUTBOX_RETENTION") {
		t.Errorf("negative retention err = %v", err)
	}
}
