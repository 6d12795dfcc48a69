package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvProduction is the LICENSEDESK_ENV value that enables production checks.
const EnvProduction = "production"

// Config is the desk's runtime configuration, read from LICENSEDESK_* variables.
type Config struct {
	Addr   string `env:"LICENSEDESK_ADDR"    envDefault:":8080"`
	Env    string `env:"LICENSEDESK_ENV"     envDefault:"development"`
	DBPath string `env:"LICENSEDESK_DB_PATH" envDefault:"licensedesk.db"`

	// Federation backend.
	BackendURL     string        `env:"LICENSEDESK_BACKEND_URL"     envDefault:"http://localhost:8000"`
	BackendToken   string        `env:"LICENSEDESK_BACKEND_TOKEN"`
	BackendSecret  string        `env:"LICENSEDESK_BACKEND_SECRET"`
	BackendTimeout time.Duration `env:"LICENSEDESK_BACKEND_TIMEOUT" envDefault:"15s"`

	CSRFKey        string   `env:"LICENSEDESK_CSRF_KEY"`
	TrustedOrigins []string `env:"LICENSEDESK_TRUSTED_ORIGINS" envSeparator:","`

	LogLevel string `env:"LICENSEDESK_LOG_LEVEL" envDefault:"info"`

	ResendKey  string `env:"LICENSEDESK_RESEND_KEY"`
	EmailFrom  string `env:"LICENSEDESK_EMAIL_FROM"  envDefault:"Federation Licensing <licensing@federation.local>"`
	EmailReply string `env:"LICENSEDESK_EMAIL_REPLY" envDefault:"licensing@federation.local"`

	OTelEndpoint string `env:"LICENSEDESK_OTEL_ENDPOINT"`

	OutboxInterval  time.Duration `env:"LICENSEDESK_OUTBOX_INTERVAL"  envDefault:"1m"`
	OutboxRetention time.Duration `env:"LICENSEDESK_OUTBOX_RETENTION" envDefault:"720h"`
	WorkflowTTL     time.Duration `env:"LICENSEDESK_WORKFLOW_TTL"     envDefault:"2h"`
}

// Load parses the environment into a Config and validates it.
// PRE: none
// POST: Returns a validated Config or an error naming the bad variable
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProduction reports whether production-only checks apply.
func (c Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Validate checks cross-field rules env tags cannot express.
func (c Config) Validate() error {
	if c.BackendURL == "" {
		return errors.New("LICENSEDESK_BACKEND_URL is required")
	}
	if c.BackendTimeout <= 0 {
		return errors.New("LICENSEDESK_BACKEND_TIMEOUT must be positive")
	}
	if c.OutboxInterval <= 0 {
		return errors.New("LICENSEDESK_OUTBOX_INTERVAL must be positive")
	}
	if c.OutboxRetention < 0 {
		return errors.New("LICENSEDESK_OUTBOX_RETENTION must not be negative")
	}
	if c.WorkflowTTL <= 0 {
		return errors.New("LICENSEDESK_WORKFLOW_TTL must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.CSRFKey != "" {
		if _, err := c.CSRFKeyBytes(); err != nil {
			return err
		}
	} else if c.IsProduction() {
		return errors.New("LICENSEDESK_CSRF_KEY is required in production")
	}
	return nil
}

// CSRFKeyBytes decodes the hex CSRF key.
// POST: Returns 32 bytes, or nil with no error when the key is unset
func (c Config) CSRFKeyBytes() ([]byte, error) {
	if c.CSRFKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(c.CSRFKey)
	if err != nil || len(key) != 32 {
		return nil, errors.New("LICENSEDESK_CSRF_KEY must be 64 hex characters (32 bytes)")
	}
	return key, nil
}

// SlogLevel maps LogLevel onto a slog level; empty means info.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("LICENSEDESK_LOG_LEVEL: %w", err)
	}
	return level, nil
}
