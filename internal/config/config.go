// Package config loads gosheets configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/ericfisherdev/gosheets/internal/domain/model"
)

// Config holds the configuration loaded from environment variables.
type Config struct {
	// CredsFilename points at a service-account key file. When empty, requests
	// carry the stand-in credential and must be served from cassettes.
	CredsFilename string `env:"GS_CREDS_FILENAME"`

	// Cassettes
	CassetteDir    string `env:"GOSHEETS_CASSETTE_DIR" envDefault:"testdata/cassettes"`
	CassetteDB     string `env:"GOSHEETS_CASSETTE_DB"`
	RecordModeName string `env:"GOSHEETS_RECORD_MODE" envDefault:"none"`

	// RecordMode is parsed from RecordModeName by Load.
	RecordMode model.RecordMode `env:"-"`

	// API endpoints
	SheetsBaseURL string `env:"GOSHEETS_SHEETS_BASE_URL" envDefault:"https://sheets.googleapis.com/v4/"`
	DriveBaseURL  string `env:"GOSHEETS_DRIVE_BASE_URL" envDefault:"https://www.googleapis.com/drive/v3/"`

	// Retries and throttling
	RetryWait        time.Duration `env:"GOSHEETS_RETRY_WAIT" envDefault:"1s"`
	RetryMax         int           `env:"GOSHEETS_RETRY_MAX" envDefault:"0"`
	RequestTimeout   time.Duration `env:"GOSHEETS_REQUEST_TIMEOUT" envDefault:"30s"`
	RateLimitRPS     float64       `env:"GOSHEETS_RATE_LIMIT_RPS" envDefault:"0"`
	SweepConcurrency int           `env:"GOSHEETS_SWEEP_CONCURRENCY" envDefault:"4"`

	// Logging
	LogLevel slog.Level `env:"GOSHEETS_LOG_LEVEL" envDefault:"info"`
}

// HasServiceAccount reports whether a service-account key file is configured,
// which is what allows recording against the live API.
func (c *Config) HasServiceAccount() bool {
	return c.CredsFilename != ""
}

// UsesSQLite reports whether cassettes are stored in a SQLite database rather
// than as JSON files.
func (c *Config) UsesSQLite() bool {
	return c.CassetteDB != ""
}

// Load reads configuration from environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	mode, err := model.ParseRecordMode(cfg.RecordModeName)
	if err != nil {
		return nil, fmt.Errorf("GOSHEETS_RECORD_MODE: %w", err)
	}
	cfg.RecordMode = mode

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.RetryWait <= 0 {
		errs = append(errs, fmt.Errorf("GOSHEETS_RETRY_WAIT must be positive, got %s", c.RetryWait))
	}
	if c.RetryMax < 0 {
		errs = append(errs, fmt.Errorf("GOSHEETS_RETRY_MAX must not be negative, got %d", c.RetryMax))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("GOSHEETS_REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout))
	}
	if c.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("GOSHEETS_RATE_LIMIT_RPS must not be negative, got %g", c.RateLimitRPS))
	}
	if c.CassetteDir == "" && c.CassetteDB == "" {
		errs = append(errs, errors.New("one of GOSHEETS_CASSETTE_DIR or GOSHEETS_CASSETTE_DB must be set"))
	}
	if c.RecordMode != model.RecordModeNone && !c.HasServiceAccount() {
		errs = append(errs, fmt.Errorf("GOSHEETS_RECORD_MODE=%s requires GS_CREDS_FILENAME", c.RecordMode))
	}
	return errors.Join(errs...)
}
