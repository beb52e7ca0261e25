package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable, e.g. REFTRACKER_HTTP_ADDR.
const Prefix = "REFTRACKER"

// Config holds runtime configuration for the API process.
type Config struct {
	Env      string `envconfig:"ENV" default:"development"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	GRPCAddr string `envconfig:"GRPC_ADDR" default:":9090"`

	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// PGDSN selects the Postgres store; empty runs the in-memory store.
	PGDSN       string `envconfig:"PG_DSN"`
	AutoMigrate bool   `envconfig:"AUTO_MIGRATE" default:"true"`

	AuthSecret      string `envconfig:"AUTH_SECRET"`
	AuthIssuer      string `envconfig:"AUTH_ISSUER" default:"reftracker"`
	TrustUserHeader *bool  `envconfig:"TRUST_USER_HEADER"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`

	RatePerSec   float64  `envconfig:"RATE_PER_SEC" default:"50"`
	RateBurst    int      `envconfig:"RATE_BURST" default:"100"`
	MaxBodyBytes int64    `envconfig:"MAX_BODY_BYTES" default:"1048576"`
	CORSOrigins  []string `envconfig:"CORS_ORIGINS"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("http address must be provided")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("unsupported log format %q", c.LogFormat)
	}
	if c.RatePerSec <= 0 || c.RateBurst <= 0 {
		return errors.New("rate limit must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("max body bytes must be positive")
	}
	if c.IsProduction() && c.AuthSecret == "" && c.TrustUserHeader == nil {
		return errors.New("production requires AUTH_SECRET or an explicit TRUST_USER_HEADER")
	}
	if c.AuthSecret == "" && !c.TrustsUserHeader() {
		return errors.New("no authentication method enabled")
	}
	return nil
}

// IsProduction returns true when the process runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// TrustsUserHeader reports whether the X-User header is accepted as the actor.
// Unset, the header is trusted only when no token secret is configured.
func (c *Config) TrustsUserHeader() bool {
	if c.TrustUserHeader == nil {
		return c.AuthSecret == ""
	}
	return *c.TrustUserHeader
}
