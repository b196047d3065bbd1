// Package config loads service configuration from an optional YAML file with
// environment variable overrides. Secrets are env-only and never read from
// the file.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env      string `yaml:"env" env:"HUDDLER_ENV" env-default:"local"`
	BindAddr string `yaml:"bind_addr" env:"HUDDLER_BIND_ADDR" env-default:"0.0.0.0"`
	Port     string `yaml:"port" env:"HUDDLER_PORT" env-default:"8080"`

	// BaseURL is the public origin of the app, used to build invite links.
	BaseURL string `yaml:"base_url" env:"HUDDLER_BASE_URL" env-default:"http://localhost:8080"`

	AuthSecret    string `yaml:"-" env:"HUDDLER_AUTH_SECRET"`
	SessionSecret string `yaml:"-" env:"HUDDLER_SESSION_SECRET"`

	TokenTTLMinutes int `yaml:"token_ttl_minutes" env:"HUDDLER_TOKEN_TTL_MINUTES" env-default:"60"`
	InviteTTLHours  int `yaml:"invite_ttl_hours" env:"HUDDLER_INVITE_TTL_HOURS" env-default:"72"`

	RateBurst  int `yaml:"rate_burst" env:"HUDDLER_RATE_BURST" env-default:"20"`
	RatePerSec int `yaml:"rate_per_sec" env:"HUDDLER_RATE_PER_SEC" env-default:"10"`

	MigrateOnStart bool   `yaml:"migrate_on_start" env:"HUDDLER_MIGRATE_ON_START" env-default:"false"`
	MigrationsDir  string `yaml:"migrations_dir" env:"HUDDLER_MIGRATIONS_DIR" env-default:"migrations/sql"`
	SeedsDir       string `yaml:"seeds_dir" env:"HUDDLER_SEEDS_DIR" env-default:"migrations/seeds"`

	// BootstrapAdminEmail, when set, gets a super_admin identity created at
	// startup if one does not exist yet. Password comes from the env-only
	// secret below.
	BootstrapAdminEmail    string `yaml:"bootstrap_admin_email" env:"HUDDLER_BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `yaml:"-" env:"HUDDLER_BOOTSTRAP_ADMIN_PASSWORD"`

	Database Database `yaml:"database"`
	CMS      CMS      `yaml:"cms"`
}

// Database holds the Postgres connection settings. An empty Host means the
// service runs on in-memory stores, which is only useful for local demos.
type Database struct {
	Host     string `yaml:"host" env:"HUDDLER_DB_HOST"`
	Port     string `yaml:"port" env:"HUDDLER_DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"HUDDLER_DB_USER" env-default:"huddler"`
	Password string `yaml:"-" env:"HUDDLER_DB_PASSWORD"`
	Name     string `yaml:"name" env:"HUDDLER_DB_NAME" env-default:"huddler"`
	SSLMode  string `yaml:"ssl_mode" env:"HUDDLER_DB_SSL_MODE" env-default:"disable"`
}

// DSN renders the keyword/value connection string for the pgx stdlib driver.
func (d Database) DSN() string {
	if d.Host == "" {
		return ""
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// CMS points at the hosted headless CMS serving portal content.
type CMS struct {
	BaseURL string `yaml:"base_url" env:"HUDDLER_CMS_URL"`
	Token   string `yaml:"-" env:"HUDDLER_CMS_TOKEN"`
}

// Load reads config.yaml when present, then applies env overrides. Without a
// file it falls back to env-only configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("read config from env: %w", err)
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.AuthSecret == "" {
		if c.Env != "local" {
			return errors.New("HUDDLER_AUTH_SECRET is required outside local env")
		}
		c.AuthSecret = "local-dev-auth-secret"
	}
	if c.SessionSecret == "" {
		if c.Env != "local" {
			return errors.New("HUDDLER_SESSION_SECRET is required outside local env")
		}
		c.SessionSecret = "local-dev-session-secret"
	}
	if c.TokenTTLMinutes <= 0 || c.InviteTTLHours <= 0 {
		return errors.New("token TTLs must be positive")
	}
	return nil
}

// Addr is the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.BindAddr, c.Port)
}
