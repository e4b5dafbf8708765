// Package config loads shadowtrace configuration from a YAML file with
// environment overrides.
//
// Environment variables win over the file:
//   - SHADOWTRACE_URL: endpoint
//   - SHADOWTRACE_TOKEN: token
//   - SHADOWTRACE_ADDRESS: collector.address
//   - SHADOWTRACE_DB: collector.database
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/vincentbai/shadowtrace/internal/buffer"
	"github.com/vincentbai/shadowtrace/internal/codec"
	"github.com/vincentbai/shadowtrace/internal/scrub"
	"github.com/vincentbai/shadowtrace/internal/server"
	"github.com/vincentbai/shadowtrace/internal/transport"
)

// DefaultAddress is where the collector listens when nothing else is
// configured.
const DefaultAddress = "127.0.0.1:8123"

// Session storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config is the full shadowtrace configuration.
type Config struct {
	// Endpoint is the collection endpoint base URL.
	Endpoint string            `yaml:"endpoint"`
	Headers  map[string]string `yaml:"headers"`
	Token    string            `yaml:"token"`

	// SampleRate is left nil when unset so the client default applies.
	SampleRate *float64 `yaml:"sample_rate"`

	Transport transport.Mode `yaml:"transport"`
	// Encoding is "json" or "cbor".
	Encoding string `yaml:"encoding"`
	Compress bool   `yaml:"compress"`

	Buffer buffer.Config `yaml:"buffer"`
	Scrub  []scrub.Rule  `yaml:"scrub"`

	Session   SessionConfig   `yaml:"session"`
	Collector CollectorConfig `yaml:"collector"`
}

// SessionConfig selects where the session id is persisted.
type SessionConfig struct {
	// Driver is memory, sqlite or redis.
	Driver string `yaml:"driver"`
	// Path is the SQLite file for the sqlite driver.
	Path string `yaml:"path"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
}

// CollectorConfig configures the collection endpoint server.
type CollectorConfig struct {
	Address string `yaml:"address"`
	// Database is the SQLite file events are stored in. Empty means the
	// platform application data directory.
	Database  string           `yaml:"database"`
	RateLimit server.RateLimit `yaml:"rate_limit"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Transport: transport.ModeQueued,
		Encoding:  "json",
		Session: SessionConfig{
			Driver:      DriverMemory,
			RedisPrefix: "shadowtrace:",
		},
		Collector: CollectorConfig{
			Address: DefaultAddress,
		},
	}
}

// Load reads the file at path over the defaults, applies environment
// overrides and validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	overrides := []struct {
		name   string
		target *string
	}{
		{"SHADOWTRACE_URL", &c.Endpoint},
		{"SHADOWTRACE_TOKEN", &c.Token},
		{"SHADOWTRACE_ADDRESS", &c.Collector.Address},
		{"SHADOWTRACE_DB", &c.Collector.Database},
	}
	for _, o := range overrides {
		if value := os.Getenv(o.name); value != "" {
			*o.target = value
		}
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Transport {
	case "", transport.ModeQueued, transport.ModeBeacon:
	default:
		errs = append(errs, fmt.Errorf("transport: unknown mode %q", c.Transport))
	}
	if _, err := codec.ByName(c.Encoding); err != nil {
		errs = append(errs, fmt.Errorf("encoding: %w", err))
	}
	for i, rule := range c.Scrub {
		if _, err := scrub.ParseKind(string(rule.Kind)); err != nil {
			errs = append(errs, fmt.Errorf("scrub[%d]: %w", i, err))
		}
		if _, err := scrub.ParseMethod(string(rule.Method)); err != nil {
			errs = append(errs, fmt.Errorf("scrub[%d]: %w", i, err))
		}
	}
	switch c.Session.Driver {
	case "", DriverMemory:
	case DriverSQLite:
		if c.Session.Path == "" {
			errs = append(errs, errors.New("session: sqlite driver needs a path"))
		}
	case DriverRedis:
		if c.Session.RedisAddr == "" {
			errs = append(errs, errors.New("session: redis driver needs redis_addr"))
		}
	default:
		errs = append(errs, fmt.Errorf("session: unknown driver %q", c.Session.Driver))
	}
	if c.Buffer.MaxEvents < 0 {
		errs = append(errs, fmt.Errorf("buffer: max_events must not be negative, got %d", c.Buffer.MaxEvents))
	}

	return errors.Join(errs...)
}
