// Package config loads server settings from configuration/<APP_ENV>.yaml
// with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)

// DefaultEnvironment is used when APP_ENV is unset
const DefaultEnvironment = "local"

// ErrInvalidConfig marks a configuration that fails validation
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete server configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Auth    AuthConfig    `yaml:"auth"`
	Storage StorageConfig `yaml:"storage"`
	Events  EventsConfig  `yaml:"events"`
	Session SessionConfig `yaml:"session"`
}

// ServerConfig holds listener settings
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AuthConfig holds token and password settings
type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"`
	JWTTTL         time.Duration `yaml:"jwt_ttl"`
	BcryptCost     int           `yaml:"bcrypt_cost"`
	AdminUsernames []string      `yaml:"admin_usernames"`
}

// StorageConfig selects and configures the account store
type StorageConfig struct {
	Type        string `yaml:"type"`
	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
}

// EventsConfig configures lobby event publishing. An empty NATS URL logs
// events instead.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
}

// SessionConfig holds connection session settings
type SessionConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ClientTimeout     time.Duration `yaml:"client_timeout"`
	HistorySize       int           `yaml:"history_size"`
	// AllowedOrigins may open the lobby socket with the token cookie
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Auth: AuthConfig{
			JWTTTL:     30 * time.Minute,
			BcryptCost: 10,
		},
		Storage: StorageConfig{
			Type: StorageMemory,
		},
		Session: SessionConfig{
			HeartbeatInterval: 5 * time.Second,
			ClientTimeout:     10 * time.Second,
			HistorySize:       5,
		},
	}
}

// Load reads <dir>/<APP_ENV>.yaml over the defaults, applies environment
// overrides and validates the result. A missing file is not an error.
func Load(dir string) (Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = DefaultEnvironment
	}

	cfg := Default()
	path := filepath.Join(dir, env+".yaml")
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := decode(f, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("open %s: %w", path, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnv overrides fields from environment variables
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
			}
			*dst = n
		}
		return nil
	}
	duration := func(key string, dst *time.Duration) error {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
			}
			*dst = d
		}
		return nil
	}

	str("HOST", &c.Server.Host)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("JWT_SECRET", &c.Auth.JWTSecret)
	str("STORAGE_TYPE", &c.Storage.Type)
	str("REDIS_URL", &c.Storage.RedisURL)
	str("DATABASE_URL", &c.Storage.DatabaseURL)
	str("NATS_URL", &c.Events.NATSURL)
	if v, ok := lookup("ADMIN_USERNAMES"); ok && v != "" {
		c.Auth.AdminUsernames = strings.Split(v, ",")
	}
	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		c.Session.AllowedOrigins = strings.Split(v, ",")
	}

	for _, err := range []error{
		integer("PORT", &c.Server.Port),
		integer("HISTORY_SIZE", &c.Session.HistorySize),
		duration("JWT_TTL", &c.Auth.JWTTTL),
		duration("HEARTBEAT_INTERVAL", &c.Session.HeartbeatInterval),
		duration("CLIENT_TIMEOUT", &c.Session.ClientTimeout),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate reports the first setting that cannot be used
func (c Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Server.Port)
	case c.Auth.JWTSecret == "":
		return fmt.Errorf("%w: jwt secret is required", ErrInvalidConfig)
	case c.Auth.JWTTTL <= 0:
		return fmt.Errorf("%w: jwt ttl must be positive", ErrInvalidConfig)
	case c.Session.HeartbeatInterval <= 0:
		return fmt.Errorf("%w: heartbeat interval must be positive", ErrInvalidConfig)
	case c.Session.ClientTimeout <= c.Session.HeartbeatInterval:
		return fmt.Errorf("%w: client timeout must exceed the heartbeat interval", ErrInvalidConfig)
	case c.Session.HistorySize <= 0:
		return fmt.Errorf("%w: history size must be positive", ErrInvalidConfig)
	}

	switch c.Storage.Type {
	case StorageMemory:
	case StorageRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("%w: redis url required when storage type is redis", ErrInvalidConfig)
		}
	case StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("%w: database url required when storage type is postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage type %q", ErrInvalidConfig, c.Storage.Type)
	}

	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Logger builds the process logger described by the log settings
func (c LogConfig) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalidConfig, s)
	}
	return level, nil
}
