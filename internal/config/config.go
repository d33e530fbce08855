// Package config provides configuration loading and management for the
// rainout service. Values come from an optional YAML file, then a .env file,
// then RAINOUT_* environment variables; defaults fill the gaps and the result
// is validated before use.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override, e.g.
// RAINOUT_POLLING_INTERVAL_MINUTES.
const EnvPrefix = "RAINOUT"

// StorageMode represents the storage backend mode.
type StorageMode string

const (
	// StorageModeMemory uses in-memory implementations for all storage.
	StorageModeMemory StorageMode = "memory"
	// StorageModeStorage uses real storage backends (Kafka, Redis, PostgreSQL).
	StorageModeStorage StorageMode = "storage"
)

// IsValid returns true if the storage mode is valid.
func (m StorageMode) IsValid() bool {
	return m == StorageModeMemory || m == StorageModeStorage
}

// Source modes.
const (
	SourceModeStatic = "static"
	SourceModeHTTP   = "http"
)

// Notification modes.
const (
	NotificationModeQueue = "queue"
	NotificationModeLog   = "log"
)

// Config represents the complete application configuration.
type Config struct {
	Storage      StorageConfig      `yaml:"storage"`
	Server       ServerConfig       `yaml:"server"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Redis        RedisConfig        `yaml:"redis"`
	Postgres     PostgresConfig     `yaml:"postgres"`
	Logger       LoggerConfig       `yaml:"logger"`
	Polling      PollingConfig      `yaml:"polling"`
	Source       SourceConfig       `yaml:"source"`
	Notification NotificationConfig `yaml:"notification"`
}

// StorageConfig holds the storage mode configuration.
type StorageConfig struct {
	Mode StorageMode `yaml:"mode" validate:"oneof=memory storage"`
}

// UseMemory returns true if in-memory storage should be used.
func (c *StorageConfig) UseMemory() bool {
	return c.Mode == StorageModeMemory
}

// UseStorage returns true if real storage backends should be used.
func (c *StorageConfig) UseStorage() bool {
	return c.Mode == StorageModeStorage
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout" split_words:"true"`
	WriteTimeout time.Duration `yaml:"write_timeout" split_words:"true"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" split_words:"true"`
}

// KafkaConfig holds Kafka connection and topic settings.
type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	Topic         string   `yaml:"topic"`
	ConsumerGroup string   `yaml:"consumer_group" split_words:"true"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode" split_words:"true"`
	MaxOpenConns int32  `yaml:"max_open_conns" split_words:"true"`
	MaxIdleConns int32  `yaml:"max_idle_conns" split_words:"true"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// PollingConfig controls the polling run executor and its scheduler.
type PollingConfig struct {
	// Enabled is the kill switch. Nil means enabled.
	Enabled *bool `yaml:"enabled"`

	// ForceRun executes scheduled runs even off the interval boundary.
	ForceRun bool `yaml:"force_run" split_words:"true"`

	IntervalMinutes  int `yaml:"interval_minutes" split_words:"true" validate:"min=1"`
	MaxZipsPerTenant int `yaml:"max_zips_per_tenant" split_words:"true" validate:"min=1"`
	Parallelism      int `yaml:"parallelism" validate:"min=1,max=64"`

	// TickSchedule is the cron expression driving scheduled runs.
	TickSchedule string `yaml:"tick_schedule" split_words:"true" validate:"required"`

	// RunTimeout bounds a single run.
	RunTimeout time.Duration `yaml:"run_timeout" split_words:"true"`

	// IdempotencyTTL is how long a delivered change stays marked. Zero keeps
	// keys forever.
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl" envconfig:"IDEMPOTENCY_TTL"`
}

// IsEnabled reports whether polling is switched on.
func (c *PollingConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// SourceConfig selects and tunes the facility status source.
type SourceConfig struct {
	Mode    string        `yaml:"mode" validate:"oneof=static http"`
	BaseURL string        `yaml:"base_url" envconfig:"BASE_URL" validate:"required_if=Mode http,omitempty,url"`
	Timeout time.Duration `yaml:"timeout"`

	MaxRetries int           `yaml:"max_retries" split_words:"true" validate:"min=0,max=10"`
	RetryDelay time.Duration `yaml:"retry_delay" split_words:"true"`

	// BreakerFailures consecutive failures open the circuit for BreakerTimeout.
	BreakerFailures uint32        `yaml:"breaker_failures" split_words:"true"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout" split_words:"true"`

	// StaticEvents feed the static source in development.
	StaticEvents []StaticEvent `yaml:"static_events" ignored:"true"`
}

// StaticEvent is one fixed facility status served by the static source.
type StaticEvent struct {
	TenantID      string `yaml:"tenant_id"`
	Zip           string `yaml:"zip"`
	FacilityID    string `yaml:"facility_id"`
	SourceEventID string `yaml:"source_event_id"`
	Status        string `yaml:"status"`
	UpdatedAt     int64  `yaml:"updated_at"`
}

// NotificationConfig selects how chat and in-app updates are delivered.
type NotificationConfig struct {
	Mode string `yaml:"mode" validate:"oneof=queue log"`
}

// Load reads configuration from the YAML file at path (optional when empty),
// applies .env and environment overrides, fills defaults and validates.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		// Clean the path to prevent path traversal attacks
		cleanPath := filepath.Clean(path)
		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// .env never overrides variables already present in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment overrides: %w", err)
	}

	// Apply defaults for any unset values
	applyDefaults(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyDefaults sets sensible default values for configuration fields
// that are not explicitly set in the config file.
func applyDefaults(cfg *Config) {
	// Storage defaults
	if cfg.Storage.Mode == "" {
		cfg.Storage.Mode = StorageModeMemory
	}

	// Server defaults
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 10 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 10 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}

	// Kafka defaults
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{"localhost:9092"}
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "rainout-notifications"
	}
	if cfg.Kafka.ConsumerGroup == "" {
		cfg.Kafka.ConsumerGroup = "rainout-delivery"
	}

	// Redis defaults
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	// Postgres defaults
	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = "localhost"
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.SSLMode == "" {
		cfg.Postgres.SSLMode = "disable"
	}
	if cfg.Postgres.MaxOpenConns == 0 {
		cfg.Postgres.MaxOpenConns = 25
	}
	if cfg.Postgres.MaxIdleConns == 0 {
		cfg.Postgres.MaxIdleConns = 5
	}

	// Logger defaults
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Logger.Format == "" {
		cfg.Logger.Format = "json"
	}

	// Polling defaults
	if cfg.Polling.IntervalMinutes == 0 {
		cfg.Polling.IntervalMinutes = 30
	}
	if cfg.Polling.MaxZipsPerTenant == 0 {
		cfg.Polling.MaxZipsPerTenant = 50
	}
	if cfg.Polling.Parallelism == 0 {
		cfg.Polling.Parallelism = 1
	}
	if cfg.Polling.TickSchedule == "" {
		cfg.Polling.TickSchedule = "* * * * *"
	}
	if cfg.Polling.RunTimeout == 0 {
		cfg.Polling.RunTimeout = 5 * time.Minute
	}
	if cfg.Polling.IdempotencyTTL == 0 {
		cfg.Polling.IdempotencyTTL = 30 * 24 * time.Hour
	}

	// Source defaults
	if cfg.Source.Mode == "" {
		cfg.Source.Mode = SourceModeStatic
	}
	if cfg.Source.Timeout == 0 {
		cfg.Source.Timeout = 10 * time.Second
	}
	if cfg.Source.RetryDelay == 0 {
		cfg.Source.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Source.BreakerFailures == 0 {
		cfg.Source.BreakerFailures = 5
	}
	if cfg.Source.BreakerTimeout == 0 {
		cfg.Source.BreakerTimeout = 30 * time.Second
	}

	// Notification defaults
	if cfg.Notification.Mode == "" {
		cfg.Notification.Mode = NotificationModeQueue
	}
}

// Address returns the full server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DSN returns the PostgreSQL connection string.
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address in host:port format.
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewLogger builds the application logger from the logger settings.
func (c *LoggerConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(c.Level)}

	var handler slog.Handler
	if c.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
