package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"

	"traffic-dashboard/pkg/database"
)

// Dataset sources
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// Config holds application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Dataset  DatasetConfig
	Logging  LoggingConfig
	Tracing  TracingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DatasetConfig selects where the dashboard loads observations from
type DatasetConfig struct {
	Source        string
	File          string
	SkipMalformed bool
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level string
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
	Insecure    bool
}

// LoadConfig reads configuration from the environment, falling back to defaults
func LoadConfig() (*Config, error) {
	var errs []error
	env := &envReader{errs: &errs}

	cfg := &Config{
		Server: ServerConfig{
			Host:           env.String("SERVER_HOST", "0.0.0.0"),
			Port:           env.Int("SERVER_PORT", 8080),
			ReadTimeout:    env.Duration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   env.Duration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:    env.Duration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AllowedOrigins: env.List("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:            env.String("DB_HOST", "localhost"),
			Port:            env.Int("DB_PORT", 5432),
			User:            env.String("DB_USER", "postgres"),
			Password:        env.String("DB_PASSWORD", "postgres"),
			Database:        env.String("DB_NAME", "traffic"),
			SSLMode:         env.String("DB_SSLMODE", "disable"),
			MaxOpenConns:    env.Int("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    env.Int("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: env.Duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: env.Duration("DB_CONN_MAX_IDLE_TIME", time.Minute),
		},
		Dataset: DatasetConfig{
			Source:        strings.ToLower(env.String("DATASET_SOURCE", SourceCSV)),
			File:          env.String("DATASET_FILE", "Metro_Interstate_Traffic_Volume.csv"),
			SkipMalformed: env.Bool("DATASET_SKIP_MALFORMED", false),
		},
		Logging: LoggingConfig{
			Level: strings.ToLower(env.String("LOG_LEVEL", "info")),
		},
		Tracing: TracingConfig{
			Enabled:     env.Bool("TRACING_ENABLED", false),
			ServiceName: env.String("OTEL_SERVICE_NAME", "traffic-dashboard"),
			Endpoint:    env.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Insecure:    env.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
		},
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the services cannot run with
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Dataset.Source {
	case SourceCSV:
		if c.Dataset.File == "" {
			return fmt.Errorf("dataset file is required when source is %q", SourceCSV)
		}
	case SourcePostgres:
		if c.Database.Host == "" || c.Database.Database == "" {
			return fmt.Errorf("database host and name are required when source is %q", SourcePostgres)
		}
	default:
		return fmt.Errorf("invalid dataset source: %q", c.Dataset.Source)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}

	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("max idle connections (%d) exceeds max open connections (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	return nil
}

// DSN returns the lib/pq connection string
func (d DatabaseConfig) DSN() string {
	return d.Postgres().DSN()
}

// envReader coerces environment variables and collects conversion errors
type envReader struct {
	errs *[]error
}

func (e *envReader) lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func (e *envReader) fail(key, value string, err error) {
	*e.errs = append(*e.errs, fmt.Errorf("invalid %s=%q: %w", key, value, err))
}

func (e *envReader) String(key, fallback string) string {
	if value, ok := e.lookup(key); ok {
		return value
	}
	return fallback
}

func (e *envReader) Int(key string, fallback int) int {
	value, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	n, err := cast.ToIntE(value)
	if err != nil {
		e.fail(key, value, err)
		return fallback
	}
	return n
}

func (e *envReader) Bool(key string, fallback bool) bool {
	value, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	b, err := cast.ToBoolE(value)
	if err != nil {
		e.fail(key, value, err)
		return fallback
	}
	return b
}

// Duration accepts Go duration strings ("30s") or plain nanosecond counts
func (e *envReader) Duration(key string, fallback time.Duration) time.Duration {
	value, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	d, err := cast.ToDurationE(value)
	if err != nil {
		e.fail(key, value, err)
		return fallback
	}
	return d
}

// List splits a comma separated value
func (e *envReader) List(key string, fallback []string) []string {
	value, ok := e.lookup(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Postgres converts the settings into a connection pool config
func (d DatabaseConfig) Postgres() *database.Config {
	return &database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}
