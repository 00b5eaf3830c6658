package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, SourceCSV, cfg.Dataset.Source)
	assert.False(t, cfg.Dataset.SkipMalformed)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_WRITE_TIMEOUT", "45s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://localhost:3000, ,https://dash.example.com,")
	t.Setenv("DB_MAX_OPEN_CONNS", "10")
	t.Setenv("DATASET_SOURCE", "Postgres")
	t.Setenv("DATASET_SKIP_MALFORMED", "true")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("TRACING_ENABLED", "1")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, []string{"http://localhost:3000", "https://dash.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 10, cfg.Database.MaxOpenConns)
	assert.Equal(t, SourcePostgres, cfg.Dataset.Source)
	assert.True(t, cfg.Dataset.SkipMalformed)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Tracing.Enabled)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")
	t.Setenv("DATASET_SKIP_MALFORMED", "maybe")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")
	assert.Contains(t, err.Error(), "DATASET_SKIP_MALFORMED")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"unknown source", func(c *Config) { c.Dataset.Source = "parquet" }},
		{"csv without file", func(c *Config) { c.Dataset.File = "" }},
		{"postgres without host", func(c *Config) {
			c.Dataset.Source = SourcePostgres
			c.Database.Host = ""
		}},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"idle above open", func(c *Config) { c.Database.MaxIdleConns = 50 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadConfig()
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "traffic", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=traffic sslmode=disable", d.DSN())
	assert.Equal(t, d.DSN(), d.Postgres().DSN())
}
