package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "sqlite", c.Database.Driver)
	assert.Equal(t, "ledger.db", c.Database.DSN)
	assert.Equal(t, 24*time.Hour, c.Auth.TokenTTL)
	assert.Equal(t, time.Hour, c.Ledger.AuditInterval)

	day, err := c.WeekStart()
	require.NoError(t, err)
	assert.Equal(t, time.Sunday, day)
	assert.Error(t, c.RequireAuth())
}

func TestLoad_FileThenEnv(t *testing.T) {
	// GIVEN: A YAML file selecting postgres on port 9000
	// WHEN: LEDGER_SERVER_PORT and LEDGER_AUTH_JWT_SECRET are set
	// THEN: The env var wins over the file, file wins over defaults

	path := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
database:
  driver: postgres
  dsn: postgres://ledger@localhost/ledger?sslmode=disable
ledger:
  week_start: Monday
  timezone: Asia/Kolkata
  audit_interval: 15m
`), 0o600))
	t.Setenv("LEDGER_SERVER_PORT", "9100")
	t.Setenv("LEDGER_AUTH_JWT_SECRET", "s3cret")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, c.Server.Port)
	assert.Equal(t, "postgres", c.Database.Driver)
	assert.NoError(t, c.RequireAuth())

	day, err := c.WeekStart()
	require.NoError(t, err)
	assert.Equal(t, time.Monday, day)
	loc, err := c.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())
	assert.Equal(t, 15*time.Minute, c.Ledger.AuditInterval)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{Driver: "sqlite", DSN: ":memory:"},
			Ledger:   LedgerConfig{WeekStart: "sun", Timezone: "UTC"},
			Log:      LogConfig{Level: "info", Format: "json"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"bad week start", func(c *Config) { c.Ledger.WeekStart = "someday" }},
		{"bad timezone", func(c *Config) { c.Ledger.Timezone = "Mars/Olympus" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"negative audit interval", func(c *Config) { c.Ledger.AuditInterval = -time.Minute }},
	}
	c := valid()
	require.NoError(t, c.Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestNewLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)

	logger.Info("hidden")
	logger.Warn("shown", "wallet_id", "w1")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"wallet_id":"w1"`)
}
