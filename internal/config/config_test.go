package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"TASKS_HTTP_ADDR", "TASKS_WORKERS", "TASKS_POOL_SIZE", "TASKS_SHUTDOWN_TIMEOUT",
	"TASKS_STORE_DRIVER", "TASKS_STORE_DSN", "TASKS_LOG_LEVEL", "TASKS_LOG_FORMAT",
	"TASKS_TELEMETRY", "TASKS_NOTIFY_CHANNEL", "TASKS_SWEEP_SCHEDULE",
}

// clearEnv unsets every TASKS_* variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, New(), cfg)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, DriverMemory, cfg.Store.Driver)
	require.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
http_addr: ":9090"
workers: 2
shutdown_timeout: 3s
store:
  driver: sqlite
  dsn: /tmp/tasks.db
log:
  level: debug
  format: json
`)
	t.Setenv("TASKS_WORKERS", "7")
	t.Setenv("TASKS_TELEMETRY", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr)
	require.Equal(t, 7, cfg.Workers)
	require.Equal(t, 100, cfg.PoolSize)
	require.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, StoreConfig{Driver: DriverSQLite, DSN: "/tmp/tasks.db"}, cfg.Store)
	require.Equal(t, LogConfig{Level: "debug", Format: "json"}, cfg.Log)
	require.True(t, cfg.Telemetry)
}

func TestLoad_EmptyFile(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(writeFile(t, ""))
	require.NoError(t, err)
	require.Equal(t, New(), cfg)
}

func TestLoad_UnknownField(t *testing.T) {
	clearEnv(t)

	_, err := Load(writeFile(t, "http_port: \":80\"\n"))
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_BadEnv(t *testing.T) {
	for key, val := range map[string]string{
		"TASKS_WORKERS":          "many",
		"TASKS_SHUTDOWN_TIMEOUT": "soon",
		"TASKS_TELEMETRY":        "maybe",
	} {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, val)

			_, err := Load("")
			require.ErrorContains(t, err, key)
		})
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown driver":  func(c *Config) { c.Store.Driver = "mongo" },
		"sqlite no dsn":   func(c *Config) { c.Store.Driver = DriverSQLite },
		"postgres no dsn": func(c *Config) { c.Store.Driver = DriverPostgres },
		"no workers":      func(c *Config) { c.Workers = 0 },
		"empty pool":      func(c *Config) { c.PoolSize = 0 },
		"bad format":      func(c *Config) { c.Log.Format = "xml" },
		"bad level":       func(c *Config) { c.Log.Level = "loud" },
		"no addr":         func(c *Config) { c.HTTPAddr = "" },
		"no timeout":      func(c *Config) { c.ShutdownTimeout = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := New()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}

	require.NoError(t, New().Validate())
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("WARN")
	require.NoError(t, err)
	require.Equal(t, "WARN", l.String())

	_, err = ParseLevel("verbose")
	require.Error(t, err)
}
