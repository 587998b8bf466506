package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	HTTPAddr        string        `yaml:"http_addr"`
	Workers         int           `yaml:"workers"`
	PoolSize        int           `yaml:"pool_size"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Store           StoreConfig   `yaml:"store"`
	Log             LogConfig     `yaml:"log"`
	Telemetry       bool          `yaml:"telemetry"`
	NotifyChannel   string        `yaml:"notify_channel"`
	SweepSchedule   string        `yaml:"sweep_schedule"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func New() Config {
	return Config{
		HTTPAddr:        ":8080",
		Workers:         5,
		PoolSize:        100,
		ShutdownTimeout: time.Second * 10,
		Store:           StoreConfig{Driver: DriverMemory},
		Log:             LogConfig{Level: "info", Format: "text"},
		NotifyChannel:   "tasks_events",
		SweepSchedule:   "@every 5m",
	}
}

// Load layers the defaults, an optional YAML file and TASKS_* environment
// variables, in that order. Variables from a .env file in the working
// directory are loaded first and never override the real environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := New()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"TASKS_HTTP_ADDR":      &c.HTTPAddr,
		"TASKS_STORE_DRIVER":   &c.Store.Driver,
		"TASKS_STORE_DSN":      &c.Store.DSN,
		"TASKS_LOG_LEVEL":      &c.Log.Level,
		"TASKS_LOG_FORMAT":     &c.Log.Format,
		"TASKS_NOTIFY_CHANNEL": &c.NotifyChannel,
		"TASKS_SWEEP_SCHEDULE": &c.SweepSchedule,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	ints := map[string]*int{
		"TASKS_WORKERS":   &c.Workers,
		"TASKS_POOL_SIZE": &c.PoolSize,
	}
	for key, dst := range ints {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
	}

	if v, ok := os.LookupEnv("TASKS_SHUTDOWN_TIMEOUT"); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("TASKS_SHUTDOWN_TIMEOUT: %w", err)
		}
		c.ShutdownTimeout = d
	}
	if v, ok := os.LookupEnv("TASKS_TELEMETRY"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("TASKS_TELEMETRY: %w", err)
		}
		c.Telemetry = b
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %q", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, sqlite, postgres", c.Store.Driver))
	}

	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be >= 1, got %d", c.Workers))
	}
	if c.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("pool_size must be >= 1, got %d", c.PoolSize))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("shutdown_timeout must be positive, got %s", c.ShutdownTimeout))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ParseLevel accepts debug, info, warn and error in any casing.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return l, nil
}
