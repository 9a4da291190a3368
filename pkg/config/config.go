package config

import (
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// Config holds all of the daemon's settings. Values are loaded from an
// optional yaml config file (CONFIG_FILE) and then overridden by
// environment variables whose names are the SCREAMING_SNAKE_CASE form of
// the field name (e.g. DATABASE_FILE_PATH, REMOTE_BASE_URL).
type Config struct {
	DatabaseBusyTimeout       time.Duration `koanf:"-"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count"`
	DatabaseConnectRetryDelay time.Duration `koanf:"-"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries"`
	Hostname                  string        `koanf:"-"`
	ProbeIntervalSeconds      int           `koanf:"probe_interval_seconds"`
	RemoteAPIKey              string        `koanf:"remote_api_key"`
	RemoteBaseURL             string        `koanf:"remote_base_url"`
	RemoteTimeoutSeconds      int           `koanf:"remote_timeout_seconds"`
	SampleIntervalSeconds     int           `koanf:"sample_interval_seconds"`
	ServerHost                string        `koanf:"server_host"`
	ServerPort                int           `koanf:"server_port"`
}

// RemoteTimeout is the hard per-call timeout on remote gateway requests.
func (cfg *Config) RemoteTimeout() time.Duration {
	return time.Duration(cfg.RemoteTimeoutSeconds) * time.Second
}

// ProbeInterval is how often the connectivity prober checks the remote.
func (cfg *Config) ProbeInterval() time.Duration {
	return time.Duration(cfg.ProbeIntervalSeconds) * time.Second
}

// SampleInterval is the period of the playback progress sampler.
func (cfg *Config) SampleInterval() time.Duration {
	return time.Duration(cfg.SampleIntervalSeconds) * time.Second
}

func New() (*Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cfg := defaultConfig()
	cfg.Hostname = hostname

	k := koanf.New(".")

	configFile := os.Getenv("CONFIG_FILE")
	if configFile == "" {
		configFile = "/config/manabi.yaml"
	}
	if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		// A missing config file is fine; everything has a default or an
		// env var.
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(err, "failed to load config file")
		}
	}

	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load config from environment")
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if err := validateRequired(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a config suitable for package tests: an in-memory
// database and a remote URL that is never dialed.
func NewForTest() *Config {
	cfg := defaultConfig()
	cfg.DatabaseFilePath = ":memory:"
	cfg.Hostname = "test"
	cfg.RemoteBaseURL = "http://remote.invalid"
	return cfg
}

func defaultConfig() *Config {
	return &Config{
		DatabaseBusyTimeout:       5 * time.Second,
		DatabaseConnectRetryCount: 5,
		DatabaseConnectRetryDelay: 2 * time.Second,
		DatabaseMaxRetries:        3,
		ProbeIntervalSeconds:      30,
		RemoteTimeoutSeconds:      10,
		SampleIntervalSeconds:     5,
		ServerHost:                "127.0.0.1",
		ServerPort:                6891,
	}
}

func validateRequired(cfg *Config) error {
	missing := []string{}
	if cfg.DatabaseFilePath == "" {
		missing = append(missing, "DatabaseFilePath")
	}
	if cfg.RemoteBaseURL == "" {
		missing = append(missing, "RemoteBaseURL")
	}
	if len(missing) == 0 {
		return nil
	}

	parts := make([]string, len(missing))
	for i, name := range missing {
		key := toSnakeCase(name)
		parts[i] = fmt.Sprintf("%s (%s)", strings.ToUpper(key), key)
	}
	return errors.Errorf("missing required config: %s", strings.Join(parts, ", "))
}

func toSnakeCase(s string) string {
	return strcase.ToSnake(s)
}
