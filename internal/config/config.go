// Package config loads service configuration from an optional YAML file
// with environment-variable overrides, so local runs need no file at all
// and deployments can override single values without templating.
package config

import (
	"fmt"
	"os"

	yaml "github.com/goccy/go-yaml"
)

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type StorageConfig struct {
	// SQLitePath is the database file; ":memory:" is accepted for
	// throwaway runs.
	SQLitePath string `yaml:"sqlite_path"`
}

type RedisConfig struct {
	// Enabled turns the pub/sub trigger surface on. The HTTP surface is
	// always available.
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

type TelemetryConfig struct {
	// OTLPEndpoint is the collector address for trace export; empty
	// disables tracing setup.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	LogLevel     string `yaml:"log_level"`
}

// Default returns the configuration used when no file and no env overrides
// are present.
func Default() Config {
	return Config{
		HTTP:      HTTPConfig{Addr: ":8080"},
		Storage:   StorageConfig{SQLitePath: "./data/phonecalls.db"},
		Redis:     RedisConfig{Addr: "localhost:6379"},
		Telemetry: TelemetryConfig{LogLevel: "info"},
	}
}

// Load reads path (when non-empty and present) over the defaults, then
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if cfg.HTTP.Addr == "" {
		return Config{}, fmt.Errorf("config: http.addr must not be empty")
	}
	if cfg.Storage.SQLitePath == "" {
		return Config{}, fmt.Errorf("config: storage.sqlite_path must not be empty")
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setFromEnv(&cfg.HTTP.Addr, "PHONECALL_HTTP_ADDR")
	setFromEnv(&cfg.Storage.SQLitePath, "PHONECALL_SQLITE_PATH")
	setFromEnv(&cfg.Redis.Addr, "PHONECALL_REDIS_ADDR")
	setFromEnv(&cfg.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setFromEnv(&cfg.Telemetry.LogLevel, "PHONECALL_LOG_LEVEL")

	if v := os.Getenv("PHONECALL_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = v == "1" || v == "true"
	}
}

func setFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
