// Package config manages the brlapid daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete brlapid configuration.
type Config struct {
	Listen   ListenConfig   `koanf:"listen"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Admin    AdminConfig    `koanf:"admin"`
	Backend  BackendConfig  `koanf:"backend"`
	Channels ChannelsConfig `koanf:"channels"`
}

// ListenConfig holds the BrlAPI TCP listener configuration.
type ListenConfig struct {
	// Addr is the BrlAPI listen address (e.g., ":4101").
	Addr string `koanf:"addr"`
}

// AuthConfig holds the shared-key authentication configuration.
type AuthConfig struct {
	// Key is the shared secret clients must present. Empty means AuthNone:
	// every client is accepted without a key exchange.
	Key string `koanf:"key"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// AdminConfig holds the read-only admin HTTP API configuration.
type AdminConfig struct {
	// Addr is the HTTP listen address for the admin API (e.g., ":4102").
	// Empty disables the admin API.
	Addr string `koanf:"addr"`
}

// BackendConfig describes the synthetic display backend's geometry.
type BackendConfig struct {
	// DriverName identifies the backend to clients via GetDriverName.
	DriverName string `koanf:"driver_name"`
	// ModelID identifies the backend to clients via GetModelId.
	ModelID string `koanf:"model_id"`
	// Columns is the number of braille cells per line.
	Columns uint8 `koanf:"columns"`
	// Lines is the number of display lines.
	Lines uint8 `koanf:"lines"`
	// TranslationTable names the default table passed to the translator.
	TranslationTable string `koanf:"translation_table"`
}

// ChannelsConfig bounds the capacities of the internal channels that
// connect the backend, display actor, and translation worker.
type ChannelsConfig struct {
	// MatrixSinkCapacity bounds the backend's outgoing display-snapshot
	// channel (internal/backend's matrix sink).
	MatrixSinkCapacity int `koanf:"matrix_sink_capacity"`
	// KeycodeSourceCapacity bounds the backend's outgoing keycode channel
	// consumed by the key broadcaster.
	KeycodeSourceCapacity int `koanf:"keycode_source_capacity"`
	// TranslationQueueCapacity bounds the translator worker's request queue.
	TranslationQueueCapacity int `koanf:"translation_queue_capacity"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen: ListenConfig{
			Addr: ":4101",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Admin: AdminConfig{
			Addr: ":4102",
		},
		Backend: BackendConfig{
			DriverName:       "brlapid-memory",
			ModelID:          "virtual-1",
			Columns:          40,
			Lines:            1,
			TranslationTable: "en-us-comp8.ctb",
		},
		Channels: ChannelsConfig{
			MatrixSinkCapacity:       4,
			KeycodeSourceCapacity:    32,
			TranslationQueueCapacity: 32,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for brlapid configuration.
// Variables are named BRLD_<section>_<key>, e.g., BRLD_LISTEN_ADDR.
const envPrefix = "BRLD_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (BRLD_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	BRLD_LISTEN_ADDR     -> listen.addr
//	BRLD_AUTH_KEY        -> auth.key
//	BRLD_LOG_LEVEL       -> log.level
//	BRLD_LOG_FORMAT      -> log.format
//	BRLD_METRICS_ADDR    -> metrics.addr
//	BRLD_ADMIN_ADDR      -> admin.addr
//
// Nested keys with underscores in their own name (e.g. backend.driver_name,
// channels.matrix_sink_capacity) are only reliably set via the YAML file;
// envKeyMapper's blanket "_" -> "." replacement cannot distinguish a
// section separator from an underscore that is part of the key itself.
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms BRLD_LISTEN_ADDR -> listen.addr.
// Strips the BRLD_ prefix, lowercases, and replaces _ with .
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"listen.addr":               defaults.Listen.Addr,
		"auth.key":                  defaults.Auth.Key,
		"log.level":                 defaults.Log.Level,
		"log.format":                defaults.Log.Format,
		"metrics.addr":              defaults.Metrics.Addr,
		"metrics.path":              defaults.Metrics.Path,
		"admin.addr":                defaults.Admin.Addr,
		"backend.driver_name":       defaults.Backend.DriverName,
		"backend.model_id":          defaults.Backend.ModelID,
		"backend.columns":           defaults.Backend.Columns,
		"backend.lines":             defaults.Backend.Lines,
		"backend.translation_table": defaults.Backend.TranslationTable,

		"channels.matrix_sink_capacity":       defaults.Channels.MatrixSinkCapacity,
		"channels.keycode_source_capacity":    defaults.Channels.KeycodeSourceCapacity,
		"channels.translation_queue_capacity": defaults.Channels.TranslationQueueCapacity,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyListenAddr indicates the BrlAPI listen address is empty.
	ErrEmptyListenAddr = errors.New("listen.addr must not be empty")

	// ErrInvalidBackendColumns indicates the backend has zero columns.
	ErrInvalidBackendColumns = errors.New("backend.columns must be >= 1")

	// ErrInvalidBackendLines indicates the backend has zero lines.
	ErrInvalidBackendLines = errors.New("backend.lines must be >= 1")

	// ErrEmptyTranslationTable indicates no default translation table was configured.
	ErrEmptyTranslationTable = errors.New("backend.translation_table must not be empty")

	// ErrInvalidMatrixSinkCapacity indicates a negative matrix sink channel capacity.
	ErrInvalidMatrixSinkCapacity = errors.New("channels.matrix_sink_capacity must be >= 0")

	// ErrInvalidKeycodeSourceCapacity indicates a negative keycode source channel capacity.
	ErrInvalidKeycodeSourceCapacity = errors.New("channels.keycode_source_capacity must be >= 0")

	// ErrInvalidTranslationQueueCapacity indicates a negative translation queue capacity.
	ErrInvalidTranslationQueueCapacity = errors.New("channels.translation_queue_capacity must be >= 0")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Listen.Addr == "" {
		return ErrEmptyListenAddr
	}

	if cfg.Backend.Columns < 1 {
		return ErrInvalidBackendColumns
	}

	if cfg.Backend.Lines < 1 {
		return ErrInvalidBackendLines
	}

	if cfg.Backend.TranslationTable == "" {
		return ErrEmptyTranslationTable
	}

	if cfg.Channels.MatrixSinkCapacity < 0 {
		return ErrInvalidMatrixSinkCapacity
	}

	if cfg.Channels.KeycodeSourceCapacity < 0 {
		return ErrInvalidKeycodeSourceCapacity
	}

	if cfg.Channels.TranslationQueueCapacity < 0 {
		return ErrInvalidTranslationQueueCapacity
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
