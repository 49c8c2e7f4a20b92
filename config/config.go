// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/artpar/shapekit/core/jsoncodec"
	"github.com/artpar/shapekit/domain/document"
)

// Config is the root configuration structure.
type Config struct {
	Definitions DefinitionsConfig `yaml:"definitions"`
	Codec       CodecConfig       `yaml:"codec"`
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// DefinitionsConfig locates the shape definition files.
type DefinitionsConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"` // reload on file changes
}

// CodecConfig configures the JSON codec.
type CodecConfig struct {
	TimestampFormat     string `yaml:"timestamp_format"` // "rfc3339" or "unix_millis"
	RejectUnknownFields bool   `yaml:"reject_unknown_fields"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the document store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`   // "sqlite" or "memory"
	DSN      string `yaml:"dsn"`
	Compress string `yaml:"compress"` // "none", "lz4" or "zstd"
	Digest   string `yaml:"digest"`   // "blake2b" or "blake3"
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// CodecOptions returns the jsoncodec options for c.
func (c CodecConfig) CodecOptions() []jsoncodec.Option {
	format, err := jsoncodec.ParseTimestampFormat(c.TimestampFormat)
	if err != nil {
		format = jsoncodec.TimestampRFC3339
	}
	return []jsoncodec.Option{
		jsoncodec.WithTimestampFormat(format),
		jsoncodec.WithUnknownFields(c.RejectUnknownFields),
	}
}

// EncodeOptions returns the storage encoding for d. Call after validation.
func (d DatabaseConfig) EncodeOptions() document.EncodeOptions {
	alg, _ := document.ParseAlgorithm(d.Digest)
	c, _ := document.ParseCompression(d.Compress)
	return document.EncodeOptions{Digest: alg, Compression: c}
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	SHAPEKIT_DEFINITIONS_DIR     - Definition directory (default: definitions)
//	SHAPEKIT_DEFINITIONS_WATCH   - Reload definitions on change (default: false)
//	SHAPEKIT_CODEC_TIMESTAMPS    - rfc3339 or unix_millis (default: rfc3339)
//	SHAPEKIT_CODEC_STRICT        - Reject unknown record fields (default: false)
//	SHAPEKIT_SERVER_HOST         - Server host (default: 0.0.0.0)
//	SHAPEKIT_SERVER_PORT         - Server port (default: 8080)
//	SHAPEKIT_DATABASE_DRIVER     - sqlite or memory (default: sqlite)
//	SHAPEKIT_DATABASE_DSN        - Database path (default: shapekit.db)
//	SHAPEKIT_DATABASE_COMPRESS   - none, lz4 or zstd (default: none)
//	SHAPEKIT_DATABASE_DIGEST     - blake2b or blake3 (default: blake2b)
//	SHAPEKIT_LOG_LEVEL           - debug, info, warn, error (default: info)
//	SHAPEKIT_LOG_FORMAT          - json or console (default: json)
//	SHAPEKIT_METRICS_ENABLED     - Enable /metrics endpoint (default: false)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads path when it exists and falls back to the
// environment otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies SHAPEKIT_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Definitions
	if v := os.Getenv("SHAPEKIT_DEFINITIONS_DIR"); v != "" {
		cfg.Definitions.Dir = v
	}
	if v := os.Getenv("SHAPEKIT_DEFINITIONS_WATCH"); v != "" {
		cfg.Definitions.Watch = parseBool(v)
	}

	// Codec
	if v := os.Getenv("SHAPEKIT_CODEC_TIMESTAMPS"); v != "" {
		cfg.Codec.TimestampFormat = v
	}
	if v := os.Getenv("SHAPEKIT_CODEC_STRICT"); v != "" {
		cfg.Codec.RejectUnknownFields = parseBool(v)
	}

	// Server
	if v := os.Getenv("SHAPEKIT_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SHAPEKIT_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SHAPEKIT_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("SHAPEKIT_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Database
	if v := os.Getenv("SHAPEKIT_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("SHAPEKIT_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("SHAPEKIT_DATABASE_COMPRESS"); v != "" {
		cfg.Database.Compress = v
	}
	if v := os.Getenv("SHAPEKIT_DATABASE_DIGEST"); v != "" {
		cfg.Database.Digest = v
	}

	// Logging
	if v := os.Getenv("SHAPEKIT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SHAPEKIT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics
	if v := os.Getenv("SHAPEKIT_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("SHAPEKIT_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Definitions.Dir == "" {
		cfg.Definitions.Dir = "definitions"
	}

	if cfg.Codec.TimestampFormat == "" {
		cfg.Codec.TimestampFormat = string(jsoncodec.TimestampRFC3339)
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "shapekit.db"
	}
	if cfg.Database.Compress == "" {
		cfg.Database.Compress = document.CompressionNone.String()
	}
	if cfg.Database.Digest == "" {
		cfg.Database.Digest = string(document.Blake2b)
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	if _, err := jsoncodec.ParseTimestampFormat(cfg.Codec.TimestampFormat); err != nil {
		return fmt.Errorf("codec.timestamp_format: %w", err)
	}

	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", cfg.Server.Port)
	}

	validDrivers := map[string]bool{"sqlite": true, "memory": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite' or 'memory', got %q", cfg.Database.Driver)
	}
	if _, err := document.ParseCompression(cfg.Database.Compress); err != nil {
		return fmt.Errorf("database.compress: %w", err)
	}
	if _, err := document.ParseAlgorithm(cfg.Database.Digest); err != nil {
		return fmt.Errorf("database.digest: %w", err)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}

	return nil
}
