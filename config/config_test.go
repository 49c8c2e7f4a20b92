package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artpar/shapekit/config"
	"github.com/artpar/shapekit/core/jsoncodec"
	"github.com/artpar/shapekit/core/runtime"
	"github.com/artpar/shapekit/core/shape"
	"github.com/artpar/shapekit/domain/document"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
definitions:
  dir: ./defs
  watch: true

codec:
  timestamp_format: unix_millis
  reject_unknown_fields: true

server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 5s

database:
  driver: "sqlite"
  dsn: ":memory:"
  compress: zstd
  digest: blake3

logging:
  level: debug
  format: console

metrics:
  enabled: true
`

	cfg := writeAndLoad(t, content)

	if cfg.Definitions.Dir != "./defs" || !cfg.Definitions.Watch {
		t.Errorf("Definitions = %+v", cfg.Definitions)
	}
	if cfg.Codec.TimestampFormat != "unix_millis" || !cfg.Codec.RejectUnknownFields {
		t.Errorf("Codec = %+v", cfg.Codec)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %s, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Logging.Format = %s, want console", cfg.Logging.Format)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}

	enc := cfg.Database.EncodeOptions()
	if enc.Digest != document.Blake3 || enc.Compression != document.CompressionZstd {
		t.Errorf("EncodeOptions() = %+v", enc)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := writeAndLoad(t, "{}\n")

	if cfg.Definitions.Dir != "definitions" {
		t.Errorf("default Definitions.Dir = %s, want definitions", cfg.Definitions.Dir)
	}
	if cfg.Codec.TimestampFormat != "rfc3339" {
		t.Errorf("default TimestampFormat = %s, want rfc3339", cfg.Codec.TimestampFormat)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default Host = %s, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != 60*time.Second {
		t.Errorf("default WriteTimeout = %v, want 60s", cfg.Server.WriteTimeout)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "shapekit.db" {
		t.Errorf("default Database = %+v", cfg.Database)
	}
	if cfg.Database.Compress != "none" || cfg.Database.Digest != "blake2b" {
		t.Errorf("default encoding = %s/%s, want none/blake2b", cfg.Database.Compress, cfg.Database.Digest)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("default Logging = %+v", cfg.Logging)
	}
	if cfg.Metrics.Enabled {
		t.Error("default Metrics.Enabled = true, want false")
	}
}

func TestLoad_MemoryDriverHasNoDSN(t *testing.T) {
	cfg := writeAndLoad(t, "database:\n  driver: memory\n")
	if cfg.Database.DSN != "" {
		t.Errorf("DSN = %q, want empty for memory driver", cfg.Database.DSN)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_SHAPES_DIR", "/srv/shapes")

	cfg := writeAndLoad(t, `
definitions:
  dir: "${TEST_SHAPES_DIR}"
`)

	if cfg.Definitions.Dir != "/srv/shapes" {
		t.Errorf("Definitions.Dir = %s, want /srv/shapes", cfg.Definitions.Dir)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"timestamp format", "codec:\n  timestamp_format: iso\n", "codec.timestamp_format"},
		{"driver", "database:\n  driver: postgres\n", "database.driver"},
		{"compression", "database:\n  compress: brotli\n", "database.compress"},
		{"digest", "database:\n  digest: sha1\n", "database.digest"},
		{"log format", "logging:\n  format: xml\n", "logging.format"},
		{"metrics path", "metrics:\n  path: metrics\n", "metrics.path"},
		{"port", "server:\n  port: 70000\n", "server.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := writeAndLoadErr(t, tt.content)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	if _, err := writeAndLoadErr(t, "server: [unclosed"); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := config.Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SHAPEKIT_DEFINITIONS_DIR", "/etc/shapes")
	t.Setenv("SHAPEKIT_DEFINITIONS_WATCH", "yes")
	t.Setenv("SHAPEKIT_CODEC_TIMESTAMPS", "unix_millis")
	t.Setenv("SHAPEKIT_CODEC_STRICT", "1")
	t.Setenv("SHAPEKIT_SERVER_PORT", "9999")
	t.Setenv("SHAPEKIT_SERVER_READ_TIMEOUT", "2s")
	t.Setenv("SHAPEKIT_DATABASE_DSN", "/tmp/env-test.db")
	t.Setenv("SHAPEKIT_DATABASE_COMPRESS", "lz4")
	t.Setenv("SHAPEKIT_LOG_LEVEL", "debug")
	t.Setenv("SHAPEKIT_METRICS_ENABLED", "true")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}

	if cfg.Definitions.Dir != "/etc/shapes" || !cfg.Definitions.Watch {
		t.Errorf("Definitions = %+v", cfg.Definitions)
	}
	if cfg.Codec.TimestampFormat != "unix_millis" || !cfg.Codec.RejectUnknownFields {
		t.Errorf("Codec = %+v", cfg.Codec)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 2*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 2s", cfg.Server.ReadTimeout)
	}
	if cfg.Database.DSN != "/tmp/env-test.db" || cfg.Database.Compress != "lz4" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %s, want debug", cfg.Logging.Level)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("SHAPEKIT_SERVER_PORT", "7000")
	t.Setenv("SHAPEKIT_DATABASE_DIGEST", "blake3")

	cfg := writeAndLoad(t, `
server:
  port: 9090
database:
  digest: blake2b
`)

	if cfg.Server.Port != 7000 {
		t.Errorf("Server.Port = %d, want 7000 (env override)", cfg.Server.Port)
	}
	if cfg.Database.Digest != "blake3" {
		t.Errorf("Database.Digest = %s, want blake3 (env override)", cfg.Database.Digest)
	}
}

func TestEnvOverrides_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("SHAPEKIT_SERVER_PORT", "not-a-port")
	t.Setenv("SHAPEKIT_SERVER_WRITE_TIMEOUT", "soon")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Server.WriteTimeout != 60*time.Second {
		t.Errorf("Server.WriteTimeout = %v, want default 60s", cfg.Server.WriteTimeout)
	}
}

func TestLoadWithFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9191\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.LoadWithFallback(path)
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Server.Port != 9191 {
		t.Errorf("Server.Port = %d, want 9191 from file", cfg.Server.Port)
	}

	t.Setenv("SHAPEKIT_SERVER_PORT", "9292")
	for _, p := range []string{"", filepath.Join(t.TempDir(), "missing.yaml")} {
		cfg, err := config.LoadWithFallback(p)
		if err != nil {
			t.Fatalf("LoadWithFallback(%q) error: %v", p, err)
		}
		if cfg.Server.Port != 9292 {
			t.Errorf("LoadWithFallback(%q) port = %d, want 9292 from env", p, cfg.Server.Port)
		}
	}
}

func TestParseBoolValues(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"TRUE", true},
		{"1", true},
		{"yes", true},
		{" on ", true},
		{"false", false},
		{"0", false},
		{"no", false},
		{"maybe", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("SHAPEKIT_METRICS_ENABLED", tt.value)
			cfg, err := config.LoadFromEnv()
			if err != nil {
				t.Fatalf("LoadFromEnv error: %v", err)
			}
			if cfg.Metrics.Enabled != tt.want {
				t.Errorf("Metrics.Enabled for %q = %v, want %v", tt.value, cfg.Metrics.Enabled, tt.want)
			}
		})
	}
}

func TestCodecOptions(t *testing.T) {
	rec := shape.MustRecord("Event", shape.F("at", shape.Timestamp))
	cfg := config.CodecConfig{TimestampFormat: "unix_millis", RejectUnknownFields: true}
	m := jsoncodec.For(rec, cfg.CodecOptions()...)

	out, err := m.Marshal(runtime.Record{"at": time.UnixMilli(1700000000000)})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(out) != `{"at":1700000000000}` {
		t.Errorf("Marshal = %s, want unix millis", out)
	}

	_, err = m.Unmarshal([]byte(`{"at":1,"extra":true}`))
	if !errors.Is(err, jsoncodec.ErrUnknownField) {
		t.Errorf("Unmarshal error = %v, want ErrUnknownField", err)
	}
}

// Helpers

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := writeAndLoadErr(t, content)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg
}

func writeAndLoadErr(t *testing.T, content string) (*config.Config, error) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return config.Load(path)
}
