package bootstrap_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/artpar/shapekit/bootstrap"
	"github.com/artpar/shapekit/config"
	"github.com/artpar/shapekit/domain/document"
)

const orderDefinition = `
shape: Order
fields:
  id: string
  items: set<string>
`

func writeDefinitions(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "order.yaml"), []byte(orderDefinition), 0o644); err != nil {
		t.Fatalf("write definitions: %v", err)
	}
	return dir
}

func testConfig(t *testing.T, driver string) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Definitions: config.DefinitionsConfig{Dir: writeDefinitions(t)},
		Codec:       config.CodecConfig{TimestampFormat: "rfc3339"},
		Server:      config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Database: config.DatabaseConfig{
			Driver:   driver,
			Compress: "zstd",
			Digest:   "blake3",
		},
		Logging: config.LoggingConfig{Level: "debug", Format: "json"},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	if driver == "sqlite" {
		cfg.Database.DSN = filepath.Join(t.TempDir(), "test.db")
	}
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *bootstrap.App {
	t.Helper()
	app, err := bootstrap.New(bootstrap.Options{
		Config:          cfg,
		MetricsRegistry: prometheus.NewRegistry(),
		Version:         "test",
		LogOutput:       io.Discard,
	})
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	return app
}

func do(t *testing.T, h http.Handler, method, path, body string) (*http.Response, string) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	resp := rec.Result()
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, string(data)
}

func TestBootstrap_Integration(t *testing.T) {
	app := newApp(t, testConfig(t, "memory"))
	defer app.Shutdown()

	if app.DB != nil {
		t.Error("memory driver should not open a database")
	}
	if app.HTTPServer == nil || app.Store == nil || app.Metrics == nil {
		t.Fatal("app components not initialized")
	}
	if app.Registry.Len() != 1 {
		t.Errorf("Registry.Len() = %d, want 1", app.Registry.Len())
	}

	resp, body := do(t, app.Router, "POST", "/shapes/Order/documents", `{"id":"o1","items":["b","a"]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("put status = %d, body = %s", resp.StatusCode, body)
	}
	resp, _ = do(t, app.Router, "POST", "/shapes/Order/documents", `{"items":["a","b"],"id":"o1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("duplicate put status = %d, want 200", resp.StatusCode)
	}

	resp, body = do(t, app.Router, "GET", "/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
	for _, want := range []string{
		`shapekit_documents_stored_total{shape="Order"} 1`,
		`shapekit_documents_deduplicated_total{shape="Order"} 1`,
		`shapekit_registry_shapes 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestBootstrap_DatabaseMigration(t *testing.T) {
	app := newApp(t, testConfig(t, "sqlite"))
	defer app.Shutdown()

	if app.DB == nil {
		t.Fatal("DB should not be nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	if err := app.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		t.Errorf("query documents table: %v", err)
	}

	resp, body := do(t, app.Router, "POST", "/shapes/Order/documents", `{"id":"o1","items":["x"]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("put status = %d, body = %s", resp.StatusCode, body)
	}
	var compression int
	if err := app.DB.QueryRowContext(ctx, "SELECT compression FROM documents").Scan(&compression); err != nil {
		t.Fatalf("query stored document: %v", err)
	}
	if compression != int(document.CompressionZstd) {
		t.Errorf("compression = %d, want zstd", compression)
	}
}

func TestBootstrap_GracefulShutdown(t *testing.T) {
	app := newApp(t, testConfig(t, "sqlite"))

	if err := app.Shutdown(); err != nil {
		t.Errorf("shutdown error: %v", err)
	}

	if _, err := app.DB.Query("SELECT 1"); err == nil {
		t.Error("expected error querying closed database")
	}
}

func TestBootstrap_MissingDefinitions(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.Definitions.Dir = filepath.Join(t.TempDir(), "absent")
	cfg.Metrics.Enabled = false

	app := newApp(t, cfg)
	defer app.Shutdown()

	if app.Registry.Len() != 0 {
		t.Errorf("Registry.Len() = %d, want 0", app.Registry.Len())
	}
	if resp, _ := do(t, app.Router, "GET", "/metrics", ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("metrics status = %d, want 404 when disabled", resp.StatusCode)
	}
}

func TestBootstrap_BrokenDefinitions(t *testing.T) {
	cfg := testConfig(t, "memory")
	if err := os.WriteFile(filepath.Join(cfg.Definitions.Dir, "broken.yaml"), []byte("shape: Broken\nfields:\n  x: Missing\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := bootstrap.New(bootstrap.Options{Config: cfg, MetricsRegistry: prometheus.NewRegistry(), LogOutput: io.Discard})
	if err == nil {
		t.Fatal("expected error for unresolved reference")
	}
	if !strings.Contains(err.Error(), "Missing") {
		t.Errorf("error = %v, want mention of Missing", err)
	}
}

func TestBootstrap_ConfigFile(t *testing.T) {
	defs := writeDefinitions(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "definitions:\n  dir: " + defs + "\ncodec:\n  reject_unknown_fields: true\ndatabase:\n  driver: memory\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	app, err := bootstrap.New(bootstrap.Options{ConfigPath: path, LogOutput: io.Discard})
	if err != nil {
		t.Fatalf("create app: %v", err)
	}
	defer app.Shutdown()

	if app.Config.Database.Driver != "memory" {
		t.Errorf("Database.Driver = %s, want memory", app.Config.Database.Driver)
	}

	resp, body := do(t, app.Router, "POST", "/shapes/Order/normalize", `{"id":"o1","items":[],"extra":1}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, body = %s; want 422 for unknown field", resp.StatusCode, body)
	}
}

func TestNewLogger(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.DebugLevel)

	var buf bytes.Buffer
	logger := bootstrap.NewLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message logged at warn level")
	}
	if !strings.Contains(out, `"message":"shown"`) {
		t.Errorf("output = %q, want JSON warn message", out)
	}

	buf.Reset()
	logger = bootstrap.NewLogger(config.LoggingConfig{Level: "bogus", Format: "console"}, &buf)
	logger.Info().Msg("console")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("GlobalLevel() = %v, want info for unknown level", zerolog.GlobalLevel())
	}
	if strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), "console") {
		t.Errorf("console output = %q", buf.String())
	}
}
