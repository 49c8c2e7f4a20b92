// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/artpar/shapekit/adapters/clock"
	apihttp "github.com/artpar/shapekit/adapters/http"
	"github.com/artpar/shapekit/adapters/idgen"
	"github.com/artpar/shapekit/adapters/memory"
	"github.com/artpar/shapekit/adapters/metrics"
	"github.com/artpar/shapekit/adapters/sqlite"
	"github.com/artpar/shapekit/config"
	"github.com/artpar/shapekit/core/registry"
	"github.com/artpar/shapekit/core/shape"
	"github.com/artpar/shapekit/ports"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config // as loaded at startup
	Registry   *registry.Registry
	Store      ports.DocumentStore
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector
	Router     http.Handler

	watcher *registry.Watcher
	holder  *config.Holder
}

// Options provides optional configuration for application initialization.
type Options struct {
	// ConfigPath is a YAML config file. When it exists the config is
	// hot-reloaded on change and on SIGHUP.
	ConfigPath string

	// Config is used when ConfigPath is empty or missing. Nil means
	// config.LoadFromEnv.
	Config *config.Config

	// MetricsRegistry receives the collectors. Nil means the default
	// Prometheus registry.
	MetricsRegistry *prometheus.Registry

	Version string

	// LogOutput defaults to stdout.
	LogOutput io.Writer
}

// New creates and initializes the application.
func New(opts Options) (*App, error) {
	a := &App{}

	if err := a.initConfig(opts); err != nil {
		return nil, err
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	a.Logger = NewLogger(a.Config.Logging, out)
	a.Logger.Info().Str("version", opts.Version).Msg("initializing shapekit")

	if opts.ConfigPath != "" && fileExists(opts.ConfigPath) {
		holder, err := config.NewHolder(opts.ConfigPath, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		a.holder = holder
		a.Config = holder.Get()
	}

	if a.Config.Metrics.Enabled {
		if opts.MetricsRegistry != nil {
			a.Metrics = metrics.NewWithRegistry(opts.MetricsRegistry)
		} else {
			a.Metrics = metrics.New()
		}
		a.Logger.Info().Msg("prometheus metrics enabled")
	}

	if err := a.initRegistry(); err != nil {
		a.Shutdown()
		return nil, fmt.Errorf("init registry: %w", err)
	}

	if err := a.initStore(); err != nil {
		a.Shutdown()
		return nil, fmt.Errorf("init store: %w", err)
	}

	a.initHTTPServer(opts)

	if a.holder != nil {
		a.holder.OnChange(a.applyConfig)
	}

	return a, nil
}

func (a *App) initConfig(opts Options) error {
	// The holder is created once the logger exists.
	if opts.ConfigPath != "" && fileExists(opts.ConfigPath) {
		cfg, err := config.Load(opts.ConfigPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		a.Config = cfg
		return nil
	}

	if opts.Config != nil {
		a.Config = opts.Config
		return nil
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.Config = cfg
	return nil
}

func (a *App) initRegistry() error {
	reg, err := LoadRegistry(a.Config, a.Logger)
	if err != nil {
		return err
	}
	a.Registry = reg

	if a.Metrics != nil {
		a.Metrics.RegistryShapes.Set(float64(reg.Len()))
	}

	if !a.Config.Definitions.Watch {
		return nil
	}

	a.watcher = registry.NewWatcher(reg, a.Config.Definitions.Dir, a.Logger)
	if a.Metrics != nil {
		a.watcher.OnReload(func(names []string) { a.Metrics.RecordReload(len(names), nil) })
		a.watcher.OnError(func(err error) { a.Metrics.RecordReload(0, err) })
	}
	if err := a.watcher.Start(); err != nil {
		a.Logger.Warn().Err(err).Msg("definition watcher not started")
		a.watcher = nil
	}
	return nil
}

// LoadRegistry builds a registry from the definitions directory in cfg.
// A missing directory yields an empty registry.
func LoadRegistry(cfg *config.Config, logger zerolog.Logger) (*registry.Registry, error) {
	reg := registry.New(cfg.Codec.CodecOptions()...)

	defs, err := shape.ParseDir(cfg.Definitions.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warn().Str("dir", cfg.Definitions.Dir).Msg("definitions directory not found, starting empty")
			return reg, nil
		}
		return nil, err
	}

	if err := reg.Load(defs); err != nil {
		return nil, err
	}

	logger.Info().
		Str("dir", cfg.Definitions.Dir).
		Int("shapes", reg.Len()).
		Msg("shape definitions loaded")
	return reg, nil
}

func (a *App) initStore() error {
	enc := a.Config.Database.EncodeOptions()

	var store ports.DocumentStore
	switch a.Config.Database.Driver {
	case "memory":
		mem := memory.NewDocumentStore(a.Registry, idgen.UUID{}, clock.System)
		mem.SetEncoding(enc)
		store = mem
	default:
		db, err := sqlite.Open(a.Config.Database.DSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		a.DB = db

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}

		store = sqlite.NewDocumentStore(db, a.Registry,
			sqlite.WithEncoding(enc),
			sqlite.WithLogger(a.Logger),
		)
	}

	a.Logger.Info().
		Str("driver", a.Config.Database.Driver).
		Str("compress", a.Config.Database.Compress).
		Str("digest", a.Config.Database.Digest).
		Msg("document store ready")

	if a.Metrics != nil {
		store = metrics.InstrumentStore(store, a.Metrics)
	}
	a.Store = store
	return nil
}

func (a *App) initHTTPServer(opts Options) {
	cfg := apihttp.Config{
		Metrics:     a.Metrics,
		MetricsPath: a.Config.Metrics.Path,
		Version:     opts.Version,
		Encoding:    a.Config.Database.EncodeOptions(),
	}
	if a.Metrics != nil && opts.MetricsRegistry != nil {
		cfg.Scrape = promhttp.HandlerFor(opts.MetricsRegistry, promhttp.HandlerOpts{})
	}

	h := apihttp.NewHandler(a.Registry, a.Store, a.Logger, cfg)
	a.Router = apihttp.NewRouter(h, cfg)

	a.HTTPServer = &http.Server{
		Addr:         net.JoinHostPort(a.Config.Server.Host, strconv.Itoa(a.Config.Server.Port)),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
}

// applyConfig applies the reloadable fields of cfg.
func (a *App) applyConfig(cfg *config.Config) {
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	a.Registry.SetCodecOptions(cfg.Codec.CodecOptions()...)
}

// Run starts the HTTP server and blocks until a signal or server error.
func (a *App) Run() error {
	if a.holder != nil {
		if err := a.holder.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch not started")
		}
		a.holder.WatchSignals()
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.holder != nil {
		a.holder.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	// The sqlite store owns the DB once it exists.
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("document store close error")
		}
	} else if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// NewLogger builds the process logger and sets the global level.
func NewLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(out).With().Timestamp().Logger()
}
