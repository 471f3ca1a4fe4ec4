// Package bootstrap wires all dependencies and starts the paramkit server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	apihttp "github.com/artpar/paramkit/adapters/http"
	"github.com/artpar/paramkit/adapters/idgen"
	"github.com/artpar/paramkit/adapters/metrics"
	"github.com/artpar/paramkit/config"
	"github.com/artpar/paramkit/core/codec"
	"github.com/artpar/paramkit/core/events"
	"github.com/artpar/paramkit/core/registry"
	"github.com/artpar/paramkit/core/schema"
	"github.com/artpar/paramkit/core/state"
	"github.com/artpar/paramkit/core/validation"
	"github.com/artpar/paramkit/ports"
)

// ErrNoSchemas is reported by the readiness check while the registry is empty.
var ErrNoSchemas = errors.New("no schemas loaded")

// Options provides optional configuration for application initialization.
type Options struct {
	// ConfigPath is the YAML config file. When it does not exist the
	// configuration is read from PARAMKIT_* environment variables.
	ConfigPath string

	// Version is reported by /version.
	Version string

	// Logger overrides the logger built from the logging config.
	Logger *zerolog.Logger

	// Registry receives the metrics. Defaults to the global Prometheus registry.
	Registry *prometheus.Registry
}

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Registry   *registry.Registry
	Metrics    *metrics.Collector
	Bus        *events.Bus
	HTTPServer *http.Server

	holder    *config.Holder
	cfg       atomic.Pointer[config.Config]
	validator atomic.Pointer[validation.Validator]
	observer  ports.ValidationObserver
	clock     ports.Clock

	mu        sync.Mutex
	schemaDir string
	watcher   *config.DirWatcher
}

// New creates and initializes the application.
func New(opts Options) (*App, error) {
	a := &App{clock: ports.SystemClock{}, observer: ports.NopObserver{}}

	cfg, fromFile, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if opts.Logger != nil {
		a.Logger = *opts.Logger
	} else {
		a.Logger = SetupLogger(cfg.Logging, os.Stdout)
	}

	if fromFile {
		h, err := config.NewHolder(opts.ConfigPath, a.Logger)
		if err != nil {
			return nil, err
		}
		a.holder = h
		cfg = h.Get()
	}
	a.cfg.Store(cfg)

	a.Logger.Info().Str("schemas", cfg.Schemas.Dir).Msg("initializing paramkit")

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		if opts.Registry != nil {
			a.Metrics = metrics.NewWithRegistry(opts.Registry)
			metricsHandler = promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})
		} else {
			a.Metrics = metrics.New()
			metricsHandler = promhttp.Handler()
		}
		a.observer = a.Metrics
		a.Logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	a.validator.Store(BuildValidator(cfg.Validation, a.observer, a.Logger))

	a.Bus = events.NewBus(a.Logger)
	RegisterHooks(a.Bus, a.Logger)

	a.Registry = registry.New(a.Logger, registry.WithClock(a.clock))
	if err := a.ReloadSchemas(); err != nil {
		a.Logger.Warn().Err(err).Msg("some schemas failed to load")
	}

	schemas := apihttp.NewSchemaHandler(a.Registry, a.NewContext, a.Logger)
	schemas.EncodeOptions = func() []codec.Option {
		return CodecOptions(a.Config().Schemas.CustomRules)
	}

	router := apihttp.NewRouter(
		schemas,
		apihttp.NewHealthHandler(a),
		a.Logger,
		apihttp.RouterConfig{
			Version:        opts.Version,
			Metrics:        a.Metrics,
			MetricsHandler: metricsHandler,
			MetricsPath:    cfg.Metrics.Path,
			RequestTimeout: cfg.Server.RequestTimeout,
		},
	)

	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return a, nil
}

// loadConfig reads the config file when it exists, else the environment.
func loadConfig(path string) (*config.Config, bool, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			cfg, err := config.Load(path)
			return cfg, err == nil, err
		}
	}
	if !config.HasEnvConfig() {
		return nil, false, fmt.Errorf("no configuration found: provide config file or set PARAMKIT_SCHEMAS_DIR")
	}
	cfg, err := config.LoadFromEnv()
	return cfg, false, err
}

// Config returns the current configuration.
func (a *App) Config() *config.Config {
	return a.cfg.Load()
}

// NewContext creates a context over s wired to the app's validator, event
// bus, metrics and clock.
func (a *App) NewContext(s *schema.Schema) *state.Context {
	return state.New(s,
		state.WithValidator(a.validator.Load()),
		state.WithLogger(a.Logger),
		state.WithPublisher(a.Bus),
		state.WithObserver(a.observer),
		state.WithClock(a.clock),
		state.WithIDGenerator(idgen.UUID{}),
	)
}

// HealthCheck implements the readiness check.
func (a *App) HealthCheck(ctx context.Context) error {
	if a.Registry.Len() == 0 {
		return ErrNoSchemas
	}
	return nil
}

// ReloadSchemas loads the configured schema directory. The first load
// registers every file that parses; later loads replace the directory's
// schemas atomically and keep the previous ones when any file fails. When
// the directory changed since the last load, schemas from the previous one
// are dropped.
func (a *App) ReloadSchemas() error {
	cfg := a.Config()

	a.mu.Lock()
	prev := a.schemaDir
	a.mu.Unlock()

	var n int
	var err error
	if prev == "" {
		n, err = a.Registry.LoadDir(cfg.Schemas.Dir)
		a.setSchemaDir(cfg.Schemas.Dir)
	} else {
		n, err = a.Registry.Reload(cfg.Schemas.Dir)
		var conflict *registry.ConflictError
		if err == nil || errors.As(err, &conflict) {
			if prev != cfg.Schemas.Dir {
				a.Registry.DropSource(prev)
			}
			a.setSchemaDir(cfg.Schemas.Dir)
		}
	}
	a.observeReload(err)

	a.Logger.Info().Str("dir", cfg.Schemas.Dir).Int("schemas", n).Msg("schema registry ready")
	return err
}

func (a *App) setSchemaDir(dir string) {
	a.mu.Lock()
	a.schemaDir = dir
	a.mu.Unlock()
}

func (a *App) observeReload(err error) {
	if a.Metrics != nil {
		a.Metrics.ObserveSchemaReload(a.Registry.Len(), err, a.clock.Now())
	}
}

// applyConfig reacts to a reloaded configuration.
func (a *App) applyConfig(cfg *config.Config) {
	old := a.cfg.Swap(cfg)

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	if old.Validation != cfg.Validation {
		a.validator.Store(BuildValidator(cfg.Validation, a.observer, a.Logger))
	}

	if old.Schemas.Dir != cfg.Schemas.Dir || old.Schemas.Watch != cfg.Schemas.Watch {
		if err := a.ReloadSchemas(); err != nil {
			a.Logger.Error().Err(err).Msg("schema reload after config change failed")
		}
		a.restartSchemaWatch()
	}

	if a.Metrics != nil {
		a.Metrics.ObserveConfigReload(nil, a.clock.Now())
	}
}

func (a *App) restartSchemaWatch() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.watcher != nil {
		a.watcher.Stop()
		a.watcher = nil
	}

	cfg := a.Config()
	if !cfg.Schemas.Watch {
		return
	}
	w, err := config.WatchDir(cfg.Schemas.Dir, codec.IsSchemaFile, func() {
		if err := a.ReloadSchemas(); err != nil {
			a.Logger.Error().Err(err).Msg("schema reload failed")
		}
	}, a.Logger)
	if err != nil {
		a.Logger.Error().Err(err).Str("dir", cfg.Schemas.Dir).Msg("cannot watch schema directory")
		return
	}
	a.watcher = w
}

// Run starts the HTTP server and the reload watchers, and blocks until ctx
// is cancelled, SIGINT or SIGTERM arrives, or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a.holder != nil {
		a.holder.OnChange(a.applyConfig)
		a.holder.OnError(func(err error) {
			if a.Metrics != nil {
				a.Metrics.ObserveConfigReload(err, a.clock.Now())
			}
		})
		if err := a.holder.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch disabled")
		}
		a.holder.WatchSignals()
	}
	a.restartSchemaWatch()

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
	case <-ctx.Done():
		a.Logger.Info().Msg("context cancelled, shutting down")
	}

	return a.Shutdown()
}

// Shutdown stops the watchers and gracefully shuts down the HTTP server.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.holder != nil {
		a.holder.Stop()
	}

	a.mu.Lock()
	if a.watcher != nil {
		a.watcher.Stop()
		a.watcher = nil
	}
	a.mu.Unlock()

	var err error
	if a.HTTPServer != nil {
		if err = a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return err
}

// SetupLogger builds the root logger from cfg and sets the global level.
func SetupLogger(cfg config.LoggingConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(w).With().Timestamp().Logger()
}

// BuildValidator creates a validator from the validation config.
func BuildValidator(cfg config.ValidationConfig, observer ports.ValidationObserver, logger zerolog.Logger) *validation.Validator {
	opts := []validation.Option{
		validation.WithObserver(observer),
		validation.WithLogger(logger),
		validation.WithRuleTimeout(cfg.RuleTimeout),
	}
	if cfg.Concurrency > 0 {
		opts = append(opts, validation.WithConcurrency(cfg.Concurrency))
	}
	return validation.New(opts...)
}

// CodecOptions maps a custom rule policy name to the options schemas are
// encoded with.
func CodecOptions(policy string) []codec.Option {
	switch policy {
	case config.CustomRulesFail:
		return []codec.Option{codec.FailOnCustomRules()}
	case config.CustomRulesSkip:
		return []codec.Option{codec.SkipCustomRules()}
	default:
		return []codec.Option{codec.PlaceholderCustomRules()}
	}
}
