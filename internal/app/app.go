package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vk/assetgraph/internal/ctxlog"
	"github.com/vk/assetgraph/internal/engine"
	"github.com/vk/assetgraph/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	registry   *registry.Registry
	closers    []io.Closer
	httpServer *http.Server
}

// NewApp is the constructor for the main application. Results are written to
// outW and logs to logW. Without modules the built-in set is registered.
// It panics when the modules cannot be registered, which is a programmer
// error.
func NewApp(outW, logW io.Writer, cfg *Config, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	logger.Debug("Logger configured successfully.")

	var closers []io.Closer
	if len(modules) == 0 {
		modules, closers = coreModules(cfg, outW)
	}

	reg := registry.New()
	if err := reg.RegisterModules(modules...); err != nil {
		panic(fmt.Errorf("failed to register modules: %w", err))
	}
	logger.Debug("All Go modules registered.", "count", len(modules), "types", len(reg.Types()))

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		closers:  closers,
	}
}

// Registry returns the application's registry.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Engine builds an engine configured from the application config.
func (a *App) Engine() *engine.Engine {
	return engine.New(a.registry, a.engineOptions())
}

func (a *App) engineOptions() engine.Options {
	return engine.Options{
		Workers:     a.config.Workers,
		NodeTimeout: a.config.NodeTimeout,
		Schema:      schemaFor(a.config.StateMode),
	}
}

// withLogger attaches the application logger to ctx.
func (a *App) withLogger(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

// Close releases the clients held by the built-in modules.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
