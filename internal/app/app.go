package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/etlgrid/internal/builtin"
	"github.com/vk/etlgrid/internal/config"
	"github.com/vk/etlgrid/internal/ctxlog"
	"github.com/vk/etlgrid/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	cfg      *Config
	registry *registry.Registry
	model    *config.Model
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
func NewApp(outW io.Writer, cfg *Config, modules ...registry.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loadModel(ctx, cfg.PipelinePath)
	if err != nil {
		// A failure to load config is a fatal startup error.
		panic(fmt.Errorf("failed to load pipeline definitions: %w", err))
	}
	logger.Debug("Definitions loaded and translated into unified model.")

	if len(modules) == 0 {
		modules = []registry.Module{builtin.Module{}}
	}
	reg := registry.New(modules...)
	logger.Debug("All recipe modules registered.", "count", len(modules))

	if err := reg.ValidateModel(ctx, model); err != nil {
		// A mismatch between definitions and registered handlers is fatal.
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	return &App{
		outW:     outW,
		logger:   logger,
		cfg:      cfg,
		registry: reg,
		model:    model,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Model returns the loaded definition model. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}
