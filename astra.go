// Package astra provides a high-level façade for applications described in
// YAML: a shared model, agents with roles and goals, and an ordered list of
// tasks. Most programs interact with this package by:
//  1. Loading an application via Load (or FromFile for an already parsed definition)
//  2. Running it with inputs that fill the task description templates
//  3. Closing it to release the run store
//
// Programs that build agents and tasks in code use the agent and application
// packages directly.
package astra

import (
	"context"

	"github.com/hupe1980/astra/application"
	"github.com/hupe1980/astra/config"
	"github.com/hupe1980/astra/internal/bootstrap"
	"github.com/hupe1980/astra/logging"
	"github.com/hupe1980/astra/metrics"
	"github.com/hupe1980/astra/tool"
)

// Options configures Load and FromFile.
type Options struct {
	// Settings supplies credentials and endpoints. When nil they are read
	// from the environment.
	Settings *config.Settings
	// Logger defaults to a NoOp logger.
	Logger logging.Logger
	// Metrics, when set, instruments models, tools and tasks.
	Metrics *metrics.Metrics
}

// App is a loaded application.
type App struct {
	*application.Application

	bundle *bootstrap.Bundle
}

// Load reads the application definition at path and builds it.
func Load(ctx context.Context, path string, optFns ...func(o *Options)) (*App, error) {
	file, err := config.LoadAppFile(path)
	if err != nil {
		return nil, err
	}
	return FromFile(ctx, file, optFns...)
}

// FromFile builds an application from a parsed definition.
func FromFile(ctx context.Context, file *config.AppFile, optFns ...func(o *Options)) (*App, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	settings, err := resolveSettings(ctx, opts.Settings)
	if err != nil {
		return nil, err
	}

	b, err := bootstrap.Build(ctx, file, settings, func(o *bootstrap.Options) {
		o.Logger = opts.Logger
		o.Metrics = opts.Metrics
	})
	if err != nil {
		return nil, err
	}
	return &App{Application: b.App, bundle: b}, nil
}

// Close releases resources held by the application.
func (a *App) Close() error { return a.bundle.Close() }

// Catalog returns every tool an application definition can name.
func Catalog(settings config.Settings) *tool.Registry {
	return bootstrap.Catalog(settings)
}

func resolveSettings(ctx context.Context, s *config.Settings) (config.Settings, error) {
	if s != nil {
		if err := s.Validate(); err != nil {
			return config.Settings{}, err
		}
		return *s, nil
	}
	return config.LoadSettings(ctx)
}
