// Package di provides dependency injection configuration for the watch CLI.
package di

import (
	"os"

	"github.com/samber/do/v2"

	"github.com/pathwatch/pathwatch"
	"github.com/pathwatch/pathwatch/internal/config"
	"github.com/pathwatch/pathwatch/internal/logger"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	do.Provide(injector, ProvideConfig)
	do.Provide(injector, ProvideLogger)
	do.Provide(injector, ProvideWatcher)

	return injector
}

// ProvideConfig loads the CLI configuration.
func ProvideConfig(do.Injector) (*config.Config, error) {
	return config.Load(os.Args[1:])
}

// ProvideLogger creates the logger from the loaded configuration.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg, err := do.Invoke[*config.Config](i)
	if err != nil {
		return nil, err
	}

	return logger.New(logger.Config{
		Level:  logger.ParseLevel(cfg.Logger.Level),
		Format: cfg.Logger.Format,
	}), nil
}

// ProvideWatcher creates the watcher with the configured backend options.
func ProvideWatcher(i do.Injector) (*pathwatch.Watcher, error) {
	cfg, err := do.Invoke[*config.Config](i)
	if err != nil {
		return nil, err
	}
	log, err := do.Invoke[*logger.Logger](i)
	if err != nil {
		return nil, err
	}

	opts := pathwatch.Options{
		ForcePolling:    cfg.Watch.ForcePolling,
		PollInterval:    cfg.Watch.PollInterval,
		DebounceWindow:  cfg.Watch.DebounceWindow,
		DisableDebounce: cfg.Watch.NoDebounce,
	}
	if cfg.Watch.IncludeHidden {
		// Explicit empty pattern list also turns off the hidden-file default.
		opts.IgnorePatterns = []string{}
	}

	return pathwatch.New(log.Logger, opts)
}
