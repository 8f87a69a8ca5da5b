// Package main provides the entry point for the pathwatch CLI, a small
// demonstration binary that watches directories and logs every event.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/pathwatch/pathwatch"
	"github.com/pathwatch/pathwatch/internal/config"
	"github.com/pathwatch/pathwatch/internal/di"
	"github.com/pathwatch/pathwatch/internal/logger"
)

func main() {
	injector := di.NewContainer()

	cfg, err := do.Invoke[*config.Config](injector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := do.MustInvoke[*logger.Logger](injector)

	watcher, err := do.Invoke[*pathwatch.Watcher](injector)
	if err != nil {
		log.Fatal("Failed to create watcher", "error", err)
	}

	logEvent := func(e pathwatch.Event) error {
		log.Info("change detected", "type", e.Type.String(), "path", e.Path, "dir", e.IsDir)
		return nil
	}

	for _, path := range cfg.Watch.Paths {
		var err error
		if cfg.Watch.Recursive {
			_, err = watcher.OnChangeRecursive(path, nil, logEvent)
		} else {
			_, err = watcher.OnChange(path, nil, logEvent)
		}
		if err != nil {
			log.Fatal("Failed to watch path", "path", path, "error", err)
		}
		log.Info("watching", "path", path, "recursive", cfg.Watch.Recursive, "polling", watcher.UsesPolling())
	}

	// Wait for shutdown signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	if err := watcher.Stop(); err != nil {
		log.Error("Failed to stop watcher", "error", err)
	}
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}
}
