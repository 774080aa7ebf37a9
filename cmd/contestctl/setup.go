package main

import (
	"fmt"

	"go.uber.org/zap"

	"contesttracker/internal/app"
	"contesttracker/internal/config"
	"contesttracker/internal/logger"
)

// loadApp builds the same wiring the server uses. Logs go to stderr so stdout
// stays machine readable.
func loadApp() (*app.App, func(), error) {
	cfg, err := config.Load(cfgFile, envOnly)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Log.Development = false
	cfg.Log.Output = "stderr"
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, err
	}
	cleanup := func() {
		a.Close()
		_ = log.Sync()
	}
	a.Logger.Debug("contestctl ready", zap.Int("sources", len(a.Sources)))
	return a, cleanup, nil
}
