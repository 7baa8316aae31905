package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Sabuj-CSE11/NearbyWeather/internal/app"
	"github.com/Sabuj-CSE11/NearbyWeather/internal/config"
	logpkg "github.com/Sabuj-CSE11/NearbyWeather/internal/log"
	"github.com/Sabuj-CSE11/NearbyWeather/internal/persistency"
)

// services bundles everything a command needs once the worker is open.
type services struct {
	cfg      config.Config
	logger   *slog.Logger
	worker   *persistency.Worker
	weather  *app.WeatherService
	stations *app.StationService
	prefs    *app.PreferencesService
}

// withServices loads the configuration, opens the worker and hands the
// wired services to fn, closing everything afterwards.
func withServices(ctx context.Context, deps commandDeps, fn func(context.Context, services) error) error {
	cfg, logger, closeLogger, err := loadRuntime(deps)
	if err != nil {
		return mapCommandError(err)
	}
	defer closeLogger()

	worker, err := persistency.NewWorker(persistency.Config{
		Directory:   cfg.Storage.DataDir,
		FileName:    cfg.Storage.FileName,
		BusyTimeout: cfg.Storage.BusyTimeout,
		Logger:      logger,
	})
	if err != nil {
		return mapCommandError(fmt.Errorf("open store: %w", err))
	}
	defer worker.Close()

	svc := services{
		cfg:      cfg,
		logger:   logger,
		worker:   worker,
		weather:  app.NewWeatherService(worker, logger),
		stations: app.NewStationService(worker, logger),
		prefs:    app.NewPreferencesService(worker, logger),
	}
	return mapCommandError(fn(ctx, svc))
}

func loadRuntime(deps commandDeps) (config.Config, *slog.Logger, func(), error) {
	loadOpts := config.LoadOptions{}
	if deps.globals != nil {
		loadOpts.ConfigPath = strings.TrimSpace(deps.globals.ConfigPath)
		if dataDir := strings.TrimSpace(deps.globals.DataDir); dataDir != "" {
			loadOpts.Flags.DataDir = &dataDir
		}
		if level := strings.TrimSpace(deps.globals.LogLevel); level != "" {
			loadOpts.Flags.LogLevel = &level
		}
	}

	cfg, err := config.Load(loadOpts)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := logpkg.NewLogger(logpkg.Options{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
	})
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("build logger: %w", err)
	}

	return cfg, logger, func() { _ = closer.Close() }, nil
}

func printJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// printJSONLine writes compact single-line JSON, the format watch commands
// stream.
func printJSONLine(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	return enc.Encode(value)
}
