package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/VikingOwl91/smallweb-shim/internal/config"
	"github.com/VikingOwl91/smallweb-shim/internal/environ"
	"github.com/VikingOwl91/smallweb-shim/internal/logging"
	"github.com/VikingOwl91/smallweb-shim/internal/shim"
)

func main() {
	env, err := environ.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", shim.Name, err)
		os.Exit(1)
	}

	settings, settingsErr := config.LoadOptional(env.SettingsPath())
	if settingsErr != nil {
		settings = config.Default()
	}

	logger, closer, err := logging.New(logging.Options{
		Debug: env.Debug,
		Level: settings.LogLevel,
		File:  settings.LogFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", shim.Name, err)
		logger = slog.New(slog.DiscardHandler)
	}
	if settingsErr != nil {
		logger.Warn("ignoring settings file", slog.String("error", settingsErr.Error()))
	}

	ctx := context.Background()

	pathVar := env.Path
	if pathVar == "" {
		if p, err := environ.LoginShellPath(ctx, env.Shell); err == nil {
			logger.Debug("PATH empty, using login shell PATH", slog.String("path", p))
			pathVar = p
			os.Setenv("PATH", p)
		} else {
			logger.Warn("PATH empty and login shell query failed", slog.String("error", err.Error()))
		}
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	code := shim.Run(ctx, shim.Options{
		Args:     os.Args,
		Path:     pathVar,
		Environ:  os.Environ(),
		Settings: settings,
		Logger:   logger,
		Signals:  signals,
	})

	signal.Stop(signals)
	if closer != nil {
		closer.Close()
	}
	os.Exit(code)
}
