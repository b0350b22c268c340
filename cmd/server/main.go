package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/svieira1985/gpt-webassist-sam/internal/server/app"
	"github.com/svieira1985/gpt-webassist-sam/internal/server/config"
	"github.com/svieira1985/gpt-webassist-sam/internal/server/logging"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	cfg := config.Load()
	logger, closer, err := logging.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		slog.Error("failed to init logger", "error", err)
		os.Exit(1)
	}
	defer func() { _ = closer.Close() }()
	slog.SetDefault(logger)

	application, err := app.New(context.Background(), version, buildDate, cfg, logger)
	if err != nil {
		logger.Error("failed to init server", "error", err)
		os.Exit(1)
	}
	if err := application.Run(); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}
