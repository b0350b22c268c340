package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/svieira1985/gpt-webassist-sam/internal/server/config"
	"github.com/svieira1985/gpt-webassist-sam/internal/server/generator"
	"github.com/svieira1985/gpt-webassist-sam/internal/server/httpapi"
	"github.com/svieira1985/gpt-webassist-sam/internal/server/notify"
	"github.com/svieira1985/gpt-webassist-sam/internal/server/repository/memory"
	"github.com/svieira1985/gpt-webassist-sam/internal/server/repository/sqlite"
	"github.com/svieira1985/gpt-webassist-sam/internal/server/service"
	"github.com/svieira1985/gpt-webassist-sam/internal/server/telemetry"
)

type repository interface {
	service.Repository
	io.Closer
}

type App struct {
	version   string
	buildDate string
	logger    *slog.Logger
	cfg       config.Config
	server    *http.Server
	services  *service.Services
	repo      repository
	cleanup   func()
}

func New(ctx context.Context, version, buildDate string, cfg config.Config, logger *slog.Logger) (*App, error) {
	repo, err := openRepository(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	tel := telemetry.Noop()
	cleanup := func() {}
	if cfg.TelemetryEnabled {
		tel, cleanup, err = telemetry.Init(ctx, cfg.TelemetryDir, version)
		if err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
	}

	gen, err := generator.New(ctx, generator.Config{
		Provider: cfg.GeneratorProvider,
		Model:    cfg.GeneratorModel,
		APIKey:   cfg.GeneratorAPIKey,
		BaseURL:  cfg.GeneratorBaseURL,
		Timeout:  cfg.GeneratorTimeout,
	})
	if err != nil {
		cleanup()
		_ = repo.Close()
		return nil, fmt.Errorf("init generator: %w", err)
	}

	var notifier notify.Notifier = notify.LogNotifier{Logger: logger}
	if cfg.SMTPEnabled() {
		notifier = notify.NewSMTP(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	} else {
		logger.Warn("smtp credentials not set, login tokens will be written to the log")
	}

	services, err := service.NewServices(repo, cfg, service.Deps{
		Generator: gen,
		Notifier:  notifier,
		Telemetry: tel,
		Logger:    logger,
	})
	if err != nil {
		cleanup()
		_ = repo.Close()
		return nil, err
	}
	router := httpapi.NewRouter(services, logger, httpapi.Options{
		MaxRequestBytes:  cfg.MaxRequestBytes,
		CORSOrigins:      cfg.CORSOrigins,
		ExposeDebugToken: cfg.ExposeDebugToken,
	})
	// generation calls can take a while; keep the write deadline above them
	writeTimeout := 10 * time.Second
	if cfg.GeneratorTimeout > 0 {
		writeTimeout += cfg.GeneratorTimeout
	} else {
		writeTimeout = 0
	}
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return &App{
		version:   version,
		buildDate: buildDate,
		logger:    logger,
		cfg:       cfg,
		server:    server,
		services:  services,
		repo:      repo,
		cleanup:   cleanup,
	}, nil
}

func openRepository(dsn string) (repository, error) {
	if dsn == "" {
		return memory.New(), nil
	}
	return sqlite.New(dsn)
}

func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer a.cleanup()
	defer func() { _ = a.repo.Close() }()

	go a.purgeTokens(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	a.logger.Info("webassist server started",
		"version", a.version, "build_date", a.buildDate, "addr", a.server.Addr)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}

// purgeTokens drops expired login tokens until ctx is cancelled.
func (a *App) purgeTokens(ctx context.Context) {
	if a.cfg.TokenPurgeInterval <= 0 {
		return
	}
	ticker := time.NewTicker(a.cfg.TokenPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.services.Auth.PurgeExpiredTokens(ctx)
			if err != nil {
				a.logger.Error("purge expired login tokens", "error", err)
				continue
			}
			if n > 0 {
				a.logger.Debug("purged expired login tokens", "count", n)
			}
		}
	}
}
