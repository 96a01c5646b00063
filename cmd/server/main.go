package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	configloader "github.com/foxseedlab/livescribe/external/config"
	diarizerimpl "github.com/foxseedlab/livescribe/external/diarizer"
	embeddingimpl "github.com/foxseedlab/livescribe/external/embedding"
	eventsimpl "github.com/foxseedlab/livescribe/external/events"
	repositoryimpl "github.com/foxseedlab/livescribe/external/repository"
	streamimpl "github.com/foxseedlab/livescribe/external/stream"
	transcriberimpl "github.com/foxseedlab/livescribe/external/transcriber"
	webhookimpl "github.com/foxseedlab/livescribe/external/webhook"
	"github.com/foxseedlab/livescribe/internal/config"
	"github.com/foxseedlab/livescribe/internal/events"
	"github.com/foxseedlab/livescribe/internal/metrics"
	"github.com/foxseedlab/livescribe/internal/session"
	"github.com/samber/do/v2"
)

const (
	shutdownTimeout   = 45 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env, "default_provider", cfg.DefaultProvider)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: starting http server", "addr", cfg.ListenAddr)
	runServer(cfg, injector)
}

func mustLoadConfig() *config.Config {
	cfg, err := configloader.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) {
	logLevel := slog.LevelInfo
	if cfg.IsDevelopment() {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))
}

func setupDI(cfg *config.Config) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	metrics.RegisterDI(injector)
	repositoryimpl.RegisterDI(injector)
	diarizerimpl.RegisterDI(injector)
	embeddingimpl.RegisterDI(injector)
	transcriberimpl.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	eventsimpl.RegisterDI(injector)
	session.RegisterDI(injector)
	streamimpl.RegisterDI(injector)

	return injector
}

func runServer(cfg *config.Config, injector do.Injector) {
	handler, err := do.Invoke[http.Handler](injector)
	if err != nil {
		slog.Error("failed to resolve http handler", "error", err)
		os.Exit(1)
	}
	manager := do.MustInvoke[*session.Manager](injector)
	publisher := do.MustInvoke[events.Publisher](injector)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	done := make(chan struct{})
	go func() {
		slog.Info("startup: entering http serve loop", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
		}
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		slog.Info("shutting down")
	case <-done:
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("http server shutdown failed", "error", err)
	}
	if err := manager.Shutdown(ctx); err != nil {
		slog.Error("session shutdown incomplete", "error", err, "active_sessions", manager.Active())
	}
	if err := publisher.Close(); err != nil {
		slog.Error("event publisher close failed", "error", err)
	}
	slog.Info("shutdown complete")
}
