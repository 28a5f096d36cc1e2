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

	asrimpl "github.com/leep66666/smart-job-assistant-backend/external/asr"
	configloader "github.com/leep66666/smart-job-assistant-backend/external/config"
	"github.com/leep66666/smart-job-assistant-backend/external/httpapi"
	"github.com/leep66666/smart-job-assistant-backend/external/llm"
	repositoryimpl "github.com/leep66666/smart-job-assistant-backend/external/repository"
	webhookimpl "github.com/leep66666/smart-job-assistant-backend/external/webhook"
	"github.com/leep66666/smart-job-assistant-backend/internal/config"
	"github.com/leep66666/smart-job-assistant-backend/internal/interview"
	"github.com/leep66666/smart-job-assistant-backend/internal/session"
	"github.com/samber/do/v2"
)

const shutdownTimeout = 15 * time.Second

func main() {
	slog.Info("startup: loading configuration")
	cfg := mustLoadConfig()
	initLogger(cfg)
	slog.Info("startup: configuration loaded", "env", cfg.Env)

	slog.Info("startup: building dependency graph")
	injector := setupDI(cfg)

	slog.Info("startup: launching http server")
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
	repositoryimpl.RegisterDI(injector)
	asrimpl.RegisterDI(injector)
	llm.RegisterDI(injector)
	webhookimpl.RegisterDI(injector)
	interview.RegisterDI(injector)
	session.RegisterDI(injector)
	httpapi.RegisterDI(injector)

	return injector
}

func runServer(cfg *config.Config, injector do.Injector) {
	api, err := do.Invoke[*httpapi.Server](injector)
	if err != nil {
		slog.Error("failed to resolve http api", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:    cfg.HTTPListenAddr,
		Handler: api.Router(),
	}

	done := make(chan struct{})
	go func() {
		slog.Info("startup: listening", "addr", cfg.HTTPListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}
}
