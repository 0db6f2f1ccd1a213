// Package main implements the entry point for the pulse-api server,
// which watches an upstream analysis backend and re-exposes a live,
// reconciled view of in-flight background analysis jobs to downstream
// consumers.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/statuspulse/pulse-api/internal/config"
	"github.com/statuspulse/pulse-api/internal/platform/logger"
	"github.com/statuspulse/pulse-api/internal/service/auth"
	"github.com/statuspulse/pulse-api/internal/stream"
	"github.com/statuspulse/pulse-api/internal/upstream"
	"github.com/statuspulse/pulse-api/internal/watch"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}

func run() error {
	// A .env file is a development convenience; absence is the normal
	// production case.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"upstream", cfg.Upstream.BaseURL)

	verifier, err := auth.NewTokenVerifier(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to create token verifier: %w", err)
	}

	bus := stream.NewInMemoryBus(appLogger)
	client := upstream.NewClient(cfg.Upstream, appLogger)
	engine := watch.NewEngine(client, client, bus, watch.NotifierConfig{
		SuccessTTL: time.Duration(cfg.Notify.SuccessTTLSeconds) * time.Second,
		InfoTTL:    time.Duration(cfg.Notify.InfoTTLSeconds) * time.Second,
	}, appLogger)

	relay := stream.NewRelay(stream.RelayConfig{
		URL:   strings.TrimRight(cfg.Upstream.BaseURL, "/") + cfg.Upstream.EventsPath,
		Token: cfg.Upstream.Token,
	}, bus, appLogger)
	relay.OnConnect(engine.Activate)
	relay.OnDisconnect(engine.Deactivate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	relay.Start(ctx)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           setupRouter(engine, verifier, appLogger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received")

	// Engine teardown first: the registry is session-scoped state and
	// must not outlive the process's watch cycle.
	relay.Stop()
	engine.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
