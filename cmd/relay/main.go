package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/cors"

	"github.com/treline/relay/internal/actions"
	"github.com/treline/relay/internal/api"
	"github.com/treline/relay/internal/engine"
	"github.com/treline/relay/internal/gateway"
	"github.com/treline/relay/internal/logging"
	"github.com/treline/relay/internal/router"
	"github.com/treline/relay/internal/scheduler"
	"github.com/treline/relay/internal/store"
	"github.com/treline/relay/internal/validation"
)

func main() {
	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("relay startup failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		cancel()
	}()

	// Store.
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	st, err := store.NewLibSQLStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	// Gateway client for the CRM core collaborators.
	crm, err := gateway.NewClient(gateway.Config{
		BaseURL: cfg.GatewayURL,
		APIKey:  cfg.GatewayAPIKey,
	})
	if err != nil {
		return fmt.Errorf("gateway client: %w", err)
	}

	// Action handlers.
	registry := actions.NewRegistry()
	handlers := []actions.Handler{
		actions.NewSendMessageHandler(crm),
		actions.NewCreateTaskHandler(st),
		actions.NewUpdateRecordHandler(crm),
		actions.NewAssignOwnerHandler(crm),
		actions.NewEnrollSequenceHandler(crm),
		actions.NewNotifyHandler(st),
		actions.NewWebhookHandler(nil),
	}
	for _, h := range handlers {
		if err := registry.Register(h); err != nil {
			return fmt.Errorf("register action handler: %w", err)
		}
	}

	// Engine.
	recorder := engine.NewRecorder(st, logger)
	runner := engine.NewRunner(st, registry, recorder, engine.RunnerConfig{
		ActionTimeout: cfg.actionTimeout(),
	}, logger)
	eventRouter := router.NewRouter(st, runner, router.Config{
		MaxConcurrentRuns: cfg.MaxConcurrentRuns,
	}, logger)

	// Scheduler for cron-bound definitions.
	sched := scheduler.NewScheduler(eventRouter, time.Minute, logger)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	// HTTP surface.
	validator, err := validation.NewWorkflowValidator(registry)
	if err != nil {
		return fmt.Errorf("build validator: %w", err)
	}
	apiServer := api.NewServer(st, eventRouter, validator, logger)

	corsOpts := cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Tenant-ID", "Authorization"},
	}
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: cors.New(corsOpts).Handler(apiServer.Handler()),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("relay listening", slog.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
