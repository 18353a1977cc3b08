// Package main is the entry point for the sheetstock API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sheetstock/internal/app"
	"sheetstock/internal/config"
	v1 "sheetstock/internal/infrastructure/http/v1"
	"sheetstock/internal/infrastructure/idempotency"
	"sheetstock/pkg/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
		Service:     "sheetstock-server",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Infow("starting sheetstock server", "version", version, "driver", cfg.StorageDriver)

	application, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer application.Close()

	go idempotency.RunCleanup(ctx, application.Idempotency, time.Minute, log)

	router := v1.NewRouter(v1.RouterConfig{
		Logger:         log,
		Metrics:        application.Metrics,
		Idempotency:    application.Idempotency,
		StorageDriver:  cfg.StorageDriver,
		Version:        version,
		Store:          application.Store,
		Inventory:      application.Inventory,
		Ledger:         application.Ledger,
		Sales:          application.Sales,
		Reconciliation: application.Reconciliation,
		Reports:        application.Reports,
		Maintenance:    application.Maintenance,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
