package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nsabot/updatescanner/internal/alarm"
	"github.com/nsabot/updatescanner/internal/autoscan"
	"github.com/nsabot/updatescanner/internal/config"
	"github.com/nsabot/updatescanner/internal/database"
	"github.com/nsabot/updatescanner/internal/handler"
	"github.com/nsabot/updatescanner/internal/metrics"
	"github.com/nsabot/updatescanner/internal/scan"
	"github.com/nsabot/updatescanner/internal/scheduler"
	"github.com/nsabot/updatescanner/internal/service"
	"github.com/nsabot/updatescanner/internal/webhook"
	"github.com/nsabot/updatescanner/internal/worker"
	"github.com/nsabot/updatescanner/pkg/middleware"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()

	config.InitLogger(cfg)

	slog.Info("Starting Update Scanner", "version", version)

	// Cancelled on shutdown; stops background scans and alarm listeners
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTimeout)
	if err != nil {
		slog.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Disconnect(context.Background()); err != nil {
			slog.Error("Failed to disconnect from MongoDB", "error", err)
		}
	}()

	if err := database.CreateIndexes(ctx, db); err != nil {
		slog.Error("Failed to create indexes", "error", err)
		os.Exit(1)
	}

	// Repositories
	pageRepo := database.NewPageRepository(db)
	if err := pageRepo.EnsureRoot(ctx); err != nil {
		slog.Error("Failed to create root folder", "error", err)
		os.Exit(1)
	}
	settingsRepo := database.NewSettingsRepository(db, map[string]interface{}{
		autoscan.DebugSetting: cfg.Debug,
	})
	historyRepo := database.NewScanHistoryRepository(db)
	notificationRepo := database.NewNotificationRepository(db)
	lockRepo := database.NewLockRepository(db)

	instanceID := scheduler.InstanceID()

	// Scan engine on a worker pool
	fetcher := scan.NewFetcher(scan.NewHTTPClient(cfg.ScanTimeout), cfg.ScanRequestsPerSec)
	pool := worker.NewWorkerPool(cfg.ScanWorkers, cfg.ScanQueueSize)
	engine := scan.NewEngine(pool, fetcher, pageRepo, lockRepo, historyRepo, instanceID, cfg.ScanLockTTL)
	pool.SetExecutor(engine.ScanPage)
	pool.Start()
	metrics.RegisterScanQueueLength(pool.GetJobQueueLength)

	if cfg.NotifyWebhookURL != "" {
		notifier, err := service.NewChangeNotifier(
			cfg.NotifyWebhookURL,
			webhook.NewDispatcher(cfg.DefaultWebhookTimeout),
			notificationRepo,
		)
		if err != nil {
			slog.Error("Invalid notification webhook", "error", err)
			os.Exit(1)
		}
		engine.SetNotifier(notifier)
		slog.Info("Change notifications enabled", "webhook_url", cfg.NotifyWebhookURL)
	}

	janitor := scheduler.NewJanitor(lockRepo, instanceID, cfg.ScanLockTTL)
	janitor.Start(ctx)

	// Autoscan
	alarms := alarm.New(ctx, slog.Default())
	var rearmer service.Rearmer
	if cfg.AutoscanEnabled {
		autoscanner := autoscan.New(alarms, settingsRepo, pageRepo, engine)
		if err := autoscanner.Initialize(ctx); err != nil {
			slog.Error("Failed to initialize autoscan", "error", err)
			os.Exit(1)
		}
		rearmer = autoscanner
	} else {
		slog.Info("Autoscan is disabled by configuration")
	}
	alarms.Start()

	// Services
	pageService := service.NewPageService(pageRepo, historyRepo)
	scanService := service.NewScanService(ctx, engine, pageService)
	historyService := service.NewHistoryService(historyRepo)
	notificationService := service.NewNotificationService(notificationRepo)
	settingsService := service.NewSettingsService(settingsRepo, rearmer)

	corsConfig := middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   cfg.CORSAllowedMethods,
		AllowedHeaders:   cfg.CORSAllowedHeaders,
		AllowCredentials: cfg.CORSAllowCredentials,
		MaxAge:           cfg.CORSMaxAge,
	}

	router := handler.NewRouter(
		handler.NewPageHandler(pageService),
		handler.NewScanHandler(scanService),
		handler.NewHistoryHandler(historyService),
		handler.NewNotificationHandler(notificationService),
		handler.NewSettingsHandler(settingsService),
		handler.NewHealthHandler(db, alarms, version),
		corsConfig,
	)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	go func() {
		slog.Info("Starting HTTP server", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Received shutdown signal, initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// No new firings, then wait for running ones
	slog.Info("Stopping autoscan alarms...")
	select {
	case <-alarms.Stop().Done():
	case <-shutdownCtx.Done():
		slog.Warn("Timeout waiting for autoscan firings to complete")
	}

	slog.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Background scans see a cancelled context and drain quickly
	cancel()
	pool.Stop()
	janitor.Stop(shutdownCtx)

	slog.Info("Update Scanner stopped")
}
