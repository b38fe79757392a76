package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ubuygold/keygate/internal/api"
	"github.com/ubuygold/keygate/internal/config"
	"github.com/ubuygold/keygate/internal/keygen"
	"github.com/ubuygold/keygate/internal/license"
	"github.com/ubuygold/keygate/internal/logger"
	"github.com/ubuygold/keygate/internal/metrics"
	"github.com/ubuygold/keygate/internal/scheduler"
	"github.com/ubuygold/keygate/internal/store"
)

// app wires the store, service and HTTP router together.
type app struct {
	store     store.Store
	router    *gin.Engine
	scheduler *scheduler.Scheduler
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	keyStore, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("error opening key store: %w", err)
	}

	gen, err := keygen.New(cfg.Keygen.Strategy)
	if err != nil {
		keyStore.Close()
		return nil, err
	}

	m := metrics.New()
	svc := license.NewService(keyStore, gen, m, log)

	return &app{
		store:     keyStore,
		router:    api.NewRouter(svc, cfg, m, log),
		scheduler: scheduler.NewScheduler(svc, m, log),
	}, nil
}

func (a *app) Close() error {
	a.scheduler.Stop()
	return a.store.Close()
}

func configPath() string {
	if path := os.Getenv("KEYGATE_CONFIG"); path != "" {
		return path
	}
	return "config.yaml"
}

func main() {
	// Load configuration
	cfg, warning, err := config.LoadConfig(configPath())
	if err != nil {
		// Use a temporary logger for startup errors
		slog.Error("Error loading configuration", "error", err)
		os.Exit(1)
	}

	// Setup logger
	log := logger.NewWithWriter(os.Stdout, cfg.LogFormat, cfg.Debug)
	log.Info("Logger initialized", "debug_mode", cfg.Debug)
	if warning != "" {
		log.Warn(warning)
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := newApp(context.Background(), cfg, log)
	if err != nil {
		log.Error("Error initializing application", "error", err)
		os.Exit(1)
	}
	log.Info("Key store initialized", "type", cfg.Store.Type, "auth_mode", cfg.Auth.Mode)
	if cfg.Auth.Mode == config.AuthOpen {
		log.Warn("Admin endpoints are not password protected")
	}
	if cfg.Store.Type == config.StoreMemory {
		log.Warn("Keys are kept in memory and will be lost on restart")
	}

	if err := a.scheduler.Start(cfg.Scheduler.StatsInterval); err != nil {
		log.Error("Error starting scheduler", "error", err)
		os.Exit(1)
	}
	log.Info("Scheduler started", "stats_interval", cfg.Scheduler.StatsInterval)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info("Starting server", "port", cfg.Port, "admin_panel", fmt.Sprintf("http://localhost:%d/admin.html", cfg.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	if err := a.Close(); err != nil {
		log.Error("Error closing key store", "error", err)
	}

	log.Info("Server exiting")
}
