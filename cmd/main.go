package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/kuilinga/terminal-gateway/internal/api"
	"github.com/kuilinga/terminal-gateway/internal/auth"
	"github.com/kuilinga/terminal-gateway/internal/config"
	"github.com/kuilinga/terminal-gateway/internal/liveness"
	"github.com/kuilinga/terminal-gateway/internal/metrics"
	"github.com/kuilinga/terminal-gateway/internal/mqtt"
	"github.com/kuilinga/terminal-gateway/internal/websocket"
	"github.com/kuilinga/terminal-gateway/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger settings come from the config, so fall back to a production logger here
		logger, _ := zap.NewProduction()
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// Initialize logger
	logger, _ := zap.NewProduction()
	if cfg.LogDevelopment {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Initialize adapters
	store, err := openStorage(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}

	// Initialize realtime hub
	hub := websocket.NewHub(m, logger)
	hubCtx, stopHub := context.WithCancel(ctx)
	go hub.Run(hubCtx)

	transport, err := mqtt.NewTransport(cfg.MQTT, m, logger)
	if err != nil {
		logger.Fatal("Failed to create MQTT transport", zap.Error(err))
	}

	// Initialize usecase services
	heartbeats := usecase.NewHeartbeatService(store.devices, logger)
	attendance := usecase.NewAttendanceService(
		store.devices,
		store.employees,
		store.attendances,
		heartbeats,
		transport,
		hub,
		transport.Topics(),
		m,
		logger,
	)
	phrases, err := usecase.PhrasesFor(cfg.TerminalLanguage)
	if err != nil {
		logger.Fatal("Invalid terminal language", zap.Error(err))
	}
	attendance.SetPhrases(phrases)

	commands := usecase.NewCommandService(store.devices, transport, transport.Topics(), m, logger)

	router := mqtt.NewRouter(transport.Topics(), attendance, heartbeats, m, logger)
	if err := transport.Start(ctx, router); err != nil {
		logger.Fatal("Failed to start MQTT transport", zap.Error(err))
	}

	monitor := liveness.NewMonitor(store.devices, cfg.Liveness.CheckInterval, cfg.Liveness.OfflineTimeout, m, logger)
	monitor.Start()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize API routes
	api.InitRoutes(e, api.Dependencies{
		Commands: commands,
		Liveness: monitor,
		Realtime: hub,
		Broker:   transport,
		Tokens:   auth.NewTokenManager(cfg.JWTSecret),
		Gatherer: registry,
		Logger:   logger,
	})

	port := strconv.Itoa(cfg.Port)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Terminal gateway started",
		zap.String("port", port),
		zap.String("broker", cfg.MQTT.BrokerURL()),
		zap.String("storage", cfg.Storage.Backend))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Gateway is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	transport.Stop()
	monitor.Stop()
	stopHub()
	if err := store.close(shutdownCtx); err != nil {
		logger.Error("Failed to close storage", zap.Error(err))
	}

	logger.Info("Gateway exited")
}
