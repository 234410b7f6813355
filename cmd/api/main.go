package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	delivery "rpc-scanner/internal/adapter/delivery/http"
	handler "rpc-scanner/internal/adapter/handler/http"
	"rpc-scanner/internal/adapter/storage/memory"
	"rpc-scanner/internal/adapter/storage/nodelist"
	"rpc-scanner/internal/application"
	"rpc-scanner/internal/bootstrap"
	"rpc-scanner/internal/logger"
	"rpc-scanner/internal/pkg/metrics"
)

func main() {
	// --- Configuration ---
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration from %s: %v", bootstrap.ConfigPath, err)
	}

	// --- Logger ---
	appLogger, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to setup logger: %v", err)
	}
	defer appLogger.Sync() // Ensure logs are flushed before exiting
	appLogger.Info("Logger initialized", zap.Any("config", cfg.Logger))

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Dependency Injection (Manual) ---
	appLogger.Info("Initializing dependencies...")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(registry)

	engine, err := bootstrap.NewEngine(cfg, appLogger, recorder)
	if err != nil {
		appLogger.Fatal("Failed to build scan engine", zap.Error(err))
	}

	// Repositories
	nodeRepo := nodelist.NewRepository(cfg.Nodes, appLogger)
	cacheRepo := memory.NewCacheRepository(cfg.Cache, appLogger)

	// Services
	scanService := application.NewScanService(rootCtx, nodeRepo, cacheRepo, engine.Fleet, appLogger, cfg.Cache)

	// Handlers
	scanHandler := handler.NewScanHandler(scanService, engine.MaxScore(), appLogger)

	// --- HTTP Router & Server ---
	appLogger.Info("Setting up HTTP router...")
	r := delivery.NewRouter(scanHandler, recorder.Handler(), appLogger)

	server := &fasthttp.Server{
		Handler: delivery.LoggingMiddleware(r.Handler, appLogger),
		Name:    cfg.App.Name,
	}

	go func() {
		<-rootCtx.Done()
		appLogger.Info("Shutting down HTTP server")
		if err := server.Shutdown(); err != nil {
			appLogger.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	// Correctly format the server address string
	serverAddr := ":" + cfg.Server.Port
	appLogger.Info("Starting HTTP server", zap.String("address", serverAddr))

	if err := server.ListenAndServe(serverAddr); err != nil {
		appLogger.Fatal("Failed to start server", zap.Error(err))
	}
}
