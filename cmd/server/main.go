package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sportsocial/backend/internal/config"
	"github.com/sportsocial/backend/internal/kernel"
	"github.com/sportsocial/backend/internal/logger"
	"github.com/sportsocial/backend/internal/telemetry"
	"github.com/sportsocial/backend/internal/validation"
	"go.uber.org/zap"
)

func main() {
	cfg, envLoaded := config.Load()

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Log.Info("=== Sports Social server starting ===",
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.Port),
	)
	if !envLoaded {
		logger.Log.Warn(".env file not found, using system environment variables")
	}
	if legacy := config.LegacyStoreKeys(); len(legacy) > 0 {
		logger.Log.Warn("Ignoring legacy configuration keys", zap.Strings("keys", legacy))
	}
	if err := cfg.Validate(); err != nil {
		logger.Log.Fatal("Invalid configuration", zap.Error(err))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := validation.RegisterBindings(); err != nil {
		logger.Log.Fatal("Failed to register validators", zap.Error(err))
	}

	tp, err := telemetry.InitTracer(telemetry.Config{
		ServiceName:  kernel.ServiceName,
		Environment:  cfg.Environment,
		OTLPEndpoint: cfg.OTelEndpoint,
		Enabled:      cfg.OTelEnabled,
		SamplingRate: cfg.OTelSamplingRate,
		Insecure:     cfg.OTelInsecure,
		Headers:      cfg.OTelHeaders,
		Realtime:     true,
	})
	if err != nil {
		logger.Log.Warn("Tracing disabled", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	k, err := kernel.Build(ctx, cfg)
	if err != nil {
		logger.Log.Fatal("Failed to initialize services", zap.Error(err))
	}
	k.Start()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           k.Router(ctx, []string{cfg.FrontendURL}, tp != nil),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := k.Cleanup(shutdownCtx); err != nil {
		logger.Log.Warn("Cleanup finished with errors", zap.Error(err))
	}
	if tp != nil {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Log.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}
	stop()

	logger.Log.Info("Server exited")
}
