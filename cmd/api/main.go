package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flow-efficiency/pkg/config"
	"flow-efficiency/pkg/handler"
	"flow-efficiency/pkg/repository"
	"flow-efficiency/pkg/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	ctx := context.Background()

	// Storage
	store, err := repository.Open(ctx, cfg.Store)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.Store.Driver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if cfg.Store.Seed || cfg.Store.Driver == config.DriverMemory {
		seeded, err := repository.Seed(ctx, store)
		if err != nil {
			logger.Error("failed to seed store", "error", err)
			os.Exit(1)
		}
		if seeded {
			logger.Info("loaded sample data")
		}
	}

	// Services
	kpiSvc := service.NewKPIService(store.Records, logger)
	recordSvc := service.NewDealRecordService(store.Records, logger)
	mappingSvc := service.NewMappingService(store.Mappings, store.Versions, logger)
	timelineSvc := service.NewTimelineService(store.Deals, logger)

	router := handler.New(handler.Services{
		KPIs:      kpiSvc,
		Records:   recordSvc,
		Mappings:  mappingSvc,
		Timelines: timelineSvc,
	}, logger).Router()

	addr := cfg.Server.Addr()
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr, "store", cfg.Store.Driver)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	waitForShutdown(logger, httpServer)
}

func waitForShutdown(logger *slog.Logger, server *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
