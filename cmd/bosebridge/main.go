package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"bosebridge/internal/api"
	"bosebridge/internal/auth"
	"bosebridge/internal/bose"
	"bosebridge/internal/clock"
	"bosebridge/internal/config"
	"bosebridge/internal/device"
	"bosebridge/internal/discovery"
)

func main() {
	// Optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger := newLogger()
	defer logger.Sync()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath, logger)
	if err != nil {
		logger.Fatal("Failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}

	clk := clock.NewRealClock()

	session := auth.NewSession(auth.Token{
		AccessToken:  os.Getenv("BOSE_ACCESS_TOKEN"),
		RefreshToken: os.Getenv("BOSE_REFRESH_TOKEN"),
		BosePersonID: os.Getenv("BOSE_PERSON_ID"),
	}, clk, logger)

	refresher := auth.NewRefresher(session, clk, logger)
	if cfg.Cloud.RefreshMargin > 0 {
		refresher.Margin = cfg.Cloud.RefreshMargin
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go refresher.Run(ctx)

	registry := device.NewRegistry()
	dial := device.Dialer(session.AccessToken, logger, bose.WithUnauthorizedHook(refresher.Nudge))
	manager := device.NewManager(cfg, dial, registry, clk, nil, logger,
		device.WithDiscovery(discovery.New(logger)),
		device.WithPresetSource(auth.NewCloudClient(session)),
		device.WithTokenValidity(func() float64 { return session.TimeUntilExpiry().Seconds() }),
	)

	startCtx, cancel := context.WithTimeout(ctx, time.Minute)
	err = manager.Start(startCtx)
	cancel()
	if err != nil {
		logger.Fatal("No speakers available", zap.Error(err))
	}
	defer manager.Stop()

	server := api.NewServer(cfg.API.Port, registry, logger)
	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("API server failed", zap.Error(serveErr))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("API shutdown failed", zap.Error(err))
	}
}

func newLogger() *zap.Logger {
	if os.Getenv("DEBUG") != "" {
		logger, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		return logger
	}
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return logger
}
