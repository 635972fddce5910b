package main

import (
	"context"
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"ghtrending/config"
	"ghtrending/logger"
	"ghtrending/service"
)

func main() {
	once := flag.Bool("once", false, "run a single scrape cycle and exit")
	flag.Parse()

	os.Exit(run(*once))
}

func run(once bool) int {
	cfg := config.NewConfig()
	if err := cfg.Load(); err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}

	lg, err := logger.Initialize(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Printf("Failed to initialize logger: %v", err)
		return 1
	}
	defer logger.Sync()

	svc, err := service.NewService(cfg, lg)
	if err != nil {
		lg.Error("Failed to initialize service", zap.Error(err))
		return 1
	}
	defer func() {
		if err := svc.Close(); err != nil {
			lg.Error("Error during service shutdown", zap.Error(err))
		}
	}()

	if once {
		count, err := svc.RunOnce(context.Background())
		if err != nil {
			lg.Error("Scrape cycle failed", zap.Error(err), zap.Int("persisted_count", count))
			return 1
		}
		lg.Info("Scrape cycle finished", zap.Int("persisted_count", count))
		return 0
	}

	if err := svc.Start(); err != nil {
		lg.Error("Service error", zap.Error(err))
		return 1
	}
	return 0
}
