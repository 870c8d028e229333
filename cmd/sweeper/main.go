package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"reservation-core/config"
	"reservation-core/internal/platform/database"
	"reservation-core/internal/platform/logger"
	"reservation-core/internal/repository"
	"reservation-core/internal/sweeper"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	isDev := os.Getenv("ENV") == "development"
	if err := logger.Init(isDev); err != nil {
		panic(err)
	}
	defer logger.Sync()

	log := logger.L()

	cfg := config.Load(log)

	db := database.ConnectDB(&cfg.DB, log)
	defer database.CloseDB(db, log)

	repo := repository.New(db)
	sweep := sweeper.New(repo, log, cfg.SweepInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sweep.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down expiry sweeper")

	sweep.Stop()
	log.Info("expiry sweeper stopped gracefully")
}
