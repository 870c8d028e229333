package main

import (
	"context"
	"os"

	"reservation-core/config"
	"reservation-core/internal/migrate"
	"reservation-core/internal/platform/database"
	"reservation-core/internal/platform/logger"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
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

	db := database.ConnectDBForMigration(&cfg.DB, log)
	defer database.CloseDB(db, log)

	ctx := context.Background()

	if err := migrate.Run(ctx, db, log, migrate.DefaultOptions()); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	log.Info("migration completed successfully")
}
