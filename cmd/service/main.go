package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reservation-core/config"
	"reservation-core/internal/engine"
	"reservation-core/internal/platform/cartclient"
	"reservation-core/internal/platform/database"
	"reservation-core/internal/platform/events"
	"reservation-core/internal/platform/logger"
	"reservation-core/internal/platform/ratelimit"
	"reservation-core/internal/platform/tracing"
	"reservation-core/internal/repository"
	"reservation-core/internal/sweeper"
	"reservation-core/internal/transport/httpapi"

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

	shutdownTracing, err := tracing.Init("reservation-core", cfg.JaegerEndpoint, log)
	if err != nil {
		log.Fatal("failed to initialize tracing", zap.Error(err))
	}

	db := database.ConnectDB(&cfg.DB, log)
	defer database.CloseDB(db, log)

	repo := repository.New(db)

	cart := cartclient.New(cfg.CartBaseURL)

	lowStock := events.NewLowStockProducer(cfg.KafkaBrokers, cfg.KafkaLowStockTopic)
	defer func() {
		if err := lowStock.Close(); err != nil {
			log.Error("failed to close kafka producer", zap.Error(err))
		}
	}()

	eng := engine.New(repo, cart, lowStock, log)

	limiter, err := ratelimit.NewLimiter(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.RateLimitPerMin, time.Minute, log)
	if err != nil {
		log.Fatal("failed to connect rate limiter", zap.Error(err))
	}
	defer func() {
		if err := limiter.Close(); err != nil {
			log.Error("failed to close rate limiter", zap.Error(err))
		}
	}()

	sweep := sweeper.New(repo, log, cfg.SweepInterval)
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	sweep.Start(sweepCtx)

	router := httpapi.NewRouter(eng, cart, limiter)
	srv := &http.Server{Addr: cfg.Port, Handler: router}

	go func() {
		log.Info("starting reservation core HTTP server", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down reservation core")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	sweep.Stop()
	cancelSweep()

	if err := shutdownTracing(context.Background()); err != nil {
		log.Error("tracing shutdown error", zap.Error(err))
	}

	log.Info("reservation core stopped gracefully")
}
