package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"reservation-core/internal/platform/database"

	"go.uber.org/zap"
)

type Config struct {
	Port string
	DB   database.Config

	SweepInterval time.Duration

	Redis Redis

	KafkaBrokers       []string
	KafkaLowStockTopic string

	JaegerEndpoint string
	CartBaseURL    string
}

type Redis struct {
	Addr            string
	Password        string
	DB              int
	RateLimitPerMin int64
}

func Load(log *zap.Logger) *Config {
	return &Config{
		Port: getEnv("APP_PORT", log),
		DB: database.Config{
			Host:     getEnv("DB_HOST", log),
			Port:     getEnv("DB_PORT", log),
			User:     getEnv("DB_USER", log),
			Password: getEnv("DB_PASSWORD", log),
			Name:     getEnv("DB_NAME", log),
			SSLMode:  getEnv("DB_SSLMODE", log),
		},
		SweepInterval: parseDurationDefault(os.Getenv("SWEEP_INTERVAL"), 60*time.Second),
		Redis: Redis{
			Addr:            getEnv("REDIS_ADDR", log),
			Password:        os.Getenv("REDIS_PASSWORD"),
			DB:              atoiDefault(os.Getenv("REDIS_DB"), 0),
			RateLimitPerMin: int64(atoiDefault(os.Getenv("RATE_LIMIT_PER_MIN"), 20)),
		},
		KafkaBrokers:       splitAndTrim(os.Getenv("KAFKA_BROKERS")),
		KafkaLowStockTopic: getEnv("KAFKA_TOPIC_LOW_STOCK", log),
		JaegerEndpoint:     getEnv("JAEGER_ENDPOINT", log),
		CartBaseURL:        getEnv("CART_SERVICE_BASE_URL", log),
	}
}

func getEnv(key string, log *zap.Logger) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	log.Error("required environment variable not set", zap.String("key", key))
	panic("missing required environment variable: " + key)
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func parseDurationDefault(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := []string{}
	for _, p := range strings.Split(s, ",") {
		pt := strings.TrimSpace(p)
		if pt != "" {
			parts = append(parts, pt)
		}
	}
	return parts
}
