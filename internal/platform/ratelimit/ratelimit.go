// Package ratelimit implements the fixed-window per-caller limiter
// that guards the checkout endpoints.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Limiter struct {
	client *redis.Client
	log    *zap.Logger
	limit  int64
	window time.Duration
}

func NewLimiter(addr, password string, db int, limit int64, window time.Duration, log *zap.Logger) (*Limiter, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Info("rate limiter connected to redis", zap.String("addr", addr))

	return &Limiter{client: rdb, log: log, limit: limit, window: window}, nil
}

func (l *Limiter) Close() error {
	return l.client.Close()
}

// Allow increments the fixed-window counter for callerID and reports
// whether the caller is still within limit. The window's TTL is set
// only on the counter's first increment of the window.
func (l *Limiter) Allow(ctx context.Context, callerID string) (bool, error) {
	key := fmt.Sprintf("ratelimit:checkout:%s", callerID)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			l.log.Warn("failed to set rate limit window expiry", zap.Error(err), zap.String("key", key))
		}
	}
	return count <= l.limit, nil
}
