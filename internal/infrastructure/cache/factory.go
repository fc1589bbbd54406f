package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/budget/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewIdempotencyStore returns a Redis-backed store when client is non-nil,
// otherwise an in-memory store.
func NewIdempotencyStore(client *redis.Client, logger *zap.Logger) IdempotencyStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client != nil {
		logger.Info("using Redis idempotency store")
		return NewRedisIdempotencyStore(client, "")
	}
	logger.Warn("Redis disabled, using in-memory idempotency store. " +
		"Retries routed to other instances will not be deduplicated.")
	return NewInMemoryIdempotencyStore()
}
