package database

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"transaction-service/logger"
)

// NewRedisClient initializes the product name cache client. An unreachable
// cache is not fatal, lookups fall through to the product service.
func NewRedisClient(redisURL string) *redis.Client {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Log.Error("Invalid Redis URL", zap.Error(err))
		return nil
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Log.Warn("Redis unreachable, continuing without cache", zap.Error(err))
	} else {
		logger.Log.Info("Connected to Redis")
	}
	return client
}
