package database

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/discograph/pkg/config"
)

// redisTimeout bounds each dial, read and write, and the startup ping.
const redisTimeout = 2 * time.Second

// NewRedisClient creates the Redis client behind the result cache.
// Returns nil if Redis is not configured (host is empty).
//
// An unreachable server does not fail startup. The client is returned anyway
// and dials again on every command, so cache calls fail open until Redis is
// back.
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig, logger *zap.Logger) *redis.Client {
	if cfg.Host == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  redisTimeout,
		ReadTimeout:  redisTimeout,
		WriteTimeout: redisTimeout,
		MaxRetries:   1,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unreachable, result cache will miss until it recovers",
			zap.String("addr", cfg.Addr()),
			zap.Error(err))
	}

	return client
}
