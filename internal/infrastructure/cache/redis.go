package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Auriora/admin-assistant-sub001/internal/domain/errors"
	"github.com/Auriora/admin-assistant-sub001/internal/infrastructure/config"
)

// NewClient connects to Redis and verifies the connection with a ping.
// Redis is optional infrastructure here: it backs the calendar directory
// cache and the cross-process run lock, both of which degrade gracefully.
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	if cfg == nil {
		return nil, errors.NewInternalError("redis config is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.NewExternalError("redis", "connection failed").WithCause(err)
	}

	logger.Info("redis connected",
		zap.String("addr", cfg.URL),
		zap.Int("db", cfg.DB))
	return client, nil
}
