package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/tickerwall/internal/config"
)

var errNilClient = errors.New("redis client is nil")

// RedisClient owns the shared Redis connection used by the series store.
type RedisClient struct {
	Client *redis.Client
	logger *logrus.Logger
}

// NewRedisConnection dials Redis, installs the tracing hook and verifies the
// connection with a ping.
func NewRedisConnection(cfg config.RedisConfig, logger *logrus.Logger) (*RedisClient, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	rdb.AddHook(NewTracingHook(logger))

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"addr": rdb.Options().Addr,
		"db":   cfg.DB,
	}).Info("Successfully connected to Redis")

	return &RedisClient{Client: rdb, logger: logger}, nil
}

// Close closes the connection. It is safe on a nil client.
func (r *RedisClient) Close() {
	if r == nil || r.Client == nil {
		return
	}
	if err := r.Client.Close(); err != nil {
		r.log().WithError(err).Warn("Error closing Redis connection")
		return
	}
	r.log().Info("Redis connection closed")
}

// HealthCheck pings Redis.
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errNilClient
	}
	return r.Client.Ping(ctx).Err()
}

func (r *RedisClient) log() *logrus.Logger {
	if r.logger == nil {
		return logrus.StandardLogger()
	}
	return r.logger
}
