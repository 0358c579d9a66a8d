package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions are the connection settings for OpenRedis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// OpenRedis creates a client and verifies the connection.
func OpenRedis(ctx context.Context, opts RedisOptions, log *zap.Logger) (*redis.Client, error) {
	log.Info("🔌 Connecting to Redis...")

	addr := opts.Addr
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("✅ Redis connected successfully", zap.String("addr", addr))
	return client, nil
}
