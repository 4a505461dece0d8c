package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Config carries connection settings for the shared cache. One client backs
// the HTTP idempotency middleware, the transaction read cache and the
// availability cache, so the pool must be sized for mixed traffic.
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int // 0 lets go-redis pick its per-CPU default
}

func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Addr, err)
	}

	return client, nil
}
