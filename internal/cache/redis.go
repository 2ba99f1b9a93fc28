// Package cache implements the hot side of interview sessions: a Redis-backed
// transcript cache with an "active chats" sorted set that tracks which
// sessions still need a flush to durable storage.
package cache

import (
	"context"

	redis "github.com/redis/go-redis/v9"

	"github.com/skillgate/go-interview-backend/internal/config"
)

// NewClient builds a go-redis client from configuration and verifies the
// connection with a ping.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}
