package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "trending-seeder:seen:"

// redisClient is the part of *redis.Client the store uses.
type redisClient interface {
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// redisStore implements a Store on Redis keys with a native TTL.
type redisStore struct {
	client redisClient
	ttl    time.Duration
}

func openRedis(ctx context.Context, rawURL string, opts Options) (Store, error) {
	ropts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(ropts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &redisStore{client: client, ttl: opts.TTL}, nil
}

func (r *redisStore) Close() error {
	return r.client.Close()
}

func (r *redisStore) SeenVideo(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Exists(ctx, redisKeyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists failed: %w", err)
	}
	return n > 0, nil
}

func (r *redisStore) MarkVideo(ctx context.Context, id string) error {
	if err := r.client.Set(ctx, redisKeyPrefix+id, 1, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}
