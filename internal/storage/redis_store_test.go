package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	keys   map[string]time.Duration
	err    error
	closed bool
}

func (f *fakeRedis) Exists(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.keys[k]; ok {
			n++
		}
	}
	return redis.NewIntResult(n, f.err)
}

func (f *fakeRedis) Set(_ context.Context, key string, _ interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.err == nil {
		f.keys[key] = expiration
	}
	return redis.NewStatusResult("OK", f.err)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisStoreMarksWithTTL(t *testing.T) {
	ctx := context.Background()
	fake := &fakeRedis{keys: map[string]time.Duration{}}
	store := &redisStore{client: fake, ttl: time.Hour}

	if seen, err := store.SeenVideo(ctx, "vid1"); err != nil || seen {
		t.Fatalf("expected unseen, seen=%v err=%v", seen, err)
	}
	if err := store.MarkVideo(ctx, "vid1"); err != nil {
		t.Fatalf("MarkVideo: %v", err)
	}
	if ttl := fake.keys[redisKeyPrefix+"vid1"]; ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", ttl)
	}
	if seen, err := store.SeenVideo(ctx, "vid1"); err != nil || !seen {
		t.Fatalf("expected seen, seen=%v err=%v", seen, err)
	}

	if err := store.Close(); err != nil || !fake.closed {
		t.Fatalf("expected client to be closed")
	}
}

func TestRedisStoreSurfacesErrors(t *testing.T) {
	store := &redisStore{client: &fakeRedis{keys: map[string]time.Duration{}, err: errors.New("conn refused")}, ttl: time.Hour}

	if _, err := store.SeenVideo(context.Background(), "vid1"); err == nil {
		t.Fatalf("expected exists error")
	}
	if err := store.MarkVideo(context.Background(), "vid1"); err == nil {
		t.Fatalf("expected set error")
	}
}
