package storage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Package storage provides the seen-video cache shared across runs.

// Store tracks external IDs that earlier runs already wrote.
type Store interface {
	Close() error
	SeenVideo(ctx context.Context, id string) (bool, error)
	MarkVideo(ctx context.Context, id string) error
}

// Options controls backend selection and retention for concrete store implementations.
type Options struct {
	Path            string
	RedisURL        string
	TTL             time.Duration
	CleanupInterval time.Duration
}

const (
	defaultTTL             = 7 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(ctx context.Context, typ string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(opts.Path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(opts.Path, opts)
	case "redis":
		if strings.TrimSpace(opts.RedisURL) == "" {
			return nil, fmt.Errorf("redis storage requires a url")
		}
		return openRedis(ctx, opts.RedisURL, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.TTL <= 0 {
		opts.TTL = defaultTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                                    { return nil }
func (noopStore) SeenVideo(context.Context, string) (bool, error) { return false, nil }
func (noopStore) MarkVideo(context.Context, string) error         { return nil }
