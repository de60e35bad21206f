package app

import (
	"context"
	"sync"

	"github.com/samvad-hq/trending-seeder/internal/config"
	"github.com/samvad-hq/trending-seeder/internal/domain"
	"github.com/samvad-hq/trending-seeder/internal/logger"
	"github.com/samvad-hq/trending-seeder/internal/storage"
)

// Runner serves repeated invocations in one process. Every invocation loads its own
// configuration and clients; only the seen cache is opened once and shared, so overlapping
// runs never contend for the cache file and its cleanup cadence keeps running.
type Runner struct {
	log  logger.Logger
	load func() (*config.Config, error)

	mu    sync.Mutex
	store storage.Store
}

// NewRunner returns a Runner loading configuration from the environment.
func NewRunner(log logger.Logger) *Runner {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Runner{log: log, load: config.Load}
}

// Invoke loads configuration afresh and performs one run.
func (r *Runner) Invoke(ctx context.Context, override *domain.Window) (domain.RunOutcome, error) {
	cfg, err := r.load()
	if err != nil {
		return failedOutcome(nil, override, err), err
	}
	return runWithStore(ctx, cfg, r.log, override, r.sharedStore(ctx, cfg))
}

// sharedStore opens the seen cache on first use. The storage settings of that first
// configuration stay in effect until Close. An open failure is retried on the next invocation.
func (r *Runner) sharedStore(ctx context.Context, cfg *config.Config) storage.Store {
	if cfg == nil || !cfg.CacheEnabled() || cfg.Validate() != nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store == nil {
		r.store = openCache(ctx, cfg, r.log)
	}
	return r.store
}

// Close releases the shared cache.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store == nil {
		return nil
	}
	err := r.store.Close()
	r.store = nil
	return err
}
