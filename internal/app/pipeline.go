package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samvad-hq/trending-seeder/internal/config"
	"github.com/samvad-hq/trending-seeder/internal/domain"
	"github.com/samvad-hq/trending-seeder/internal/logger"
	"github.com/samvad-hq/trending-seeder/internal/persist"
	"github.com/samvad-hq/trending-seeder/internal/seeder"
	"github.com/samvad-hq/trending-seeder/internal/storage"
	"github.com/samvad-hq/trending-seeder/pkg/datastore"
	"github.com/samvad-hq/trending-seeder/pkg/httpclient"
	"github.com/samvad-hq/trending-seeder/pkg/providers"
	"github.com/samvad-hq/trending-seeder/pkg/publishers"
)

// Pipeline holds every client a single invocation needs. Close releases them.
type Pipeline struct {
	cfg      *config.Config
	service  *seeder.Service
	upserter datastore.Upserter
	store    storage.Store
	ownStore bool
	fanout   *publishers.Fanout
	log      logger.Logger
}

// NewPipeline builds the per-invocation runtime from cfg. cfg must already be validated.
// A non-nil shared store is used as the seen cache and left open by Close; otherwise the
// pipeline opens its own when the cache is enabled.
func NewPipeline(ctx context.Context, cfg *config.Config, log logger.Logger, shared storage.Store) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}

	client := httpclient.NewRestyClient(cfg.HTTPTimeout)

	fetchers, err := providers.DefaultFetcherRegistry(ctx, providers.Options{
		Client:        client,
		APIBase:       cfg.YouTubeAPIBase,
		APIKey:        cfg.YouTubeAPIKey,
		CSVURL:        cfg.CSVURL,
		ClientLookup:  cfg.LookupTransport == config.LookupClient,
		BatchDelay:    cfg.BatchDelay,
		LookupRetries: cfg.LookupRetries,
		Logger:        log,
	})
	if err != nil {
		return nil, &domain.ConfigurationError{Err: fmt.Errorf("build fetchers: %w", err)}
	}

	p := &Pipeline{cfg: cfg, log: log}

	p.upserter, err = datastore.NewUpserter(ctx, datastore.Options{
		Type:        cfg.DatastoreType,
		Table:       cfg.DatastoreTable,
		Policy:      datastore.ConflictPolicy(cfg.ConflictPolicy),
		URL:         cfg.SupabaseURL,
		ServiceKey:  cfg.SupabaseServiceRoleKey,
		DatabaseURL: cfg.DatabaseURL,
		Client:      client,
	})
	if err != nil {
		return nil, &domain.PersistenceError{Err: fmt.Errorf("init datastore: %w", err)}
	}

	var cache seeder.SeenCache
	if cfg.CacheEnabled() {
		p.store = shared
		if p.store == nil {
			p.store = openCache(ctx, cfg, log)
			p.ownStore = p.store != nil
		}
		if p.store != nil {
			cache = p.store
		}
	}

	var events seeder.EventPublisher
	if cfg.PublishersFile != "" {
		p.fanout, err = buildFanout(ctx, cfg.PublishersFile, log)
		if err != nil {
			p.Close()
			return nil, err
		}
		events = p.fanout
	}

	writer := persist.New(p.upserter, cfg.WriteMode, log)
	p.service = seeder.NewService(fetchers, writer, events, cache, log)
	return p, nil
}

// openCache opens the configured seen cache. The cache only saves work, so a store that cannot
// be opened (a bbolt file held by another process, an unreachable redis) is logged and the run
// proceeds without it.
func openCache(ctx context.Context, cfg *config.Config, log logger.Logger) storage.Store {
	store, err := storage.NewStore(ctx, cfg.StorageType, storage.Options{
		Path:            cfg.BBoltPath,
		RedisURL:        cfg.RedisURL,
		TTL:             cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		log.WarnObj("seen cache unavailable, running without it", "storage_error", map[string]any{
			"type":  cfg.StorageType,
			"error": err.Error(),
		})
		return nil
	}
	log.InfoObj("seen cache initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"ttl_seconds":              int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})
	return store
}

func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	publisherReg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, &domain.ConfigurationError{Err: fmt.Errorf("load publishers registry: %w", err)}
	}

	enabled := publisherReg.Enabled()
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{"id": pubCfg.ID, "type": pubCfg.Type})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubClients), nil
}

// Run executes the pipeline once for window.
func (p *Pipeline) Run(ctx context.Context, window domain.Window) (domain.RunOutcome, error) {
	return p.service.Run(ctx, seeder.Request{
		Strategy:   p.cfg.FetchStrategy,
		Window:     window,
		CategoryID: p.cfg.CategoryID,
		RegionCode: p.cfg.RegionCode,
		MaxResults: p.cfg.MaxResults,
		BatchSize:  p.cfg.BatchSize,
	})
}

// Close releases the datastore, cache and publisher clients, logging any errors encountered.
func (p *Pipeline) Close() {
	if p == nil {
		return
	}
	if p.upserter != nil {
		p.upserter.Close()
	}
	if p.store != nil && p.ownStore {
		if err := p.store.Close(); err != nil {
			p.log.ErrorObj("storage close failed", "error", err.Error())
		}
	}
	if p.fanout != nil {
		if err := p.fanout.Close(); err != nil {
			p.log.ErrorObj("publisher close failed", "error", err.Error())
		}
	}
}

// RunOnce validates cfg, builds a fresh pipeline, runs it and releases it. A non-nil override
// replaces the configured window. Configuration problems fail the run before any network call.
func RunOnce(ctx context.Context, cfg *config.Config, log logger.Logger, override *domain.Window) (domain.RunOutcome, error) {
	return runWithStore(ctx, cfg, log, override, nil)
}

func runWithStore(ctx context.Context, cfg *config.Config, log logger.Logger, override *domain.Window, shared storage.Store) (domain.RunOutcome, error) {
	if log == nil {
		log = logger.NopLogger{}
	}
	if err := cfg.Validate(); err != nil {
		return failedOutcome(cfg, override, err), err
	}

	window := resolveWindow(cfg, override, time.Now(), log)

	p, err := NewPipeline(ctx, cfg, log, shared)
	if err != nil {
		log.ErrorObj("failed to initialize pipeline", "error", err.Error())
		return failedOutcome(cfg, &window, err), err
	}
	defer p.Close()

	return p.Run(ctx, window)
}

// resolveWindow applies a caller override. Live-chart strategies only ever see the current
// chart, so a dated override is ignored for them.
func resolveWindow(cfg *config.Config, override *domain.Window, now time.Time, log logger.Logger) domain.Window {
	if override == nil {
		return cfg.Window(now)
	}
	if cfg.FetchStrategy != config.StrategyBulkCSV && !override.Current {
		log.WarnObj("date override ignored for live chart strategy", "window_override", map[string]any{
			"strategy":  cfg.FetchStrategy,
			"requested": override.String(),
		})
		return domain.CurrentWindow()
	}
	return *override
}

func failedOutcome(cfg *config.Config, window *domain.Window, err error) domain.RunOutcome {
	strategy := ""
	w := domain.Window{}
	if cfg != nil {
		strategy = cfg.FetchStrategy
		w = cfg.Window(time.Now())
	}
	if window != nil {
		w = *window
	}
	return seeder.NewReporter(uuid.NewString(), strategy, w).Fail(err)
}
