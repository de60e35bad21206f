package seeder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/samvad-hq/trending-seeder/internal/domain"
	"github.com/samvad-hq/trending-seeder/internal/logger"
	"github.com/samvad-hq/trending-seeder/internal/normalize"
	"github.com/samvad-hq/trending-seeder/pkg/providers"
	"github.com/samvad-hq/trending-seeder/pkg/publishers"
)

// Request selects what one run ingests.
type Request struct {
	Strategy   string
	Window     domain.Window
	CategoryID string
	RegionCode string
	MaxResults int
	BatchSize  int
}

// Service runs the fetch, normalize and persist pipeline for one invocation.
type Service struct {
	registry   providers.FetcherRegistry
	normalizer *normalize.Normalizer
	writer     RecordWriter
	publisher  EventPublisher
	cache      SeenCache
	log        logger.Logger
	newRunID   func() string
}

// NewService wires the pipeline. publisher and cache may be nil.
func NewService(reg providers.FetcherRegistry, writer RecordWriter, publisher EventPublisher, cache SeenCache, log logger.Logger) *Service {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Service{
		registry:   reg,
		normalizer: normalize.New(),
		writer:     writer,
		publisher:  publisher,
		cache:      cache,
		log:        log,
		newRunID:   uuid.NewString,
	}
}

// WithNormalizer swaps the normalizer, mainly to pin the clock.
func (s *Service) WithNormalizer(n *normalize.Normalizer) *Service {
	if n != nil {
		s.normalizer = n
	}
	return s
}

// Run executes one invocation. The outcome is always populated; the error is non-nil
// exactly when the outcome status is failed.
func (s *Service) Run(ctx context.Context, req Request) (domain.RunOutcome, error) {
	if s == nil || s.registry == nil || s.writer == nil {
		err := fmt.Errorf("seeder service is not initialized")
		return NewReporter("", req.Strategy, req.Window).Fail(err), err
	}

	runID := s.newRunID()
	rep := NewReporter(runID, req.Strategy, req.Window)

	fetcher, err := s.registry.FetcherFor(req.Strategy)
	if err != nil {
		err = &domain.ConfigurationError{Err: err}
		return rep.Fail(err), err
	}

	start := time.Now()
	s.log.InfoObj("seed run started", "run_meta", map[string]any{
		"run_id":   runID,
		"strategy": req.Strategy,
		"window":   req.Window.String(),
	})

	stats, err := fetcher.Fetch(ctx, s.fetchRequest(req), func(ctx context.Context, entries []domain.RawTrendingEntry) error {
		return s.handleBatch(ctx, rep, runID, req.Strategy, entries)
	})
	rep.ApplyStats(stats)
	if err != nil {
		s.log.ErrorObj("seed run failed", "run_error", map[string]any{
			"run_id":   runID,
			"strategy": req.Strategy,
			"error":    err.Error(),
		})
		return rep.Fail(err), err
	}

	if stats.Candidates == 0 {
		msg := fmt.Sprintf("no trending videos found for %s", req.Window)
		s.log.InfoObj("seed run short-circuited", "run_meta", map[string]any{
			"run_id":  runID,
			"message": msg,
		})
		return rep.ShortCircuit(msg), nil
	}

	out := rep.Complete()
	s.log.InfoObj("seed run completed", "run_result", map[string]any{
		"run_id":         runID,
		"strategy":       req.Strategy,
		"candidates":     out.Candidates,
		"inserted":       out.Inserted,
		"skipped":        out.Skipped,
		"cached":         out.Cached,
		"failed_batches": out.FailedBatches,
		"elapsed_ms":     time.Since(start).Milliseconds(),
	})
	return out, nil
}

func (s *Service) fetchRequest(req Request) providers.Request {
	fr := providers.Request{
		Window:     req.Window,
		CategoryID: req.CategoryID,
		RegionCode: req.RegionCode,
		MaxResults: req.MaxResults,
		BatchSize:  req.BatchSize,
	}
	if s.cache != nil {
		fr.Seen = s.cache.SeenVideo
	}
	return fr
}

func (s *Service) handleBatch(ctx context.Context, rep *Reporter, runID, strategy string, entries []domain.RawTrendingEntry) error {
	rep.BatchStarted()
	rep.AddProcessed(len(entries))

	records, errs := s.normalizer.NormalizeAll(entries)
	for _, err := range errs {
		s.log.WarnObj("skipping malformed item", "normalize_error", map[string]any{
			"run_id": runID,
			"error":  err.Error(),
		})
	}
	rep.AddSkipped(len(errs))

	res, err := s.writer.Write(ctx, records)
	if err != nil {
		return err
	}
	rep.AddInserted(len(res.Written))
	rep.AddSkipped(res.Failed)

	s.afterWrite(ctx, runID, strategy, res.Written)
	return nil
}

// afterWrite marks written IDs in the cache and emits ingest events. Neither step can fail the run.
func (s *Service) afterWrite(ctx context.Context, runID, strategy string, written []domain.VideoRecord) {
	for _, rec := range written {
		if s.cache != nil {
			if err := s.cache.MarkVideo(ctx, rec.ExternalID); err != nil {
				s.log.WarnObj("seen cache mark failed", "cache_error", map[string]any{
					"external_id": rec.ExternalID,
					"error":       err.Error(),
				})
			}
		}
		if s.publisher != nil {
			if _, err := s.publisher.Publish(ctx, publishers.NewEvent(runID, strategy, rec)); err != nil {
				s.log.WarnObj("event publish failed", "publish_error", map[string]any{
					"external_id": rec.ExternalID,
					"error":       err.Error(),
				})
			}
		}
	}
}
