// Package persist applies the configured write granularity on top of a datastore upserter.
package persist

import (
	"context"
	"errors"

	"github.com/samvad-hq/trending-seeder/internal/domain"
	"github.com/samvad-hq/trending-seeder/internal/logger"
	"github.com/samvad-hq/trending-seeder/pkg/datastore"
)

// Write granularities.
const (
	ModePerItem = "per_item"
	ModeBulk    = "bulk"
)

// WriteResult reports what one Write call achieved.
type WriteResult struct {
	Written []domain.VideoRecord
	Failed  int
}

// Persister writes normalized records either one at a time or per batch.
type Persister struct {
	upserter datastore.Upserter
	mode     string
	log      logger.Logger
}

// New builds a Persister. An unknown mode falls back to per-item writes.
func New(upserter datastore.Upserter, mode string, log logger.Logger) *Persister {
	if mode != ModeBulk {
		mode = ModePerItem
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Persister{upserter: upserter, mode: mode, log: log}
}

// Mode returns the effective write granularity.
func (p *Persister) Mode() string {
	return p.mode
}

// Write persists records. In per-item mode failures are logged and counted, never returned.
// In bulk mode the whole batch either lands or a PersistenceError is returned.
func (p *Persister) Write(ctx context.Context, records []domain.VideoRecord) (WriteResult, error) {
	if len(records) == 0 {
		return WriteResult{}, nil
	}
	if p.upserter == nil {
		return WriteResult{}, &domain.PersistenceError{Records: len(records), Err: errors.New("no datastore configured")}
	}

	if p.mode == ModeBulk {
		if err := p.upserter.Upsert(ctx, records); err != nil {
			return WriteResult{}, &domain.PersistenceError{Records: len(records), Err: err}
		}
		return WriteResult{Written: records}, nil
	}

	res := WriteResult{Written: make([]domain.VideoRecord, 0, len(records))}
	for _, rec := range records {
		if err := p.upserter.Upsert(ctx, []domain.VideoRecord{rec}); err != nil {
			res.Failed++
			p.log.WarnObj("record upsert failed, skipping", "record", map[string]any{
				"external_id": rec.ExternalID,
				"error":       err.Error(),
			})
			continue
		}
		res.Written = append(res.Written, rec)
	}
	return res, nil
}
