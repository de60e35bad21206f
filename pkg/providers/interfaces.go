package providers

import (
	"context"

	"github.com/samvad-hq/trending-seeder/internal/domain"
	"github.com/samvad-hq/trending-seeder/pkg/httpclient"
)

// Fetcher acquires trending entries for one strategy and hands them over batch by batch.
// Concrete implementations live in strategy-specific files (e.g., bulk_csv.go).
type Fetcher interface {
	ID() string
	Fetch(ctx context.Context, req Request, handle BatchHandler) (Stats, error)
}

// FetcherRegistry resolves the fetcher implementation for a configured strategy.
type FetcherRegistry interface {
	FetcherFor(strategy string) (Fetcher, error)
}

// BatchHandler consumes one batch of entries. A returned error aborts the fetch.
type BatchHandler func(ctx context.Context, entries []domain.RawTrendingEntry) error

// SeenFunc reports whether an external ID was already ingested by an earlier run.
type SeenFunc func(ctx context.Context, externalID string) (bool, error)

// Request describes what a single run wants from a fetcher.
type Request struct {
	Window     domain.Window
	CategoryID string
	RegionCode string
	MaxResults int
	BatchSize  int
	Seen       SeenFunc
}

// Stats summarises the acquisition side of a run.
type Stats struct {
	Candidates    int
	Cached        int
	Batches       int
	FailedBatches int
	Dropped       int
}

// Lookup resolves full metadata for a batch of external IDs.
type Lookup interface {
	Lookup(ctx context.Context, ids []string) ([]domain.RawTrendingEntry, error)
}

// HTTPClient aliases the shared httpclient.Client interface for clarity within providers.
type HTTPClient = httpclient.Client
