package seeder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samvad-hq/trending-seeder/internal/domain"
	"github.com/samvad-hq/trending-seeder/internal/normalize"
	"github.com/samvad-hq/trending-seeder/internal/persist"
	"github.com/samvad-hq/trending-seeder/pkg/providers"
	"github.com/samvad-hq/trending-seeder/pkg/publishers"
)

type fakeFetcher struct {
	id      string
	batches [][]domain.RawTrendingEntry
	stats   providers.Stats
	err     error
}

func (f *fakeFetcher) ID() string { return f.id }

func (f *fakeFetcher) Fetch(ctx context.Context, _ providers.Request, handle providers.BatchHandler) (providers.Stats, error) {
	if f.err != nil {
		return providers.Stats{}, f.err
	}
	for _, b := range f.batches {
		if err := handle(ctx, b); err != nil {
			return f.stats, err
		}
	}
	return f.stats, nil
}

// memStore behaves like a table with a unique external_id and insert-if-absent semantics.
type memStore struct {
	mu    sync.Mutex
	rows  map[string]domain.VideoRecord
	calls int
	fail  bool
}

func newMemStore() *memStore { return &memStore{rows: map[string]domain.VideoRecord{}} }

func (m *memStore) Upsert(_ context.Context, records []domain.VideoRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.fail {
		return errors.New("datastore unavailable")
	}
	for _, r := range records {
		if _, ok := m.rows[r.ExternalID]; !ok {
			m.rows[r.ExternalID] = r
		}
	}
	return nil
}

func (m *memStore) Close() {}

type recordingPublisher struct{ events []publishers.Event }

func (r *recordingPublisher) Publish(_ context.Context, evt publishers.Event) (int, error) {
	r.events = append(r.events, evt)
	return 1, nil
}

type memCache struct{ marked map[string]bool }

func (c *memCache) SeenVideo(_ context.Context, id string) (bool, error) { return c.marked[id], nil }
func (c *memCache) MarkVideo(_ context.Context, id string) error {
	c.marked[id] = true
	return nil
}

func entries(ids ...string) []domain.RawTrendingEntry {
	out := make([]domain.RawTrendingEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.RawTrendingEntry{ExternalID: id, Title: "t-" + id, Duration: "PT1M", ViewCount: "10"})
	}
	return out
}

func newTestService(f providers.Fetcher, store *memStore, mode string) *Service {
	svc := NewService(providers.NewFetcherRegistry(f), persist.New(store, mode, nil), nil, nil, nil)
	svc.newRunID = func() string { return "run-1" }
	return svc.WithNormalizer(normalize.NewWithClock(func() time.Time {
		return time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	}))
}

func request() Request {
	return Request{Strategy: "fake", Window: domain.Window{Date: "2024-01-02"}, BatchSize: 50}
}

func TestRunIsIdempotent(t *testing.T) {
	store := newMemStore()
	f := &fakeFetcher{
		id:      "fake",
		batches: [][]domain.RawTrendingEntry{entries("a", "b"), entries("c")},
		stats:   providers.Stats{Candidates: 3, Batches: 2},
	}
	svc := newTestService(f, store, persist.ModePerItem)

	first, err := svc.Run(context.Background(), request())
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), request())
	require.NoError(t, err)

	assert.Len(t, store.rows, 3)
	assert.Equal(t, first.Inserted, second.Inserted)
	assert.Equal(t, domain.StatusOK, second.Status)
	assert.Equal(t, "run-1", second.RunID)
	assert.Equal(t, "2024-01-02", second.Date)
	assert.Equal(t, int64(60), *store.rows["a"].DurationSeconds)
	assert.Equal(t, "2024-01-03T00:00:00Z", store.rows["a"].IngestedAt)
}

func TestRunEmptyInputShortCircuits(t *testing.T) {
	store := newMemStore()
	svc := newTestService(&fakeFetcher{id: "fake"}, store, persist.ModePerItem)

	out, err := svc.Run(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusEmpty, out.Status)
	assert.Zero(t, out.Inserted)
	assert.Zero(t, out.Skipped)
	assert.Contains(t, out.Message, "2024-01-02")
	assert.Zero(t, store.calls, "no datastore write on empty input")
}

func TestRunPartialBatchFailureExcludesDroppedItems(t *testing.T) {
	store := newMemStore()
	f := &fakeFetcher{
		id:      "fake",
		batches: [][]domain.RawTrendingEntry{entries("a", "b"), entries("e")},
		stats:   providers.Stats{Candidates: 5, Batches: 3, FailedBatches: 1, Dropped: 2},
	}
	out, err := newTestService(f, store, persist.ModePerItem).Run(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusOK, out.Status)
	assert.Equal(t, 3, out.Processed)
	assert.Equal(t, 3, out.Inserted)
	assert.Equal(t, 1, out.FailedBatches)
	assert.Equal(t, 2, out.Dropped)
	assert.NotEmpty(t, out.Message)
}

func TestRunMalformedItemSkippedOnce(t *testing.T) {
	store := newMemStore()
	batch := entries("a", "b")
	batch = append(batch, domain.RawTrendingEntry{Title: "no id"})
	f := &fakeFetcher{id: "fake", batches: [][]domain.RawTrendingEntry{batch}, stats: providers.Stats{Candidates: 3, Batches: 1}}

	out, err := newTestService(f, store, persist.ModePerItem).Run(context.Background(), request())
	require.NoError(t, err)

	assert.Equal(t, 2, out.Inserted)
	assert.Equal(t, 1, out.Skipped)
	assert.Equal(t, 3, out.Processed)
}

func TestRunPerItemWriteFailuresAreSkipped(t *testing.T) {
	store := newMemStore()
	store.fail = true
	f := &fakeFetcher{id: "fake", batches: [][]domain.RawTrendingEntry{entries("a", "b")}, stats: providers.Stats{Candidates: 2, Batches: 1}}

	out, err := newTestService(f, store, persist.ModePerItem).Run(context.Background(), request())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOK, out.Status)
	assert.Zero(t, out.Inserted)
	assert.Equal(t, 2, out.Skipped)
}

func TestRunBulkPersistenceFailureKeepsEarlierCounts(t *testing.T) {
	store := newMemStore()
	f := &fakeFetcher{
		id:      "fake",
		batches: [][]domain.RawTrendingEntry{entries("a", "b"), entries("c")},
		stats:   providers.Stats{Candidates: 3, Batches: 2},
	}
	svc := newTestService(f, store, persist.ModeBulk)

	// Fail only the second batch.
	failing := &failAfter{inner: store, ok: 1}
	svc.writer = persist.New(failing, persist.ModeBulk, nil)

	out, err := svc.Run(context.Background(), request())
	require.Error(t, err)
	assert.True(t, domain.IsPersistenceError(err))

	assert.Equal(t, domain.StatusFailed, out.Status)
	assert.NotEmpty(t, out.Error)
	assert.Equal(t, 2, out.Inserted)
	assert.Equal(t, 3, out.Processed)
	assert.Len(t, store.rows, 2, "earlier batch stays committed")
}

type failAfter struct {
	inner *memStore
	ok    int
	n     int
}

func (f *failAfter) Upsert(ctx context.Context, records []domain.VideoRecord) error {
	f.n++
	if f.n > f.ok {
		return errors.New("deadlock detected")
	}
	return f.inner.Upsert(ctx, records)
}

func (f *failAfter) Close() {}

func TestRunTopLevelFetchFailureReportsZeroCounts(t *testing.T) {
	fetchErr := &domain.FetchError{Source: "bulk_csv", StatusCode: 503, Err: errors.New("down")}
	f := &fakeFetcher{id: "fake", err: fetchErr}

	out, err := newTestService(f, newMemStore(), persist.ModePerItem).Run(context.Background(), request())
	require.ErrorIs(t, err, fetchErr)
	assert.Equal(t, domain.StatusFailed, out.Status)
	assert.Zero(t, out.Candidates)
	assert.Zero(t, out.Inserted)
	assert.Contains(t, out.Error, "503")
}

func TestRunUnknownStrategyIsConfigurationError(t *testing.T) {
	req := request()
	req.Strategy = "rss"

	out, err := newTestService(&fakeFetcher{id: "fake"}, newMemStore(), persist.ModePerItem).Run(context.Background(), req)
	assert.True(t, domain.IsConfigurationError(err))
	assert.Equal(t, domain.StatusFailed, out.Status)
}

func TestRunPublishesAndMarksWrittenRecords(t *testing.T) {
	store := newMemStore()
	pub := &recordingPublisher{}
	cache := &memCache{marked: map[string]bool{}}
	f := &fakeFetcher{id: "fake", batches: [][]domain.RawTrendingEntry{entries("a", "b")}, stats: providers.Stats{Candidates: 2, Batches: 1}}

	svc := NewService(providers.NewFetcherRegistry(f), persist.New(store, persist.ModePerItem, nil), pub, cache, nil)
	out, err := svc.Run(context.Background(), request())
	require.NoError(t, err)

	require.Len(t, pub.events, 2)
	assert.Equal(t, publishers.EventVideoIngested, pub.events[0].Type)
	assert.Equal(t, out.RunID, pub.events[0].RunID)
	assert.Equal(t, "fake", pub.events[0].Strategy)
	assert.True(t, cache.marked["a"])
	assert.True(t, cache.marked["b"])
}
