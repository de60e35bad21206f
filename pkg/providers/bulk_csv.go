package providers

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"

	"github.com/samvad-hq/trending-seeder/internal/batch"
	"github.com/samvad-hq/trending-seeder/internal/domain"
	"github.com/samvad-hq/trending-seeder/pkg/httpclient"
)

const (
	bulkCSVID          = "bulk_csv"
	defaultBatchSize   = 50
	defaultRetryBase   = 500 * time.Millisecond
	dateColumnWidth    = len("2006-01-02")
	columnVideoID      = "video_id"
	columnTrendingDate = "trending_date"
	columnCategoryID   = "categoryid"
	columnChannelID    = "channelid"
	columnPublishedAt  = "publishedat"
	columnTitle        = "title"
	columnViewCount    = "view_count"
)

// BulkCSVConfig tunes the bulk export strategy.
type BulkCSVConfig struct {
	CSVURL     string
	BatchDelay time.Duration
	Retries    int
	RetryBase  time.Duration
}

// bulkCSVFetcher downloads the trending export, picks the IDs for the window and looks them
// up in bounded batches.
type bulkCSVFetcher struct {
	client HTTPClient
	lookup Lookup
	cfg    BulkCSVConfig
	log    Logger
}

// NewBulkCSVFetcher builds the bulk export strategy.
func NewBulkCSVFetcher(client HTTPClient, lookup Lookup, cfg BulkCSVConfig, log Logger) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}
	return &bulkCSVFetcher{client: client, lookup: lookup, cfg: cfg, log: ensureLogger(log)}
}

func (f *bulkCSVFetcher) ID() string {
	return bulkCSVID
}

func (f *bulkCSVFetcher) Fetch(ctx context.Context, req Request, handle BatchHandler) (Stats, error) {
	var stats Stats
	if handle == nil {
		return stats, errors.New("batch handler is nil")
	}
	if f.lookup == nil {
		return stats, errors.New("bulk_csv fetcher has no lookup backend")
	}
	if strings.TrimSpace(f.cfg.CSVURL) == "" {
		return stats, &domain.FetchError{Source: bulkCSVID, Err: errors.New("csv url is empty")}
	}

	rows, err := f.download(ctx)
	if err != nil {
		return stats, err
	}

	unique := batch.Dedupe(selectIDs(rows, req))
	stats.Candidates = len(unique)
	if len(unique) == 0 {
		return stats, nil
	}

	pending, cached := filterSeen(ctx, req.Seen, unique, f.log)
	stats.Cached = cached

	size := req.BatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	limiter := rate.NewLimiter(rate.Every(f.cfg.BatchDelay), 1)

	for i, ids := range batch.Split(pending, size) {
		if err := limiter.Wait(ctx); err != nil {
			return stats, err
		}
		stats.Batches++

		entries, err := f.lookupBatch(ctx, ids)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return stats, ctxErr
			}
			stats.FailedBatches++
			stats.Dropped += len(ids)
			f.log.WarnObj("lookup batch failed, skipping", "batch", map[string]any{
				"index": i,
				"size":  len(ids),
				"error": err.Error(),
			})
			continue
		}

		if err := handle(ctx, entries); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (f *bulkCSVFetcher) download(ctx context.Context) ([]domain.RawTrendingEntry, error) {
	resp, err := f.client.Get(ctx, f.cfg.CSVURL, map[string]string{"Accept": "text/csv"})
	if err != nil {
		return nil, &domain.FetchError{Source: bulkCSVID, Err: fmt.Errorf("download export: %w", err)}
	}
	body := resp.Body()
	if !httpclient.IsSuccess(resp) {
		return nil, &domain.FetchError{
			Source:     bulkCSVID,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("export returned body: %s", responseSnippet(body)),
		}
	}

	rows, err := parseTrendingCSV(body)
	if err != nil {
		return nil, &domain.FetchError{Source: bulkCSVID, StatusCode: resp.StatusCode(), Err: err}
	}
	f.log.DebugObj("trending export parsed", "export", map[string]any{"rows": len(rows)})
	return rows, nil
}

// lookupBatch calls the lookup backend, retrying throttled and server-side failures with
// exponential backoff when retries are configured.
func (f *bulkCSVFetcher) lookupBatch(ctx context.Context, ids []string) ([]domain.RawTrendingEntry, error) {
	if f.cfg.Retries <= 0 {
		return f.lookup.Lookup(ctx, ids)
	}

	var out []domain.RawTrendingEntry
	backoff := retry.WithMaxRetries(uint64(f.cfg.Retries), retry.NewExponential(f.cfg.RetryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		entries, err := f.lookup.Lookup(ctx, ids)
		if err != nil {
			if retryableLookupError(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		out = entries
		return nil
	})
	return out, err
}

func retryableLookupError(err error) bool {
	var fe *domain.FetchError
	if !errors.As(err, &fe) {
		return false
	}
	return fe.StatusCode == 0 || fe.StatusCode == 429 || fe.StatusCode >= 500
}

// selectIDs keeps the rows inside the window and category. A "current" window resolves to
// the most recent trending date present in the export.
func selectIDs(rows []domain.RawTrendingEntry, req Request) []string {
	window := req.Window
	if window.Current {
		latest := ""
		for _, row := range rows {
			if d := datePart(row.TrendingDate); d > latest {
				latest = d
			}
		}
		window = domain.Window{Date: latest}
	}

	ids := make([]string, 0)
	for _, row := range rows {
		if !window.Matches(row.TrendingDate) {
			continue
		}
		if req.CategoryID != "" && strings.TrimSpace(row.CategoryID) != req.CategoryID {
			continue
		}
		ids = append(ids, row.ExternalID)
	}
	return ids
}

func datePart(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) < dateColumnWidth {
		return ""
	}
	return raw[:dateColumnWidth]
}

// parseTrendingCSV reads the export using its header row to locate columns.
func parseTrendingCSV(data []byte) ([]domain.RawTrendingEntry, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.LazyQuotes = true
	r.ReuseRecord = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, errors.New("export is empty (no header row)")
	}
	if err != nil {
		return nil, fmt.Errorf("read export header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		idx[name] = i
	}
	for _, required := range []string{columnVideoID, columnTrendingDate, columnCategoryID} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("export is missing required column %q", required)
		}
	}

	get := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []domain.RawTrendingEntry
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read export row: %w", err)
		}
		rows = append(rows, domain.RawTrendingEntry{
			ExternalID:   get(rec, columnVideoID),
			ChannelID:    get(rec, columnChannelID),
			PublishedAt:  get(rec, columnPublishedAt),
			Title:        get(rec, columnTitle),
			ViewCount:    get(rec, columnViewCount),
			TrendingDate: get(rec, columnTrendingDate),
			CategoryID:   get(rec, columnCategoryID),
		})
	}
	return rows, nil
}
