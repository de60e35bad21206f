package providers

import (
	"context"
	"errors"
	"strings"

	"github.com/samvad-hq/trending-seeder/internal/domain"
)

const (
	mostPopularID     = "most_popular"
	defaultMaxResults = 50
)

// chartFetcher lists the most-popular chart page by page and hands the result over as one batch.
type chartFetcher struct {
	id    string
	pager chartPager
	log   Logger
}

// NewMostPopularFetcher builds the direct REST "most popular" strategy.
func NewMostPopularFetcher(api *VideosAPI, log Logger) Fetcher {
	return &chartFetcher{id: mostPopularID, pager: api, log: ensureLogger(log)}
}

func (f *chartFetcher) ID() string {
	return f.id
}

func (f *chartFetcher) Fetch(ctx context.Context, req Request, handle BatchHandler) (Stats, error) {
	var stats Stats
	if handle == nil {
		return stats, errors.New("batch handler is nil")
	}

	entries, err := f.collect(ctx, req)
	if err != nil {
		return stats, err
	}
	stats.Candidates = len(entries)
	if len(entries) == 0 {
		return stats, nil
	}

	pending := entries
	if req.Seen != nil {
		ids := make([]string, 0, len(entries))
		for _, e := range entries {
			ids = append(ids, e.ExternalID)
		}
		keep, cached := filterSeen(ctx, req.Seen, ids, f.log)
		stats.Cached = cached
		pending = keepEntries(entries, keep)
	}
	if len(pending) == 0 {
		return stats, nil
	}

	stats.Batches = 1
	return stats, handle(ctx, pending)
}

func (f *chartFetcher) collect(ctx context.Context, req Request) ([]domain.RawTrendingEntry, error) {
	limit := req.MaxResults
	if limit <= 0 {
		limit = defaultMaxResults
	}

	var (
		out   []domain.RawTrendingEntry
		token string
		seen  = make(map[string]struct{})
	)
	for len(out) < limit {
		size := limit - len(out)
		if size > maxPageSize {
			size = maxPageSize
		}
		page, err := f.pager.MostPopularPage(ctx, req, token, size)
		if err != nil {
			return nil, err
		}
		// The chart can shift between page requests and repeat an item on a later page.
		for _, e := range page.Entries {
			if id := strings.TrimSpace(e.ExternalID); id != "" {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
			}
			out = append(out, e)
		}
		f.log.DebugObj("most popular page fetched", "page", map[string]any{
			"strategy": f.id,
			"items":    len(page.Entries),
			"total":    len(out),
		})
		if page.NextPageToken == "" || len(page.Entries) == 0 {
			break
		}
		token = page.NextPageToken
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func keepEntries(entries []domain.RawTrendingEntry, ids []string) []domain.RawTrendingEntry {
	if len(ids) == len(entries) {
		return entries
	}
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	out := make([]domain.RawTrendingEntry, 0, len(ids))
	for _, e := range entries {
		if _, ok := keep[e.ExternalID]; ok {
			out = append(out, e)
		}
	}
	return out
}
