package providers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/samvad-hq/trending-seeder/internal/domain"
)

const youtubeClientID = "youtube_client"

// ClientVideosAPI serves lookups and chart pages through the YouTube client library.
type ClientVideosAPI struct {
	svc *youtube.Service
}

// NewClientVideosAPI builds the client-library backend. Extra options are appended after the
// API key so tests can point the service at a local endpoint.
func NewClientVideosAPI(ctx context.Context, apiKey string, opts ...option.ClientOption) (*ClientVideosAPI, error) {
	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := youtube.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &ClientVideosAPI{svc: svc}, nil
}

// Lookup resolves metadata for up to one batch of IDs.
func (a *ClientVideosAPI) Lookup(ctx context.Context, ids []string) ([]domain.RawTrendingEntry, error) {
	resp, err := a.svc.Videos.
		List(videoParts).
		Id(strings.Join(ids, ",")).
		Context(ctx).
		Do()
	if err != nil {
		return nil, clientFetchError("videos", true, err)
	}
	return clientEntries(resp.Items), nil
}

// MostPopularPage fetches one page of the most-popular chart.
func (a *ClientVideosAPI) MostPopularPage(ctx context.Context, req Request, pageToken string, size int) (chartPage, error) {
	call := a.svc.Videos.
		List(videoParts).
		Chart(chartMostPopular).
		MaxResults(int64(size))
	if req.RegionCode != "" {
		call = call.RegionCode(req.RegionCode)
	}
	if req.CategoryID != "" {
		call = call.VideoCategoryId(req.CategoryID)
	}
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return chartPage{}, clientFetchError(youtubeClientID, false, err)
	}
	return chartPage{Entries: clientEntries(resp.Items), NextPageToken: resp.NextPageToken}, nil
}

// NewYouTubeClientFetcher builds the client-library "most popular" strategy.
func NewYouTubeClientFetcher(api *ClientVideosAPI, log Logger) Fetcher {
	return &chartFetcher{id: youtubeClientID, pager: api, log: ensureLogger(log)}
}

func clientFetchError(source string, batch bool, err error) *domain.FetchError {
	fe := &domain.FetchError{Source: source, Batch: batch, Err: err}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		fe.StatusCode = gerr.Code
	}
	return fe
}

func clientEntries(items []*youtube.Video) []domain.RawTrendingEntry {
	out := make([]domain.RawTrendingEntry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		entry := domain.RawTrendingEntry{ExternalID: item.Id}
		if s := item.Snippet; s != nil {
			entry.ChannelID = s.ChannelId
			entry.PublishedAt = s.PublishedAt
			entry.Title = s.Title
			entry.CategoryID = s.CategoryId
		}
		if cd := item.ContentDetails; cd != nil {
			entry.Duration = cd.Duration
		}
		if st := item.Statistics; st != nil {
			entry.ViewCount = strconv.FormatUint(st.ViewCount, 10)
		}
		out = append(out, entry)
	}
	return out
}
