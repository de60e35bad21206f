package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/samvad-hq/trending-seeder/internal/domain"
	"github.com/samvad-hq/trending-seeder/pkg/httpclient"
)

// DefaultAPIBase is the public videos API root.
const DefaultAPIBase = "https://www.googleapis.com/youtube/v3"

const (
	chartMostPopular = "mostPopular"
	maxPageSize      = 50
)

var videoParts = []string{"snippet", "statistics", "contentDetails"}

// chartPage is one page of the most-popular listing.
type chartPage struct {
	Entries       []domain.RawTrendingEntry
	NextPageToken string
}

// chartPager lists the most-popular chart one page at a time.
type chartPager interface {
	MostPopularPage(ctx context.Context, req Request, pageToken string, size int) (chartPage, error)
}

// VideosAPI talks to the videos endpoint over plain REST.
type VideosAPI struct {
	client HTTPClient
	base   string
	key    string
}

// NewVideosAPI builds a REST videos API client. An empty base selects DefaultAPIBase.
func NewVideosAPI(client HTTPClient, base, key string) *VideosAPI {
	if client == nil {
		client = DefaultHTTPClient()
	}
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultAPIBase
	}
	return &VideosAPI{client: client, base: base, key: key}
}

// Lookup resolves metadata for up to one batch of IDs.
func (a *VideosAPI) Lookup(ctx context.Context, ids []string) ([]domain.RawTrendingEntry, error) {
	q := url.Values{}
	q.Set("part", strings.Join(videoParts, ","))
	q.Set("id", strings.Join(ids, ","))

	list, err := a.list(ctx, q)
	if err != nil {
		err.Source = "videos"
		err.Batch = true
		return nil, err
	}
	return list.entries(), nil
}

// MostPopularPage fetches one page of the most-popular chart.
func (a *VideosAPI) MostPopularPage(ctx context.Context, req Request, pageToken string, size int) (chartPage, error) {
	q := url.Values{}
	q.Set("part", strings.Join(videoParts, ","))
	q.Set("chart", chartMostPopular)
	if req.RegionCode != "" {
		q.Set("regionCode", req.RegionCode)
	}
	if req.CategoryID != "" {
		q.Set("videoCategoryId", req.CategoryID)
	}
	q.Set("maxResults", strconv.Itoa(size))
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	list, err := a.list(ctx, q)
	if err != nil {
		err.Source = "most_popular"
		return chartPage{}, err
	}
	return chartPage{Entries: list.entries(), NextPageToken: list.NextPageToken}, nil
}

func (a *VideosAPI) list(ctx context.Context, q url.Values) (videoListResponse, *domain.FetchError) {
	q.Set("key", a.key)
	endpoint := a.base + "/videos?" + q.Encode()

	resp, err := a.client.Get(ctx, endpoint, map[string]string{"Accept": "application/json"})
	if err != nil {
		return videoListResponse{}, &domain.FetchError{Err: fmt.Errorf("request videos: %w", err)}
	}
	body := resp.Body()
	if !httpclient.IsSuccess(resp) {
		return videoListResponse{}, &domain.FetchError{
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("videos returned body: %s", responseSnippet(body)),
		}
	}

	var list videoListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return videoListResponse{}, &domain.FetchError{StatusCode: resp.StatusCode(), Err: fmt.Errorf("decode videos response: %w", err)}
	}
	return list, nil
}

type videoListResponse struct {
	NextPageToken string      `json:"nextPageToken"`
	Items         []videoItem `json:"items"`
}

type videoItem struct {
	ID      string `json:"id"`
	Snippet struct {
		ChannelID   string `json:"channelId"`
		PublishedAt string `json:"publishedAt"`
		Title       string `json:"title"`
		CategoryID  string `json:"categoryId"`
	} `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
	Statistics struct {
		ViewCount string `json:"viewCount"`
	} `json:"statistics"`
}

func (l videoListResponse) entries() []domain.RawTrendingEntry {
	out := make([]domain.RawTrendingEntry, 0, len(l.Items))
	for _, item := range l.Items {
		out = append(out, domain.RawTrendingEntry{
			ExternalID:  item.ID,
			ChannelID:   item.Snippet.ChannelID,
			PublishedAt: item.Snippet.PublishedAt,
			Title:       item.Snippet.Title,
			Duration:    item.ContentDetails.Duration,
			ViewCount:   item.Statistics.ViewCount,
			CategoryID:  item.Snippet.CategoryID,
		})
	}
	return out
}
