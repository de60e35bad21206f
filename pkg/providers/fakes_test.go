package providers

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/samvad-hq/trending-seeder/internal/domain"
	"github.com/samvad-hq/trending-seeder/pkg/httpclient"
)

type mockResponse struct {
	body       []byte
	statusCode int
}

func (r mockResponse) Body() []byte    { return r.body }
func (r mockResponse) StatusCode() int { return r.statusCode }

// routeHTTPClient answers GETs through a handler and records every URL it saw.
type routeHTTPClient struct {
	t       *testing.T
	handler func(u *url.URL) (int, string)

	mu   sync.Mutex
	urls []*url.URL
}

func (m *routeHTTPClient) Get(ctx context.Context, raw string, headers map[string]string) (httpclient.Response, error) {
	u, err := url.Parse(raw)
	if err != nil {
		m.t.Fatalf("unparseable url %q: %v", raw, err)
	}
	m.mu.Lock()
	m.urls = append(m.urls, u)
	m.mu.Unlock()

	status, body := m.handler(u)
	return mockResponse{body: []byte(body), statusCode: status}, nil
}

func (m *routeHTTPClient) Post(context.Context, string, map[string]string, any) (httpclient.Response, error) {
	return nil, errors.New("unexpected POST")
}

func (m *routeHTTPClient) requests(pathSuffix string) []*url.URL {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*url.URL
	for _, u := range m.urls {
		if strings.HasSuffix(u.Path, pathSuffix) {
			out = append(out, u)
		}
	}
	return out
}

// collectHandler gathers every batch handed over by a fetcher.
type collectHandler struct {
	batches [][]domain.RawTrendingEntry
	err     error
}

func (c *collectHandler) handle(_ context.Context, entries []domain.RawTrendingEntry) error {
	c.batches = append(c.batches, entries)
	return c.err
}

func (c *collectHandler) ids() []string {
	var out []string
	for _, b := range c.batches {
		for _, e := range b {
			out = append(out, e.ExternalID)
		}
	}
	return out
}
