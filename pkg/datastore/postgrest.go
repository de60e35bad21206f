package datastore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/samvad-hq/trending-seeder/internal/domain"
	"github.com/samvad-hq/trending-seeder/pkg/httpclient"
)

// PostgREST upserts through a Supabase-style REST gateway.
type PostgREST struct {
	client   httpclient.Client
	endpoint string
	key      string
	policy   ConflictPolicy
}

// NewPostgREST builds a REST upserter for table under baseURL.
func NewPostgREST(client httpclient.Client, baseURL, serviceKey, table string, policy ConflictPolicy) (*PostgREST, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("postgrest url is empty")
	}
	if strings.TrimSpace(serviceKey) == "" {
		return nil, errors.New("postgrest service key is empty")
	}
	if client == nil {
		client = httpclient.NewRestyClient(30 * time.Second)
	}

	q := url.Values{}
	q.Set("on_conflict", KeyColumn)
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", baseURL, url.PathEscape(table), q.Encode())

	return &PostgREST{client: client, endpoint: endpoint, key: serviceKey, policy: policy}, nil
}

// Upsert sends records in a single request.
func (p *PostgREST) Upsert(ctx context.Context, records []domain.VideoRecord) error {
	if len(records) == 0 {
		return nil
	}

	resp, err := p.client.Post(ctx, p.endpoint, p.headers(), records)
	if err != nil {
		return fmt.Errorf("postgrest upsert: %w", err)
	}
	if !httpclient.IsSuccess(resp) {
		return fmt.Errorf("postgrest upsert returned status %d body: %s", resp.StatusCode(), snippet(resp.Body()))
	}
	return nil
}

// Close is a no-op; the HTTP client holds no pooled state worth releasing.
func (p *PostgREST) Close() {}

func (p *PostgREST) headers() map[string]string {
	resolution := "resolution=ignore-duplicates"
	if p.policy == PolicyOverwrite {
		resolution = "resolution=merge-duplicates"
	}
	return map[string]string{
		"apikey":        p.key,
		"Authorization": "Bearer " + p.key,
		"Content-Type":  "application/json",
		"Prefer":        resolution + ",return=minimal",
	}
}

func snippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
