package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/api/option"

	"github.com/samvad-hq/trending-seeder/pkg/httpclient"
)

// fetcherRegistry implements FetcherRegistry.
type fetcherRegistry struct {
	fetchers map[string]Fetcher
	mu       sync.RWMutex
}

// NewFetcherRegistry builds a registry for the provided fetcher implementations keyed by strategy id.
func NewFetcherRegistry(fetchers ...Fetcher) FetcherRegistry {
	reg := &fetcherRegistry{fetchers: make(map[string]Fetcher)}
	for _, f := range fetchers {
		reg.register(f)
	}
	return reg
}

func (r *fetcherRegistry) register(f Fetcher) {
	if f == nil {
		return
	}
	key := strings.ToLower(strings.TrimSpace(f.ID()))
	if key == "" {
		return
	}

	r.mu.Lock()
	r.fetchers[key] = f
	r.mu.Unlock()
}

// FetcherFor selects the fetcher for the given strategy.
func (r *fetcherRegistry) FetcherFor(strategy string) (Fetcher, error) {
	if r == nil {
		return nil, fmt.Errorf("fetcher registry is nil")
	}
	key := strings.ToLower(strings.TrimSpace(strategy))
	if key == "" {
		return nil, fmt.Errorf("fetch strategy is empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if f, ok := r.fetchers[key]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("no fetcher registered for strategy %q", strategy)
}

// DefaultHTTPClient returns a resty-backed client for provider fetchers.
func DefaultHTTPClient() HTTPClient { return httpclient.NewRestyClient(30 * time.Second) }

// Options carries everything DefaultFetcherRegistry needs to build the strategies.
type Options struct {
	Client         HTTPClient
	APIBase        string
	APIKey         string
	CSVURL         string
	ClientLookup   bool
	BatchDelay     time.Duration
	LookupRetries  int
	RetryBase      time.Duration
	YouTubeOptions []option.ClientOption
	Logger         Logger
}

// DefaultFetcherRegistry wires up the bulk export, direct REST and client-library strategies.
func DefaultFetcherRegistry(ctx context.Context, opts Options) (FetcherRegistry, error) {
	client := opts.Client
	if client == nil {
		client = DefaultHTTPClient()
	}
	log := ensureLogger(opts.Logger)

	rest := NewVideosAPI(client, opts.APIBase, opts.APIKey)
	yt, err := NewClientVideosAPI(ctx, opts.APIKey, opts.YouTubeOptions...)
	if err != nil {
		return nil, err
	}

	var lookup Lookup = rest
	if opts.ClientLookup {
		lookup = yt
	}

	return NewFetcherRegistry(
		NewBulkCSVFetcher(client, lookup, BulkCSVConfig{
			CSVURL:     opts.CSVURL,
			BatchDelay: opts.BatchDelay,
			Retries:    opts.LookupRetries,
			RetryBase:  opts.RetryBase,
		}, log),
		NewMostPopularFetcher(rest, log),
		NewYouTubeClientFetcher(yt, log),
	), nil
}
