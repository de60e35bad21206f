// Package datastore upserts canonical video records into the relational store.
package datastore

import (
	"context"
	"fmt"
	"strings"

	"github.com/samvad-hq/trending-seeder/internal/domain"
	"github.com/samvad-hq/trending-seeder/pkg/httpclient"
)

// Supported backends.
const (
	TypePostgREST = "postgrest"
	TypePostgres  = "postgres"
)

// ConflictPolicy decides what happens when a record's key already exists.
type ConflictPolicy string

const (
	// PolicyIgnore keeps the existing row untouched.
	PolicyIgnore ConflictPolicy = "ignore"
	// PolicyOverwrite replaces every non-key column.
	PolicyOverwrite ConflictPolicy = "overwrite"
)

// KeyColumn is the unique column every upsert conflicts on.
const KeyColumn = "external_id"

// Upserter writes records keyed by external_id under one conflict policy.
type Upserter interface {
	Upsert(ctx context.Context, records []domain.VideoRecord) error
	Close()
}

// Options configures NewUpserter.
type Options struct {
	Type        string
	Table       string
	Policy      ConflictPolicy
	URL         string
	ServiceKey  string
	DatabaseURL string
	Client      httpclient.Client
}

// NewUpserter builds the upserter for the configured backend.
func NewUpserter(ctx context.Context, opts Options) (Upserter, error) {
	switch opts.Policy {
	case PolicyIgnore, PolicyOverwrite:
	case "":
		opts.Policy = PolicyIgnore
	default:
		return nil, fmt.Errorf("unsupported conflict policy %q", opts.Policy)
	}
	if strings.TrimSpace(opts.Table) == "" {
		opts.Table = "videos"
	}

	switch strings.ToLower(strings.TrimSpace(opts.Type)) {
	case "", TypePostgREST:
		return NewPostgREST(opts.Client, opts.URL, opts.ServiceKey, opts.Table, opts.Policy)
	case TypePostgres:
		return NewPostgres(ctx, opts.DatabaseURL, opts.Table, opts.Policy)
	default:
		return nil, fmt.Errorf("unsupported datastore type %q", opts.Type)
	}
}
