package seeder

import (
	"context"

	"github.com/samvad-hq/trending-seeder/internal/domain"
	"github.com/samvad-hq/trending-seeder/internal/persist"
	"github.com/samvad-hq/trending-seeder/pkg/publishers"
)

// RecordWriter persists normalized records.
type RecordWriter interface {
	Write(ctx context.Context, records []domain.VideoRecord) (persist.WriteResult, error)
}

// EventPublisher publishes ingest events downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// SeenCache remembers which videos earlier runs already wrote.
type SeenCache interface {
	SeenVideo(ctx context.Context, id string) (bool, error)
	MarkVideo(ctx context.Context, id string) error
}
