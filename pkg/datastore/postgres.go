package datastore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samvad-hq/trending-seeder/internal/domain"
)

var videoColumns = []string{
	KeyColumn,
	"channel_id",
	"publish_time",
	"title",
	"duration_seconds",
	"initial_view_count",
	"ingested_at",
}

// pgPool is the part of *pgxpool.Pool the upserter uses.
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Postgres upserts straight into PostgreSQL over a pgx pool.
type Postgres struct {
	pool pgPool
	sql  string
}

// NewPostgres connects a pool for databaseURL.
func NewPostgres(ctx context.Context, databaseURL, table string, policy ConflictPolicy) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("database url is empty")
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return newPostgresWithPool(pool, table, policy), nil
}

func newPostgresWithPool(pool pgPool, table string, policy ConflictPolicy) *Postgres {
	return &Postgres{pool: pool, sql: upsertSQL(table, policy)}
}

// Upsert writes one record directly or several inside one transaction.
func (p *Postgres) Upsert(ctx context.Context, records []domain.VideoRecord) error {
	switch len(records) {
	case 0:
		return nil
	case 1:
		args, err := recordArgs(records[0])
		if err != nil {
			return err
		}
		if _, err := p.pool.Exec(ctx, p.sql, args...); err != nil {
			return fmt.Errorf("upsert %s: %w", records[0].ExternalID, err)
		}
		return nil
	}

	b := &pgx.Batch{}
	for _, rec := range records {
		args, err := recordArgs(rec)
		if err != nil {
			return err
		}
		b.Queue(p.sql, args...)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	br := tx.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("upsert batch item %d: %w", i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close upsert batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert transaction: %w", err)
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func upsertSQL(table string, policy ConflictPolicy) string {
	placeholders := make([]string, len(videoColumns))
	for i := range videoColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) ",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(videoColumns, ", "),
		strings.Join(placeholders, ", "),
		KeyColumn,
	)
	if policy != PolicyOverwrite {
		b.WriteString("DO NOTHING")
		return b.String()
	}

	sets := make([]string, 0, len(videoColumns)-1)
	for _, col := range videoColumns[1:] {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	b.WriteString("DO UPDATE SET ")
	b.WriteString(strings.Join(sets, ", "))
	return b.String()
}

func recordArgs(rec domain.VideoRecord) ([]any, error) {
	var publish *time.Time
	if rec.PublishTime != nil {
		t, err := time.Parse(time.RFC3339, *rec.PublishTime)
		if err != nil {
			return nil, fmt.Errorf("record %s: publish_time: %w", rec.ExternalID, err)
		}
		publish = &t
	}
	ingested, err := time.Parse(time.RFC3339, rec.IngestedAt)
	if err != nil {
		return nil, fmt.Errorf("record %s: ingested_at: %w", rec.ExternalID, err)
	}
	return []any{
		rec.ExternalID,
		rec.ChannelID,
		publish,
		rec.Title,
		rec.DurationSeconds,
		rec.InitialViewCount,
		ingested,
	}, nil
}
