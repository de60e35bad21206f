package storage

import (
	"context"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
)

func TestBoltStoreMarksAndExpiresVideos(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	opts := Options{
		TTL:             time.Minute,
		CleanupInterval: time.Hour,
	}

	storeRaw, err := openBolt(dir+"/seen.db", opts)
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := storeRaw.(*boltStore)
	defer store.Close()

	now := time.Now()
	store.now = func() time.Time { return now }

	seen, err := store.SeenVideo(ctx, "vid1")
	if err != nil || seen {
		t.Fatalf("expected unseen video, seen=%v err=%v", seen, err)
	}

	if err := store.MarkVideo(ctx, "vid1"); err != nil {
		t.Fatalf("MarkVideo: %v", err)
	}

	seen, err = store.SeenVideo(ctx, "vid1")
	if err != nil || !seen {
		t.Fatalf("expected video marked as seen, got seen=%v err=%v", seen, err)
	}

	now = now.Add(2 * time.Minute)
	seen, err = store.SeenVideo(ctx, "vid1")
	if err != nil {
		t.Fatalf("SeenVideo after expiry: %v", err)
	}
	if seen {
		t.Fatalf("expected entry to expire")
	}
}

func TestBoltStoreCleanupRemovesExpired(t *testing.T) {
	ctx := context.Background()
	storeRaw, err := openBolt(t.TempDir()+"/seen.db", Options{TTL: time.Minute, CleanupInterval: time.Minute})
	if err != nil {
		t.Fatalf("openBolt: %v", err)
	}
	store := storeRaw.(*boltStore)
	defer store.Close()

	now := time.Now()
	store.now = func() time.Time { return now }
	for _, id := range []string{"a", "b"} {
		if err := store.MarkVideo(ctx, id); err != nil {
			t.Fatalf("MarkVideo %s: %v", id, err)
		}
	}

	now = now.Add(10 * time.Minute)
	if err := store.maybeCleanupExpired(now); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if err := store.db.View(func(tx *bolt.Tx) error {
		if n := tx.Bucket([]byte(videoBucket)).Stats().KeyN; n != 0 {
			t.Fatalf("expected empty bucket after cleanup, got %d keys", n)
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
}

func videoKeyCount(t *testing.T, store *boltStore) int {
	t.Helper()
	var n int
	if err := store.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(videoBucket)).Stats().KeyN
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	return n
}

func TestBoltStoreCleanupCadenceSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/seen.db"
	opts := Options{TTL: time.Second, CleanupInterval: 2 * time.Second}
	start := time.Unix(1_700_000_000, 0)

	store, err := openBoltWithClock(path, opts, func() time.Time { return start })
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.MarkVideo(ctx, "old"); err != nil {
		t.Fatalf("MarkVideo: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Expired but the cadence is not due yet: the entry is still on disk.
	store, err = openBoltWithClock(path, opts, func() time.Time { return start.Add(1500 * time.Millisecond) })
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if n := videoKeyCount(t, store); n != 1 {
		t.Fatalf("expected 1 key before cleanup is due, got %d", n)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	later := start.Add(3 * time.Second)
	store, err = openBoltWithClock(path, opts, func() time.Time { return later })
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	if n := videoKeyCount(t, store); n != 0 {
		t.Fatalf("expected expired key removed on reopen, got %d keys", n)
	}

	if err := store.MarkVideo(ctx, "new"); err != nil {
		t.Fatalf("MarkVideo: %v", err)
	}
	if n := videoKeyCount(t, store); n != 1 {
		t.Fatalf("expected only the fresh key, got %d", n)
	}
	if got := time.Unix(store.lastCleanup.Load(), 0); !got.Equal(later) {
		t.Fatalf("lastCleanup = %v, want %v", got, later)
	}
}

func TestNewStoreSupportsNoop(t *testing.T) {
	store, err := NewStore(context.Background(), "none", Options{})
	if err != nil {
		t.Fatalf("NewStore none: %v", err)
	}
	if err := store.MarkVideo(context.Background(), "x"); err != nil {
		t.Fatalf("noop store MarkVideo: %v", err)
	}
	if seen, _ := store.SeenVideo(context.Background(), "x"); seen {
		t.Fatalf("noop store must never report seen")
	}
}

func TestNewStoreRejectsBadConfig(t *testing.T) {
	for _, tc := range []struct {
		typ  string
		opts Options
	}{
		{typ: "bbolt"},
		{typ: "redis"},
		{typ: "redis", opts: Options{RedisURL: "::not a url"}},
		{typ: "memcached"},
	} {
		if _, err := NewStore(context.Background(), tc.typ, tc.opts); err == nil {
			t.Fatalf("expected error for %q %+v", tc.typ, tc.opts)
		}
	}
}
