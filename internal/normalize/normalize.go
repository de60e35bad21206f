// Package normalize maps provider-native trending entries onto the canonical video record.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/samvad-hq/trending-seeder/internal/domain"
)

// durationPattern matches ISO-8601 durations as the video platform emits them
// (PT4M13S, PT1H, P1DT2H3M). Years, months and weeks are never produced.
var durationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseDuration converts an ISO-8601 duration token to whole seconds.
// It returns nil when the token is absent or does not match; nil means "unknown",
// never "zero length".
func ParseDuration(token string) *int64 {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" || token == "P" || strings.HasSuffix(token, "T") {
		return nil
	}
	m := durationPattern.FindStringSubmatch(token)
	if m == nil {
		return nil
	}

	var total int64
	for i, unit := range []int64{86400, 3600, 60, 1} {
		raw := m[i+1]
		if raw == "" {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil
		}
		// A length that does not fit in int64 seconds is as unknown as a malformed one.
		if n > (math.MaxInt64-total)/unit {
			return nil
		}
		total += n * unit
	}
	return &total
}

// ParseViewCount parses a base-10 view count. Missing, non-numeric or negative
// values become 0.
func ParseViewCount(raw string) int64 {
	n, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 63)
	if err != nil {
		return 0
	}
	return int64(n)
}

// ParseTimestamp re-emits a provider timestamp as a UTC RFC 3339 instant.
// Absent or unparseable input yields nil.
func ParseTimestamp(raw string) *string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// Normalizer turns RawTrendingEntry values into VideoRecord values.
type Normalizer struct {
	now func() time.Time
}

// New returns a Normalizer stamping ingested_at with the wall clock.
func New() *Normalizer {
	return &Normalizer{now: time.Now}
}

// NewWithClock returns a Normalizer using now for ingested_at.
func NewWithClock(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

// Normalize maps one entry. Only a missing external ID is an error; every other
// absent field gets its canonical default.
func (n *Normalizer) Normalize(entry domain.RawTrendingEntry) (domain.VideoRecord, error) {
	id := strings.TrimSpace(entry.ExternalID)
	if id == "" {
		return domain.VideoRecord{}, domain.ErrMissingExternalID
	}

	rec := domain.VideoRecord{
		ExternalID:       id,
		Title:            entry.Title,
		PublishTime:      ParseTimestamp(entry.PublishedAt),
		DurationSeconds:  ParseDuration(entry.Duration),
		InitialViewCount: ParseViewCount(entry.ViewCount),
		IngestedAt:       n.now().UTC().Format(time.RFC3339),
	}
	if ch := entry.ChannelID; ch != "" {
		rec.ChannelID = &ch
	}
	return rec, nil
}

// NormalizeAll maps entries in order. Malformed entries are reported as
// NormalizationErrors alongside the records that did normalize.
func (n *Normalizer) NormalizeAll(entries []domain.RawTrendingEntry) ([]domain.VideoRecord, []error) {
	records := make([]domain.VideoRecord, 0, len(entries))
	var errs []error
	for i, entry := range entries {
		rec, err := n.Normalize(entry)
		if err != nil {
			errs = append(errs, &domain.NormalizationError{Index: i, Err: err})
			continue
		}
		records = append(records, rec)
	}
	return records, errs
}
