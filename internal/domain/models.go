package domain

import (
	"fmt"
	"strings"
	"time"
)

// Domain contains core models shared by fetchers, the normalizer and the persister.

// RawTrendingEntry is one video's trending appearance as the provider reports it.
// It only lives for the duration of a run.
type RawTrendingEntry struct {
	ExternalID   string
	ChannelID    string
	PublishedAt  string
	Title        string
	Duration     string
	ViewCount    string
	TrendingDate string // bulk export only
	CategoryID   string // bulk export only
}

// VideoRecord is the persisted, canonical shape keyed by ExternalID.
type VideoRecord struct {
	ExternalID       string  `json:"external_id"`
	ChannelID        *string `json:"channel_id"`
	PublishTime      *string `json:"publish_time"`
	Title            string  `json:"title"`
	DurationSeconds  *int64  `json:"duration_seconds"`
	InitialViewCount int64   `json:"initial_view_count"`
	IngestedAt       string  `json:"ingested_at"`
}

// Run statuses reported on a RunOutcome.
const (
	StatusOK     = "ok"
	StatusEmpty  = "empty"
	StatusFailed = "failed"
)

// RunOutcome is the report returned to the caller once per invocation.
type RunOutcome struct {
	RunID         string `json:"run_id"`
	Strategy      string `json:"strategy"`
	Status        string `json:"status"`
	Date          string `json:"date"`
	Candidates    int    `json:"candidates"`
	Processed     int    `json:"processed"`
	Inserted      int    `json:"inserted"`
	Skipped       int    `json:"skipped"`
	Cached        int    `json:"cached"`
	FailedBatches int    `json:"failed_batches"`
	Dropped       int    `json:"dropped"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Failed reports whether the run ended in a run-level failure.
func (o RunOutcome) Failed() bool {
	return o.Status == StatusFailed
}

const (
	windowDateLayout = "2006-01-02"
	windowCurrent    = "current"
)

// Window selects which trending snapshot a run ingests: one calendar date or the live chart.
type Window struct {
	Date    string
	Current bool
}

// CurrentWindow is the live "most popular" chart.
func CurrentWindow() Window {
	return Window{Current: true}
}

// DateWindow returns the window for the calendar day containing t (UTC).
func DateWindow(t time.Time) Window {
	return Window{Date: t.UTC().Format(windowDateLayout)}
}

// YesterdayWindow returns the window for the UTC day before now.
func YesterdayWindow(now time.Time) Window {
	return DateWindow(now.UTC().AddDate(0, 0, -1))
}

// ParseWindow accepts "current" or a YYYY-MM-DD date.
func ParseWindow(raw string) (Window, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, windowCurrent) {
		return CurrentWindow(), nil
	}
	t, err := time.Parse(windowDateLayout, raw)
	if err != nil {
		return Window{}, fmt.Errorf("invalid window %q (expected YYYY-MM-DD or %q)", raw, windowCurrent)
	}
	return DateWindow(t), nil
}

// Matches reports whether a provider trending date falls inside the window. Only the
// date part is compared so both "2024-01-02" and "2024-01-02T00:00:00Z" match.
func (w Window) Matches(trendingDate string) bool {
	if w.Current {
		return true
	}
	trendingDate = strings.TrimSpace(trendingDate)
	if len(trendingDate) < len(windowDateLayout) {
		return false
	}
	return trendingDate[:len(windowDateLayout)] == w.Date
}

func (w Window) String() string {
	if w.Current {
		return windowCurrent
	}
	return w.Date
}
