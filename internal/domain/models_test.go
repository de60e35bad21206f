package domain

import (
	"errors"
	"testing"
	"time"
)

func TestYesterdayWindowUsesUTCDay(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 30, 0, 0, time.UTC)
	w := YesterdayWindow(now)
	if w.Date != "2024-02-29" || w.Current {
		t.Fatalf("unexpected window %+v", w)
	}
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow(" current ")
	if err != nil || !w.Current {
		t.Fatalf("expected current window, got %+v err=%v", w, err)
	}

	w, err = ParseWindow("2024-01-02")
	if err != nil || w.Date != "2024-01-02" {
		t.Fatalf("expected dated window, got %+v err=%v", w, err)
	}

	if _, err := ParseWindow("02/01/2024"); err == nil {
		t.Fatalf("expected error for malformed date")
	}
}

func TestWindowMatchesDatePart(t *testing.T) {
	w := Window{Date: "2024-01-02"}
	cases := map[string]bool{
		"2024-01-02":           true,
		"2024-01-02T00:00:00Z": true,
		"2024-01-03":           false,
		"2024":                 false,
		"":                     false,
	}
	for in, want := range cases {
		if got := w.Matches(in); got != want {
			t.Errorf("Matches(%q) = %v want %v", in, got, want)
		}
	}
	if !CurrentWindow().Matches("anything") {
		t.Errorf("current window should match every row")
	}
}

func TestErrorKindsUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := error(&FetchError{Source: "csv", StatusCode: 503, Err: cause})
	if !IsFetchError(err) || !errors.Is(err, cause) {
		t.Fatalf("fetch error should unwrap to cause")
	}
	if IsPersistenceError(err) || IsConfigurationError(err) {
		t.Fatalf("fetch error misclassified")
	}

	cfgErr := &ConfigurationError{Missing: []string{"YT_API_KEY"}}
	if cfgErr.Error() != "missing required configuration: YT_API_KEY" {
		t.Fatalf("unexpected message %q", cfgErr.Error())
	}
}
