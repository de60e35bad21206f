package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingExternalID marks a raw item that cannot be keyed.
var ErrMissingExternalID = errors.New("missing external id")

// ConfigurationError is raised when required settings are absent. It is always fatal
// and happens before any network call.
type ConfigurationError struct {
	Missing []string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Missing, ", "))
	}
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration: %v", e.Err)
	}
	return "invalid configuration"
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// FetchError is an upstream download or API failure. Batch-scoped fetch errors only
// drop that batch; top-level ones fail the run.
type FetchError struct {
	Source     string
	StatusCode int
	Batch      bool
	Err        error
}

func (e *FetchError) Error() string {
	scope := "fetch"
	if e.Batch {
		scope = "lookup batch"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Source, scope, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Source, scope, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NormalizationError rejects a single structurally malformed item.
type NormalizationError struct {
	Index int
	Err   error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize item %d: %v", e.Index, e.Err)
}

func (e *NormalizationError) Unwrap() error { return e.Err }

// PersistenceError is a datastore write failure.
type PersistenceError struct {
	Records int
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %d record(s): %v", e.Records, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsConfigurationError reports whether err carries a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsFetchError reports whether err carries a FetchError.
func IsFetchError(err error) bool {
	var target *FetchError
	return errors.As(err, &target)
}

// IsPersistenceError reports whether err carries a PersistenceError.
func IsPersistenceError(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}
