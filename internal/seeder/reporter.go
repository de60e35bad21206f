package seeder

import (
	"fmt"

	"github.com/samvad-hq/trending-seeder/internal/domain"
	"github.com/samvad-hq/trending-seeder/pkg/providers"
)

// Reporter accumulates per-run counts and produces the final RunOutcome.
type Reporter struct {
	outcome domain.RunOutcome
	started bool
}

// NewReporter starts a report for one run.
func NewReporter(runID, strategy string, window domain.Window) *Reporter {
	return &Reporter{outcome: domain.RunOutcome{
		RunID:    runID,
		Strategy: strategy,
		Date:     window.String(),
	}}
}

// BatchStarted records that at least one batch reached normalization.
func (r *Reporter) BatchStarted() { r.started = true }

func (r *Reporter) AddProcessed(n int) { r.outcome.Processed += n }
func (r *Reporter) AddInserted(n int)  { r.outcome.Inserted += n }
func (r *Reporter) AddSkipped(n int)   { r.outcome.Skipped += n }

// ApplyStats copies the acquisition counters of a fetch.
func (r *Reporter) ApplyStats(stats providers.Stats) {
	r.outcome.Candidates = stats.Candidates
	r.outcome.Cached = stats.Cached
	r.outcome.FailedBatches = stats.FailedBatches
	r.outcome.Dropped = stats.Dropped
}

// ShortCircuit reports a run that found nothing to ingest.
func (r *Reporter) ShortCircuit(message string) domain.RunOutcome {
	out := r.zeroed()
	out.Status = domain.StatusEmpty
	out.Message = message
	return out
}

// Fail reports a run-level failure. Counts survive only if batches had already begun.
func (r *Reporter) Fail(err error) domain.RunOutcome {
	out := r.outcome
	if !r.started {
		out = r.zeroed()
	}
	out.Status = domain.StatusFailed
	if err != nil {
		out.Error = err.Error()
	}
	return out
}

// Complete reports a successful, possibly partial, run.
func (r *Reporter) Complete() domain.RunOutcome {
	out := r.outcome
	out.Status = domain.StatusOK
	if out.FailedBatches > 0 {
		out.Message = fmt.Sprintf("%d lookup batch(es) failed; %d video(s) dropped", out.FailedBatches, out.Dropped)
	}
	return out
}

func (r *Reporter) zeroed() domain.RunOutcome {
	return domain.RunOutcome{
		RunID:    r.outcome.RunID,
		Strategy: r.outcome.Strategy,
		Date:     r.outcome.Date,
	}
}
