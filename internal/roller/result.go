package roller

import (
	"time"

	"imageroller/internal/domain"
	"imageroller/internal/retention"
)

// Classification is the overall outcome of one server's pass.
type Classification string

const (
	// Success: creation succeeded and every intended deletion
	// succeeded (or there was nothing to delete).
	Success Classification = "success"
	// PartialFailure: creation succeeded but at least one deletion
	// failed, or creation failed but fallback pruning succeeded, or
	// the readiness wait timed out.
	PartialFailure Classification = "partial_failure"
	// Failure: the initial fetch failed, or creation failed and
	// fallback pruning also failed, or creation failed on a server
	// with no recoverable image at all.
	Failure Classification = "failure"
)

// DeleteOutcome records one attempted image deletion. A provider
// NotFound is normalized to success before it lands here: an
// already-gone image is exactly the state we wanted.
type DeleteOutcome struct {
	Image domain.Image `json:"image"`
	Err   error        `json:"-"`
}

// Failed reports whether the deletion actually failed.
func (d DeleteOutcome) Failed() bool { return d.Err != nil }

// RunResult is the immutable outcome of one server's pass.
type RunResult struct {
	ServerID   string           `json:"server_id"`
	ServerName string           `json:"server_name"`
	Policy     retention.Policy `json:"-"`

	// Created is the new image in its last observed state, nil when
	// the create call itself failed or the pass never got that far.
	Created   *domain.Image `json:"created,omitempty"`
	CreateErr error         `json:"-"`
	// TimedOut is set when the readiness deadline elapsed while the
	// new image was still pending. No deletions happen on such a pass.
	TimedOut bool `json:"timed_out,omitempty"`

	// FetchErr is the initial list failure that aborted the pass.
	FetchErr error `json:"-"`
	// PruneSkipped is the post-create re-fetch failure that prevented
	// a fresh deletion plan, if any.
	PruneSkipped error `json:"-"`

	// Deletions holds one entry per attempted deletion. On a dry run
	// these are the planned deletions and nothing was issued.
	Deletions []DeleteOutcome `json:"deletions,omitempty"`

	// Anomalies lists images stuck outside the available state for
	// longer than the readiness deadline. Reported, never deleted.
	Anomalies []domain.Image `json:"anomalies,omitempty"`

	Classification Classification `json:"classification"`
	DryRun         bool           `json:"dry_run,omitempty"`
	Duration       time.Duration  `json:"duration"`
}

// DeletedCount returns the number of successful deletions.
func (r RunResult) DeletedCount() int {
	n := 0
	for _, d := range r.Deletions {
		if !d.Failed() {
			n++
		}
	}
	return n
}

// FailedDeletions returns the deletions that did not succeed.
func (r RunResult) FailedDeletions() []DeleteOutcome {
	var failed []DeleteOutcome
	for _, d := range r.Deletions {
		if d.Failed() {
			failed = append(failed, d)
		}
	}
	return failed
}

// Error returns the most significant error of the pass, for reporting.
func (r RunResult) Error() error {
	switch {
	case r.FetchErr != nil:
		return r.FetchErr
	case r.CreateErr != nil:
		return r.CreateErr
	case r.PruneSkipped != nil:
		return r.PruneSkipped
	}
	if failed := r.FailedDeletions(); len(failed) > 0 {
		return failed[0].Err
	}
	return nil
}

// Report aggregates one run across all configured servers. Results
// are in configuration order regardless of completion order.
type Report struct {
	RunID      string      `json:"run_id"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Results    []RunResult `json:"results"`
}

// Failed reports whether any server's pass was a hard failure.
// PartialFailure entries are reported but do not fail the run.
func (r Report) Failed() bool {
	for _, res := range r.Results {
		if res.Classification == Failure {
			return true
		}
	}
	return false
}
