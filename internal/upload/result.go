package upload

import (
	"fmt"
	"time"
)

// BatchStatus is the user-visible summary of a batch.
type BatchStatus string

const (
	AllSucceeded       BatchStatus = "all_succeeded"
	PartiallySucceeded BatchStatus = "partial"
	AllFailed          BatchStatus = "all_failed"
)

// BatchResult aggregates the outcomes of one Run.
type BatchResult struct {
	// ID is assigned by the caller that owns the batch; Run leaves it empty.
	ID        string        `json:"id,omitempty"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Items     []ItemOutcome `json:"items"`
	// NeedsReauth is set when any item failed with UploadAuthFailure.
	NeedsReauth bool          `json:"needsReauth"`
	Duration    time.Duration `json:"durationNs"`
}

// Status classifies the batch.
func (r *BatchResult) Status() BatchStatus {
	switch {
	case r.Failed == 0:
		return AllSucceeded
	case r.Succeeded == 0:
		return AllFailed
	default:
		return PartiallySucceeded
	}
}

// Summary returns a one-line description for users.
func (r *BatchResult) Summary() string {
	var s string
	switch r.Status() {
	case AllSucceeded:
		s = fmt.Sprintf("all succeeded (%d/%d)", r.Succeeded, r.Total)
	case AllFailed:
		s = fmt.Sprintf("all failed (0/%d)", r.Total)
	default:
		s = fmt.Sprintf("partially succeeded (%d/%d)", r.Succeeded, r.Total)
	}
	if r.NeedsReauth {
		s += "; please sign in again"
	}
	return s
}

// FailuresByReason counts failed items per reason.
func (r *BatchResult) FailuresByReason() map[FailureReason]int {
	counts := make(map[FailureReason]int)
	for _, item := range r.Items {
		if !item.Succeeded {
			counts[item.Reason]++
		}
	}
	return counts
}
