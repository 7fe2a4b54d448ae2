package upload

import (
	"photo-ingest/internal/ingest"
)

// FailureReason classifies why a batch item did not succeed.
type FailureReason int

const (
	// Rejected items were refused by the ingest pipeline.
	Rejected FailureReason = iota + 1
	// UploadTransient items exhausted their retry budget.
	UploadTransient
	// UploadAuthFailure items hit a permission or expired-session error.
	// They are never retried.
	UploadAuthFailure
	// DbInsertFailed items uploaded their tiers but the metadata row could
	// not be written.
	DbInsertFailed
	// Cancelled items were not started, or not retried, because the batch
	// context ended.
	Cancelled
)

// String returns the snake_case label used in metrics and JSON.
func (r FailureReason) String() string {
	switch r {
	case Rejected:
		return "rejected"
	case UploadTransient:
		return "upload_transient"
	case UploadAuthFailure:
		return "upload_auth_failure"
	case DbInsertFailed:
		return "db_insert_failed"
	case Cancelled:
		return "cancelled"
	default:
		return "none"
	}
}

// MarshalText renders the reason as its label.
func (r FailureReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Task is one input of a batch. Each input owns exactly one Task, so two
// uploads for the same tier never race.
type Task struct {
	Input     ingest.RawInput
	KeyPrefix string
	UserID    string

	// Attempts counts upload attempts made so far.
	Attempts int
	// LastError is the most recent failure, if any.
	LastError error
}

// NewTasks wraps inputs in tasks sharing a prefix and owner.
func NewTasks(inputs []ingest.RawInput, keyPrefix, userID string) []*Task {
	tasks := make([]*Task, len(inputs))
	for i, in := range inputs {
		tasks[i] = &Task{Input: in, KeyPrefix: keyPrefix, UserID: userID}
	}
	return tasks
}

// ItemOutcome is the terminal state of one task.
type ItemOutcome struct {
	Index        int                 `json:"index"`
	Name         string              `json:"name"`
	Succeeded    bool                `json:"succeeded"`
	Reason       FailureReason       `json:"reason,omitempty"`
	RejectReason ingest.RejectReason `json:"rejectReason,omitempty"`
	Error        string              `json:"error,omitempty"`
	Attempts     int                 `json:"attempts"`
	PhotoID      int64               `json:"photoId,omitempty"`
	// Keys maps tier name to object key for every uploaded tier.
	Keys         map[string]string `json:"keys,omitempty"`
	URLs         map[string]string `json:"urls,omitempty"`
	MissingTiers []string          `json:"missingTiers,omitempty"`
}
