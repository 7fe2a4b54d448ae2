package ingest

import (
	"errors"
	"fmt"
)

// RejectReason says why an input was refused. Rejections are per input and
// never abort sibling inputs.
type RejectReason int

const (
	// TooLarge inputs exceed the per-file size cap.
	TooLarge RejectReason = iota + 1
	// UnsupportedFormat inputs have unknown magic bytes or disagree with
	// their declared type.
	UnsupportedFormat
	// TranscodeFailed inputs could not be decoded or converted.
	TranscodeFailed
	// ResizeFailed inputs could not produce the full resolution tier.
	ResizeFailed
)

// String returns the snake_case label used in metrics and JSON.
func (r RejectReason) String() string {
	switch r {
	case TooLarge:
		return "too_large"
	case UnsupportedFormat:
		return "unsupported_format"
	case TranscodeFailed:
		return "transcode_failed"
	case ResizeFailed:
		return "resize_failed"
	default:
		return "unknown"
	}
}

// MarshalText renders the reason as its label.
func (r RejectReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Rejection is returned by Pipeline.Ingest when an input is refused.
type Rejection struct {
	Reason RejectReason
	Err    error
}

func (r *Rejection) Error() string {
	if r.Err == nil {
		return "rejected: " + r.Reason.String()
	}
	return fmt.Sprintf("rejected (%s): %v", r.Reason, r.Err)
}

func (r *Rejection) Unwrap() error { return r.Err }

func reject(reason RejectReason, err error) *Rejection {
	return &Rejection{Reason: reason, Err: err}
}

// ReasonOf extracts the RejectReason from err.
func ReasonOf(err error) (RejectReason, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Reason, true
	}
	return 0, false
}

// Batch limit errors returned by ValidateBatch.
var (
	ErrEmptyBatch    = errors.New("batch contains no files")
	ErrTooManyFiles  = errors.New("batch exceeds file count limit")
	ErrBatchTooLarge = errors.New("batch exceeds total size limit")
)
