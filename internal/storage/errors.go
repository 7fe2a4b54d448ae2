package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies store failures for retry decisions.
type ErrorKind int

const (
	// KindTransient failures are worth retrying.
	KindTransient ErrorKind = iota
	// KindPermissionDenied means the credentials were rejected.
	KindPermissionDenied
	// KindNotFound means the object or bucket does not exist.
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission_denied"
	case KindNotFound:
		return "not_found"
	default:
		return "transient"
	}
}

// StoreError is returned by every ObjectStore backend.
type StoreError struct {
	Op   string
	Key  string
	Kind ErrorKind
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("storage %s %s (%s): %v", e.Op, e.Key, e.Kind, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsPermissionDenied reports whether err is an auth/permission failure.
func IsPermissionDenied(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == KindPermissionDenied
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	var se *StoreError
	return errors.As(err, &se) && se.Kind == KindNotFound
}

// IsTransient reports whether err may succeed on retry. Errors that did not
// come from a store are treated as transient unless the context was
// cancelled by the caller.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var se *StoreError
	if errors.As(err, &se) {
		return se.Kind == KindTransient
	}
	return !errors.Is(err, context.Canceled)
}

// kindForCode maps S3-style error codes and HTTP statuses to a kind.
func kindForCode(code string, status int) ErrorKind {
	switch code {
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch",
		"ExpiredToken", "InvalidToken", "TokenRefreshRequired":
		return KindPermissionDenied
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return KindNotFound
	}
	switch status {
	case 401, 403:
		return KindPermissionDenied
	case 404:
		return KindNotFound
	}
	return KindTransient
}
