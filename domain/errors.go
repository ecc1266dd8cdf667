package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested entity does not exist in the
// authoritative backend. It is caller-visible and distinct from a
// backend outage.
var ErrNotFound = errors.New("domain: not found")

// ErrInvalidInput indicates the caller supplied an unusable request,
// such as an empty prompt text on create.
var ErrInvalidInput = errors.New("domain: invalid input")

// DuplicateError is returned when a create would insert content whose
// fingerprint already exists. Callers can branch on it to report "this
// prompt has already been submitted" instead of a generic failure.
type DuplicateError struct {
	Fingerprint string
	ExistingID  string
}

func (e *DuplicateError) Error() string {
	if e.ExistingID != "" {
		return fmt.Sprintf("domain: duplicate content (existing id %s)", e.ExistingID)
	}
	return "domain: duplicate content"
}

// BackendError wraps a storage-backend failure on the primary read/write
// path. It is surfaced to callers as a retryable internal error.
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// IsNotFound reports whether err represents a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate reports whether err represents a duplicate-content rejection.
func IsDuplicate(err error) bool {
	var dup *DuplicateError
	return errors.As(err, &dup)
}

// IsBackendUnavailable reports whether err originates from a storage
// backend rather than from request validation.
func IsBackendUnavailable(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}
