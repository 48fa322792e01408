package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidState    = errors.New("operation not allowed in current job state")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrOperationFailed = errors.New("operation failed")
	ErrReadDatabaseRow = errors.New("failed to read database row")
)

// UpstreamError reports a failure of an external AI provider: network
// errors, non-2xx responses and malformed payloads all collapse into it
// so callers never need provider-specific branches.
type UpstreamError struct {
	Provider  string
	Err       error
	Transient bool // timeouts and 5xx; eligible for retry on submit calls
}

func NewUpstreamError(provider string, err error, transient bool) *UpstreamError {
	return &UpstreamError{Provider: provider, Err: err, Transient: transient}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream provider %s: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsTransientUpstream reports whether err is an UpstreamError worth retrying.
func IsTransientUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Transient
}

// StorageError reports a blob store failure, kept distinct from provider
// failures so a broken upload is never misattributed to an AI service.
type StorageError struct {
	Op  string // upload | replace | delete
	Err error
}

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("blob storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
