package cachestore

import (
	"fmt"

	"github.com/rohmanhakim/threadwatch/internal/metadata"
	"github.com/rohmanhakim/threadwatch/pkg/failure"
)

type StoreErrorCause string

const (
	ErrCauseInvalidArgument StoreErrorCause = "invalid argument"
	ErrCauseBackendIO       StoreErrorCause = "backend i/o failure"
	ErrCauseBackendConnect  StoreErrorCause = "backend connection failure"
	ErrCauseUnknownBackend  StoreErrorCause = "unknown backend"
)

type StoreError struct {
	Message   string
	Retryable bool
	Cause     StoreErrorCause
	Err       error
}

func (e *StoreError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("cachestore error: %s", e.Cause)
	}
	return fmt.Sprintf("cachestore error: %s: %s", e.Cause, e.Message)
}

func (e *StoreError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *StoreError) IsRetryable() bool {
	return e.Retryable
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// MapStoreErrorToMetadataCause is observational only.
func MapStoreErrorToMetadataCause(err *StoreError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseBackendIO:
		return metadata.CauseStorageFailure
	case ErrCauseBackendConnect:
		return metadata.CauseNetworkFailure
	case ErrCauseInvalidArgument, ErrCauseUnknownBackend:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}

// missWithCause reports a backend failure as a miss that still carries the cause.
func missWithCause(op string, err error) error {
	return fmt.Errorf("%w: %w", ErrMiss, &StoreError{
		Message:   fmt.Sprintf("%s: %v", op, err),
		Retryable: true,
		Cause:     ErrCauseBackendIO,
		Err:       err,
	})
}
