package app

import (
	"errors"
	"fmt"

	"github.com/rohmanhakim/threadwatch/internal/metadata"
	"github.com/rohmanhakim/threadwatch/pkg/failure"
)

var ErrUnsupportedItem = errors.New("unsupported work item")

type AppErrorCause string

const (
	ErrCauseStoreOpenFailed    AppErrorCause = "cache store open failed"
	ErrCauseProviderInvalid    AppErrorCause = "invalid provider"
	ErrCauseListingInvalid     AppErrorCause = "invalid listing"
	ErrCauseWindowOpenFailed   AppErrorCause = "dedup window open failed"
	ErrCauseItemSearchFailed   AppErrorCause = "item search failed"
	ErrCauseStateSaveFailed    AppErrorCause = "state save failed"
	ErrCauseShutdownIncomplete AppErrorCause = "shutdown incomplete"
)

type AppError struct {
	Message   string
	Retryable bool
	Cause     AppErrorCause
	Err       error
}

func (e *AppError) Error() string {
	return fmt.Sprintf("app error: %s: %s", e.Cause, e.Message)
}

func (e *AppError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *AppError) IsRetryable() bool {
	return e.Retryable
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// mapAppErrorToMetadataCause is observational only.
func mapAppErrorToMetadataCause(err *AppError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseStoreOpenFailed:
		return metadata.CauseNetworkFailure
	case ErrCauseStateSaveFailed:
		return metadata.CauseStorageFailure
	case ErrCauseItemSearchFailed:
		return metadata.CauseRetryFailure
	case ErrCauseProviderInvalid, ErrCauseListingInvalid, ErrCauseWindowOpenFailed, ErrCauseShutdownIncomplete:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}
