package poller

import (
	"errors"
	"fmt"

	"github.com/rohmanhakim/threadwatch/internal/metadata"
	"github.com/rohmanhakim/threadwatch/pkg/failure"
)

var (
	ErrAlreadyRunning  = errors.New("poller already running")
	ErrShutdownTimeout = errors.New("poller shutdown timed out")
)

type PollerErrorCause string

const (
	ErrCauseFetcherFailed   PollerErrorCause = "fetcher failed"
	ErrCauseFetcherPanic    PollerErrorCause = "fetcher panicked"
	ErrCauseAdmissionFailed PollerErrorCause = "admission failed"
	ErrCauseHandlerFailed   PollerErrorCause = "handler failed"
	ErrCauseHandlerPanic    PollerErrorCause = "handler panicked"
)

type PollerError struct {
	Message   string
	Retryable bool
	Cause     PollerErrorCause
	Err       error
}

func (e *PollerError) Error() string {
	return fmt.Sprintf("poller error: %s: %s", e.Cause, e.Message)
}

func (e *PollerError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *PollerError) IsRetryable() bool {
	return e.Retryable
}

func (e *PollerError) Unwrap() error {
	return e.Err
}

// mapPollerErrorToMetadataCause is observational only.
func mapPollerErrorToMetadataCause(err *PollerError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseFetcherPanic, ErrCauseHandlerPanic, ErrCauseAdmissionFailed:
		return metadata.CauseInvariantViolation
	case ErrCauseFetcherFailed:
		return metadata.CauseNetworkFailure
	default:
		return metadata.CauseUnknown
	}
}
