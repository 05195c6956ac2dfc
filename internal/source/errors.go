package source

import (
	"fmt"

	"github.com/rohmanhakim/threadwatch/internal/metadata"
	"github.com/rohmanhakim/threadwatch/pkg/failure"
)

type SourceErrorCause string

const (
	ErrCauseInvalidListing SourceErrorCause = "invalid listing"
	ErrCauseFetchFailed    SourceErrorCause = "listing fetch failed"
	ErrCauseParseFailed    SourceErrorCause = "listing parse failed"
)

type SourceError struct {
	Message   string
	Retryable bool
	Cause     SourceErrorCause
	Err       error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source error: %s: %s", e.Cause, e.Message)
}

func (e *SourceError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *SourceError) IsRetryable() bool {
	return e.Retryable
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// mapSourceErrorToMetadataCause is observational only.
func mapSourceErrorToMetadataCause(err *SourceError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseFetchFailed:
		return metadata.CauseNetworkFailure
	case ErrCauseParseFailed:
		return metadata.CauseContentInvalid
	case ErrCauseInvalidListing:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}
