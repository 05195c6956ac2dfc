package dedup

import (
	"fmt"

	"github.com/rohmanhakim/threadwatch/internal/metadata"
	"github.com/rohmanhakim/threadwatch/pkg/failure"
)

type DedupErrorCause string

const (
	ErrCauseInvalidDepth DedupErrorCause = "invalid depth"
	ErrCauseReadFailed   DedupErrorCause = "snapshot read failed"
	ErrCauseCorruptLine  DedupErrorCause = "corrupt snapshot line"
	ErrCauseWriteFailed  DedupErrorCause = "snapshot write failed"
	ErrCauseUnsavableID  DedupErrorCause = "unsavable id"
)

type DedupError struct {
	Message   string
	Retryable bool
	Cause     DedupErrorCause
	// Lines lists the 1-based line numbers skipped while loading.
	Lines []int
	Err   error
}

func (e *DedupError) Error() string {
	return fmt.Sprintf("dedup error: %s: %s", e.Cause, e.Message)
}

func (e *DedupError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *DedupError) IsRetryable() bool {
	return e.Retryable
}

func (e *DedupError) Unwrap() error {
	return e.Err
}

// mapDedupErrorToMetadataCause is observational only.
func mapDedupErrorToMetadataCause(err *DedupError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseReadFailed, ErrCauseWriteFailed:
		return metadata.CauseStorageFailure
	case ErrCauseCorruptLine, ErrCauseUnsavableID:
		return metadata.CauseContentInvalid
	case ErrCauseInvalidDepth:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}
