package stats

import (
	"fmt"

	"github.com/rohmanhakim/threadwatch/internal/metadata"
	"github.com/rohmanhakim/threadwatch/pkg/failure"
)

type StatsErrorCause string

const (
	ErrCauseReadFailed         StatsErrorCause = "stats read failed"
	ErrCauseCorruptFile        StatsErrorCause = "corrupt stats file"
	ErrCauseUnsupportedVersion StatsErrorCause = "unsupported stats version"
	ErrCauseWriteFailed        StatsErrorCause = "stats write failed"
)

type StatsError struct {
	Message   string
	Retryable bool
	Cause     StatsErrorCause
	Err       error
}

func (e *StatsError) Error() string {
	return fmt.Sprintf("stats error: %s: %s", e.Cause, e.Message)
}

func (e *StatsError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *StatsError) IsRetryable() bool {
	return e.Retryable
}

func (e *StatsError) Unwrap() error {
	return e.Err
}

// mapStatsErrorToMetadataCause is observational only.
func mapStatsErrorToMetadataCause(err *StatsError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseReadFailed, ErrCauseWriteFailed:
		return metadata.CauseStorageFailure
	case ErrCauseCorruptFile, ErrCauseUnsupportedVersion:
		return metadata.CauseContentInvalid
	default:
		return metadata.CauseUnknown
	}
}
