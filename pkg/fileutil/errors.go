package fileutil

import (
	"fmt"

	"github.com/rohmanhakim/threadwatch/pkg/failure"
)

type FileErrorCause string

const (
	ErrCausePathError   FileErrorCause = "path error"
	ErrCauseWriteError  FileErrorCause = "write error"
	ErrCauseRenameError FileErrorCause = "rename error"
)

// FileError wraps a filesystem failure. Write and rename failures are
// retryable since the next snapshot attempt rewrites the whole file.
type FileError struct {
	Path      string
	Retryable bool
	Cause     FileErrorCause
	Err       error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file error: %s: %s: %v", e.Cause, e.Path, e.Err)
}

func (e *FileError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *FileError) IsRetryable() bool {
	return e.Retryable
}

func (e *FileError) Unwrap() error {
	return e.Err
}
