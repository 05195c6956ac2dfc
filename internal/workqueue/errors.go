package workqueue

import (
	"errors"
	"fmt"

	"github.com/rohmanhakim/threadwatch/pkg/failure"
)

// ErrClosed is returned by Put and Get once the queue is closed.
var ErrClosed = errors.New("work queue closed")

type IdentityErrorCause string

const (
	ErrCauseNilItem         IdentityErrorCause = "nil item"
	ErrCauseConverterFailed IdentityErrorCause = "identity converter failed"
	ErrCauseEmptyIdentity   IdentityErrorCause = "empty identity"
)

// IdentityError reports an item whose identity key could not be computed.
type IdentityError struct {
	Message string
	Cause   IdentityErrorCause
	Err     error
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("workqueue identity error: %s: %s", e.Cause, e.Message)
}

func (e *IdentityError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

func (e *IdentityError) IsRetryable() bool {
	return false
}

func (e *IdentityError) Unwrap() error {
	return e.Err
}
