package search

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rohmanhakim/threadwatch/internal/metadata"
	"github.com/rohmanhakim/threadwatch/pkg/failure"
)

var (
	// ErrRateLimited is returned by providers that are banned or that were
	// told by the remote engine to slow down.
	ErrRateLimited = errors.New("search provider rate limited")
	// ErrAllProvidersUnavailable matches an AggregateError: no provider
	// could answer the query.
	ErrAllProvidersUnavailable = errors.New("all search providers unavailable")
)

type ScrapeErrorCause string

const (
	ErrCauseInvalidTemplate ScrapeErrorCause = "invalid url template"
	ErrCauseLoadFailed      ScrapeErrorCause = "result page load failed"
	ErrCauseParseFailed     ScrapeErrorCause = "result page parse failed"
)

type ScrapeError struct {
	Message   string
	Retryable bool
	Cause     ScrapeErrorCause
	Err       error
}

func (e *ScrapeError) Error() string {
	return fmt.Sprintf("scrape error: %s: %s", e.Cause, e.Message)
}

func (e *ScrapeError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

func (e *ScrapeError) IsRetryable() bool {
	return e.Retryable
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// ProviderError attributes a failure to one provider.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// AggregateError is returned when every provider was tried or skipped and
// none could answer. It matches ErrAllProvidersUnavailable and unwraps to
// each provider's error.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return ErrAllProvidersUnavailable.Error()
	}
	parts := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("%s: %s", ErrAllProvidersUnavailable, strings.Join(parts, "; "))
}

func (e *AggregateError) Is(target error) bool {
	return target == ErrAllProvidersUnavailable
}

func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// Severity is recoverable: bans lift and the query can be asked again later.
func (e *AggregateError) Severity() failure.Severity {
	return failure.SeverityRecoverable
}

func (e *AggregateError) IsRetryable() bool {
	return true
}

// mapSearchErrorToMetadataCause maps provider failures to the canonical
// metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapSearchErrorToMetadataCause(err error) metadata.ErrorCause {
	if errors.Is(err, ErrRateLimited) {
		return metadata.CausePolicyDisallow
	}
	var scrapeErr *ScrapeError
	if errors.As(err, &scrapeErr) {
		switch scrapeErr.Cause {
		case ErrCauseLoadFailed:
			return metadata.CauseNetworkFailure
		case ErrCauseParseFailed:
			return metadata.CauseContentInvalid
		case ErrCauseInvalidTemplate:
			return metadata.CauseInvariantViolation
		}
	}
	return metadata.CauseUnknown
}
