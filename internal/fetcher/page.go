package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rohmanhakim/threadwatch/internal/metadata"
	"github.com/rohmanhakim/threadwatch/pkg/failure"
	"github.com/rohmanhakim/threadwatch/pkg/limiter"
	"github.com/rohmanhakim/threadwatch/pkg/retry"
	"github.com/rohmanhakim/threadwatch/pkg/timeutil"
	"golang.org/x/net/html/charset"
)

/*
Responsibilities

- Perform HTTP GET requests with browser-like headers and timeouts
- Wait for the per-host politeness delay before each attempt
- Retry transient failures with backoff
- Classify responses
- Decode HTML bodies to UTF-8

Fetch Semantics

- Only successful text responses are returned
- 429 and 503 are rate-limit signals: the host backs off and the error is
  returned without retrying so callers can fail over
- All fetches are recorded with metadata

The fetcher never parses content; it only returns bytes and metadata.
*/

const maxBodyBytes = 10 << 20

type PageFetcher struct {
	metadataSink metadata.MetadataSink
	httpClient   *http.Client
	hostLimiter  limiter.HostLimiter
	retryParam   retry.RetryParam
	userAgent    string
	clock        timeutil.Clock
}

// NewPageFetcher builds a fetcher. A nil httpClient uses a client with a 10s
// timeout, a nil hostLimiter disables politeness delays and a nil clock uses
// the system clock.
func NewPageFetcher(
	metadataSink metadata.MetadataSink,
	httpClient *http.Client,
	hostLimiter limiter.HostLimiter,
	retryParam retry.RetryParam,
	userAgent string,
	clock timeutil.Clock,
) *PageFetcher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if retryParam.Clock == nil {
		retryParam.Clock = clock
	}
	return &PageFetcher{
		metadataSink: metadataSink,
		httpClient:   httpClient,
		hostLimiter:  hostLimiter,
		retryParam:   retryParam,
		userAgent:    userAgent,
		clock:        clock,
	}
}

func (p *PageFetcher) Fetch(ctx context.Context, rawURL string) (FetchResult, failure.ClassifiedError) {
	callerMethod := "PageFetcher.Fetch"

	fetchUrl, err := url.Parse(rawURL)
	if err != nil || (fetchUrl.Scheme != "http" && fetchUrl.Scheme != "https") || fetchUrl.Host == "" {
		fetchErr := &FetchError{
			Message:   fmt.Sprintf("not an absolute http(s) url: %q", rawURL),
			Retryable: false,
			Cause:     ErrCauseInvalidURL,
		}
		p.recordFetchError(callerMethod, rawURL, fetchErr)
		return FetchResult{}, fetchErr
	}

	startTime := p.clock.Now()
	outcome := retry.Retry(ctx, p.retryParam, func() (FetchResult, failure.ClassifiedError) {
		return p.politeFetch(ctx, *fetchUrl)
	})
	duration := p.clock.Now().Sub(startTime)

	var statusCode int
	var contentType string
	if outcome.IsSuccess() {
		statusCode = outcome.Value().Code()
		contentType = outcome.Value().ContentType()
	} else {
		var fetchErr *FetchError
		if errors.As(outcome.Err(), &fetchErr) {
			statusCode = fetchErr.StatusCode
		}
	}
	p.metadataSink.RecordFetch(rawURL, statusCode, duration, contentType, max(outcome.Attempts()-1, 0))

	if outcome.IsFailure() {
		if errors.Is(outcome.Err(), &retry.RetryError{}) {
			p.recordRetryError(callerMethod, rawURL, outcome.Err())
		} else {
			p.recordFetchError(callerMethod, rawURL, outcome.Err())
		}
		return FetchResult{}, outcome.Err()
	}
	return outcome.Value(), nil
}

// politeFetch is one attempt: wait for the host, fetch, update backoff.
func (p *PageFetcher) politeFetch(ctx context.Context, fetchUrl url.URL) (FetchResult, failure.ClassifiedError) {
	host := fetchUrl.Hostname()
	if p.hostLimiter != nil {
		if err := p.clock.Sleep(ctx, p.hostLimiter.ResolveDelay(host)); err != nil {
			return FetchResult{}, &FetchError{
				Message:   err.Error(),
				Retryable: false,
				Cause:     ErrCauseCancelled,
			}
		}
		p.hostLimiter.MarkLastFetchAsNow(host)
	}

	result, fetchErr := p.performFetch(ctx, fetchUrl)

	if p.hostLimiter != nil {
		switch {
		case fetchErr == nil:
			p.hostLimiter.ResetBackoff(host)
		case fetchErr.RateLimited() || fetchErr.Cause == ErrCauseRequest5xx:
			p.hostLimiter.Backoff(host)
		}
	}
	if fetchErr != nil {
		return FetchResult{}, fetchErr
	}
	return result, nil
}

func (p *PageFetcher) performFetch(ctx context.Context, fetchUrl url.URL) (FetchResult, *FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchUrl.String(), nil)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("failed to create request: %v", err),
			Retryable: false,
			Cause:     ErrCauseInvalidURL,
		}
	}
	for key, value := range requestHeaders(p.userAgent) {
		req.Header.Set(key, value)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return FetchResult{}, &FetchError{
				Message:   err.Error(),
				Retryable: false,
				Cause:     ErrCauseCancelled,
			}
		}
		// Network/transport errors are retryable
		return FetchResult{}, &FetchError{
			Message:   fmt.Sprintf("request failed: %v", err),
			Retryable: true,
			Cause:     ErrCauseNetworkFailure,
		}
	}
	defer resp.Body.Close()

	if fetchErr := classifyStatus(resp.StatusCode); fetchErr != nil {
		return FetchResult{}, fetchErr
	}

	contentType := resp.Header.Get("Content-Type")
	if !isTextContent(contentType) {
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("unsupported content type: %s", contentType),
			Retryable:  false,
			Cause:      ErrCauseContentTypeInvalid,
			StatusCode: resp.StatusCode,
		}
	}

	body, err := readBody(resp.Body, contentType)
	if err != nil {
		return FetchResult{}, &FetchError{
			Message:    fmt.Sprintf("failed to read response body: %v", err),
			Retryable:  true,
			Cause:      ErrCauseReadResponseBodyError,
			StatusCode: resp.StatusCode,
		}
	}

	responseHeaders := make(map[string]string)
	for key, values := range resp.Header {
		if len(values) > 0 {
			responseHeaders[key] = values[0]
		}
	}

	return NewFetchResult(fetchUrl, body, resp.StatusCode, responseHeaders), nil
}

func classifyStatus(statusCode int) *FetchError {
	switch {
	case statusCode == http.StatusServiceUnavailable:
		return &FetchError{
			Message:    "service unavailable (503)",
			Retryable:  false,
			Cause:      ErrCauseServiceUnavailable,
			StatusCode: statusCode,
		}
	case statusCode >= 500:
		return &FetchError{
			Message:    fmt.Sprintf("server error: %d", statusCode),
			Retryable:  true,
			Cause:      ErrCauseRequest5xx,
			StatusCode: statusCode,
		}
	case statusCode == http.StatusTooManyRequests:
		return &FetchError{
			Message:    "rate limited (429)",
			Retryable:  false,
			Cause:      ErrCauseRequestTooMany,
			StatusCode: statusCode,
		}
	case statusCode == http.StatusForbidden:
		return &FetchError{
			Message:    "access forbidden (403)",
			Retryable:  false,
			Cause:      ErrCauseRequestPageForbidden,
			StatusCode: statusCode,
		}
	case statusCode >= 400:
		return &FetchError{
			Message:    fmt.Sprintf("client error: %d", statusCode),
			Retryable:  false,
			Cause:      ErrCauseRequestClientError,
			StatusCode: statusCode,
		}
	case statusCode >= 300:
		// http.Client follows redirects; reaching here means the limit was hit
		return &FetchError{
			Message:    fmt.Sprintf("redirect error: %d", statusCode),
			Retryable:  false,
			Cause:      ErrCauseRedirectLimitExceeded,
			StatusCode: statusCode,
		}
	}
	return nil
}

func (p *PageFetcher) recordFetchError(callerMethod string, rawURL string, err failure.ClassifiedError) {
	cause := metadata.CauseUnknown
	var fetchError *FetchError
	if errors.As(err, &fetchError) {
		cause = mapFetchErrorToMetadataCause(fetchError)
	}
	p.metadataSink.RecordError(
		p.clock.Now(),
		"fetcher",
		callerMethod,
		cause,
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, rawURL),
		},
	)
}

func (p *PageFetcher) recordRetryError(callerMethod string, rawURL string, err failure.ClassifiedError) {
	p.metadataSink.RecordError(
		p.clock.Now(),
		"fetcher",
		callerMethod,
		metadata.CauseRetryFailure,
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, rawURL),
		},
	)
}

func isTextContent(contentType string) bool {
	if contentType == "" {
		return true
	}
	contentType = strings.ToLower(contentType)
	return strings.HasPrefix(contentType, "text/") ||
		strings.Contains(contentType, "application/xhtml") ||
		strings.Contains(contentType, "application/xml") ||
		strings.Contains(contentType, "application/json")
}

// isHTMLContent reports whether the body may declare its charset in a meta
// tag. An empty content type is sniffed.
func isHTMLContent(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return contentType == "" || strings.Contains(contentType, "html")
}

// readBody returns the body as UTF-8. HTML in another encoding is converted
// using the Content-Type charset or the document's own meta declaration.
func readBody(r io.Reader, contentType string) ([]byte, error) {
	limited := io.LimitReader(r, maxBodyBytes)
	if !isHTMLContent(contentType) {
		return io.ReadAll(limited)
	}
	utf8Reader, err := charset.NewReader(limited, contentType)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(utf8Reader)
}

func requestHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
		"DNT":             "1",
	}
}
