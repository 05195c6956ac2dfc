package fetcher

import (
	"context"

	"github.com/rohmanhakim/threadwatch/pkg/failure"
)

// Fetcher loads one page. Implementations classify every failure.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (FetchResult, failure.ClassifiedError)
}
