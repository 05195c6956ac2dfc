package fetcher

import (
	"net/url"
)

type FetchResult struct {
	url  url.URL
	body []byte
	meta ResponseMeta
}

func (f FetchResult) URL() url.URL {
	return f.url
}

func (f FetchResult) Body() []byte {
	return f.body
}

func (f FetchResult) Code() int {
	return f.meta.statusCode
}

func (f FetchResult) SizeByte() uint64 {
	return f.meta.transferredSizeByte
}

func (f FetchResult) Headers() map[string]string {
	return f.meta.responseHeaders
}

func (f FetchResult) ContentType() string {
	return f.meta.responseHeaders["Content-Type"]
}

type ResponseMeta struct {
	statusCode          int
	transferredSizeByte uint64
	responseHeaders     map[string]string
}

// NewFetchResult builds a FetchResult outside this package, mainly for
// fakes in other packages' tests.
func NewFetchResult(
	url url.URL,
	body []byte,
	statusCode int,
	responseHeaders map[string]string,
) FetchResult {
	return FetchResult{
		url:  url,
		body: body,
		meta: ResponseMeta{
			statusCode:          statusCode,
			transferredSizeByte: uint64(len(body)),
			responseHeaders:     responseHeaders,
		},
	}
}
