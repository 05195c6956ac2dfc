package urlutil

import (
	"net/url"
	"strings"
)

// trackingParams never change what a page shows and are dropped.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
}

// Canonicalize maps equivalent spellings of a URL to one form, so that a
// resolved link is counted once however the provider spelled it:
//   - Scheme and host are lowercased
//   - Default ports are omitted (:80 for http, :443 for https)
//   - Trailing slashes are removed from the path, except for root "/"
//   - The fragment is removed
//   - Tracking parameters are removed and the remaining query is sorted
//
// Canonicalize is pure and idempotent.
func Canonicalize(sourceUrl url.URL) url.URL {
	canonical := sourceUrl

	canonical.Scheme = strings.ToLower(canonical.Scheme)
	canonical.Host = strings.ToLower(canonical.Host)

	if host, port := canonical.Hostname(), canonical.Port(); port != "" {
		if (canonical.Scheme == "http" && port == "80") ||
			(canonical.Scheme == "https" && port == "443") {
			canonical.Host = host
		}
	}

	if len(canonical.Path) > 1 {
		canonical.Path = stripTrailingSlash(canonical.Path)
		if canonical.RawPath != "" {
			canonical.RawPath = stripTrailingSlash(canonical.RawPath)
		}
	}

	canonical.Fragment = ""
	canonical.RawFragment = ""

	canonical.ForceQuery = false
	canonical.RawQuery = canonicalQuery(canonical.RawQuery)

	return canonical
}

// CanonicalString is Canonicalize for raw strings. Input that does not parse
// as an absolute URL is returned trimmed but otherwise unchanged.
func CanonicalString(raw string) string {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return raw
	}
	canonical := Canonicalize(*parsed)
	return canonical.String()
}

func canonicalQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return rawQuery
	}
	for key := range values {
		if _, tracking := trackingParams[strings.ToLower(key)]; tracking {
			values.Del(key)
		}
	}
	// Encode sorts by key
	return values.Encode()
}

func stripTrailingSlash(path string) string {
	for len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	return path
}
