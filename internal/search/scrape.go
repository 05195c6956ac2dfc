package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TextContent as result attribute takes the element text instead of an
// attribute value. Engines that print the target URL as text use it.
const TextContent = "#text"

const queryPlaceholder = "{query}"

// PageLoader loads a result page. requestcache.RequestCache satisfies it so
// result pages are cached.
type PageLoader interface {
	FetchPage(ctx context.Context, rawURL string) ([]byte, error)
}

// ScrapeProvider is a Backend that loads an engine's HTML result page and
// extracts result links with a CSS selector.
type ScrapeProvider struct {
	urlTemplate    string
	resultSelector string
	resultAttr     string
	loader         PageLoader
}

func NewScrapeProvider(urlTemplate, resultSelector, resultAttr string, loader PageLoader) (*ScrapeProvider, error) {
	if !strings.Contains(urlTemplate, queryPlaceholder) {
		return nil, &ScrapeError{
			Message: fmt.Sprintf("template %q has no %s placeholder", urlTemplate, queryPlaceholder),
			Cause:   ErrCauseInvalidTemplate,
		}
	}
	if _, err := url.Parse(strings.ReplaceAll(urlTemplate, queryPlaceholder, "q")); err != nil {
		return nil, &ScrapeError{
			Message: err.Error(),
			Cause:   ErrCauseInvalidTemplate,
			Err:     err,
		}
	}
	if resultAttr == "" {
		resultAttr = "href"
	}
	return &ScrapeProvider{
		urlTemplate:    urlTemplate,
		resultSelector: resultSelector,
		resultAttr:     resultAttr,
		loader:         loader,
	}, nil
}

// QueryURL renders the template for query.
func (s *ScrapeProvider) QueryURL(query string) string {
	return strings.ReplaceAll(s.urlTemplate, queryPlaceholder, url.QueryEscape(query))
}

func (s *ScrapeProvider) Search(ctx context.Context, query string, limit int) ([]string, error) {
	pageURL := s.QueryURL(query)
	body, err := s.loader.FetchPage(ctx, pageURL)
	if err != nil {
		if isRateLimitSignal(err) {
			return nil, fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return nil, &ScrapeError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseLoadFailed,
			Err:       err,
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &ScrapeError{
			Message: err.Error(),
			Cause:   ErrCauseParseFailed,
			Err:     err,
		}
	}

	base, _ := url.Parse(pageURL)
	results := make([]string, 0)
	doc.Find(s.resultSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if link := s.resolve(base, sel); link != "" {
			results = append(results, link)
		}
		return limit <= 0 || len(results) < limit
	})
	return results, nil
}

func (s *ScrapeProvider) resolve(base *url.URL, sel *goquery.Selection) string {
	if s.resultAttr == TextContent {
		text := strings.TrimSpace(sel.Text())
		if text == "" {
			return ""
		}
		if !strings.Contains(text, "://") {
			text = "http://" + text
		}
		return text
	}

	raw, ok := sel.Attr(s.resultAttr)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" || strings.HasPrefix(raw, "#") {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}

// isRateLimitSignal detects 429/503 style failures from the loader without
// depending on its error types.
func isRateLimitSignal(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var limited interface{ RateLimited() bool }
	if errors.As(err, &limited) {
		return limited.RateLimited()
	}
	return false
}
