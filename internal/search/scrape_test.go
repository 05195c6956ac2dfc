package search_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rohmanhakim/threadwatch/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapLoader struct {
	pages     map[string]string
	err       error
	requested []string
}

func (l *mapLoader) FetchPage(_ context.Context, rawURL string) ([]byte, error) {
	l.requested = append(l.requested, rawURL)
	if l.err != nil {
		return nil, l.err
	}
	page, ok := l.pages[rawURL]
	if !ok {
		return nil, fmt.Errorf("no page for %s", rawURL)
	}
	return []byte(page), nil
}

type limitedErr struct{ status int }

func (e *limitedErr) Error() string     { return fmt.Sprintf("status %d", e.status) }
func (e *limitedErr) RateLimited() bool { return e.status == 429 || e.status == 503 }

const bingResults = `<html><body><ol id="b_results">
<li><h2><a href="https://www.fanfiction.net/s/1/1/">First</a></h2></li>
<li><h2><a href="/relative/result">Relative</a></h2></li>
<li><h2><a href="#anchor">Anchor</a></h2></li>
<li><h2><a href="javascript:void(0)">Script</a></h2></li>
<li><h2><a href="https://archiveofourown.org/works/2">Second</a></h2></li>
</ol></body></html>`

const textResults = `<html><body><div id="web">
<h3><a href="https://r.search.yahoo.com/x">Story</a></h3><div><span>www.fanfiction.net/s/3/1/</span><span>cached</span></div>
<h3><a href="https://r.search.yahoo.com/y">Other</a></h3><div><span>https://archiveofourown.org/works/4</span></div>
</div></body></html>`

func TestScrapeProvider_ExtractsLinks(t *testing.T) {
	loader := &mapLoader{pages: map[string]string{
		"https://www.bing.com/search?q=harry+potter": bingResults,
	}}
	provider, err := search.NewScrapeProvider("https://www.bing.com/search?q={query}", "#b_results h2 a", "href", loader)
	require.NoError(t, err)

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{
			name:  "limit one",
			limit: 1,
			want:  []string{"https://www.fanfiction.net/s/1/1/"},
		},
		{
			name:  "no limit resolves relative links and skips anchors",
			limit: 0,
			want: []string{
				"https://www.fanfiction.net/s/1/1/",
				"https://www.bing.com/relative/result",
				"https://archiveofourown.org/works/2",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := provider.Search(context.Background(), "harry potter", tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, results)
		})
	}
}

func TestScrapeProvider_TextContent(t *testing.T) {
	loader := &mapLoader{pages: map[string]string{
		"https://search.yahoo.com/search?p=story": textResults,
	}}
	provider, err := search.NewScrapeProvider(
		"https://search.yahoo.com/search?p={query}",
		"#web h3 + div span:first-child",
		search.TextContent,
		loader,
	)
	require.NoError(t, err)

	results, err := provider.Search(context.Background(), "story", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"http://www.fanfiction.net/s/3/1/",
		"https://archiveofourown.org/works/4",
	}, results)
}

func TestScrapeProvider_NoResults(t *testing.T) {
	loader := &mapLoader{pages: map[string]string{
		"https://www.bing.com/search?q=nothing": "<html><body><p>No results</p></body></html>",
	}}
	provider, err := search.NewScrapeProvider("https://www.bing.com/search?q={query}", "#b_results h2 a", "", loader)
	require.NoError(t, err)

	results, err := provider.Search(context.Background(), "nothing", 1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestScrapeProvider_LoaderErrors(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantRateLimit bool
		wantCause     search.ScrapeErrorCause
	}{
		{
			name:          "429 maps to rate limited",
			err:           fmt.Errorf("fetch: %w", &limitedErr{status: 429}),
			wantRateLimit: true,
		},
		{
			name:          "503 maps to rate limited",
			err:           &limitedErr{status: 503},
			wantRateLimit: true,
		},
		{
			name:      "404 is a load failure",
			err:       &limitedErr{status: 404},
			wantCause: search.ErrCauseLoadFailed,
		},
		{
			name:      "network error is a load failure",
			err:       errors.New("connection reset"),
			wantCause: search.ErrCauseLoadFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := search.NewScrapeProvider("https://www.bing.com/search?q={query}", "a", "href", &mapLoader{err: tt.err})
			require.NoError(t, err)

			_, err = provider.Search(context.Background(), "q", 1)
			require.Error(t, err)
			assert.Equal(t, tt.wantRateLimit, errors.Is(err, search.ErrRateLimited))

			if !tt.wantRateLimit {
				var scrapeErr *search.ScrapeError
				require.True(t, errors.As(err, &scrapeErr))
				assert.Equal(t, tt.wantCause, scrapeErr.Cause)
				assert.True(t, errors.Is(err, tt.err))
			}
		})
	}
}

func TestNewScrapeProvider_RejectsTemplateWithoutPlaceholder(t *testing.T) {
	_, err := search.NewScrapeProvider("https://www.bing.com/search?q=", "a", "href", &mapLoader{})
	require.Error(t, err)

	var scrapeErr *search.ScrapeError
	require.True(t, errors.As(err, &scrapeErr))
	assert.Equal(t, search.ErrCauseInvalidTemplate, scrapeErr.Cause)
}

func TestScrapeProvider_QueryURLEscapes(t *testing.T) {
	provider, err := search.NewScrapeProvider("https://www.bing.com/search?q={query}", "a", "href", &mapLoader{})
	require.NoError(t, err)
	assert.Equal(t, "https://www.bing.com/search?q=a+b+site%3Aexample.com", provider.QueryURL("a b site:example.com"))
}
