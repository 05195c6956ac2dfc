package config

import "time"

// Listing is one source page polled every cycle.
type Listing struct {
	// Absolute URL of the listing page
	URL string `json:"url"`
	// CSS selector matching one element per item
	ItemSelector string `json:"itemSelector"`
	// CSS selector of the item link inside the item element. Empty means the
	// item element itself carries the href.
	LinkSelector string `json:"linkSelector,omitempty"`
	// Attribute holding the stable item id. Falls back to a hash of the link.
	IDAttr string `json:"idAttr,omitempty"`
}

// Provider describes one scrape-based search provider.
type Provider struct {
	Name string `json:"name"`
	// Query URL with a {query} placeholder, e.g. https://www.bing.com/search?q={query}
	URLTemplate string `json:"urlTemplate"`
	// CSS selector of result links on the result page
	ResultSelector string `json:"resultSelector"`
	// Attribute holding the result URL. Default: href
	ResultAttr string `json:"resultAttr,omitempty"`
	// Throttle: at most Requests calls per Timeframe
	Requests  int           `json:"requests"`
	Timeframe time.Duration `json:"timeframe"`
	// How long the provider is skipped after signalling rate limiting
	BanTime time.Duration `json:"banTime,omitempty"`
	// Random extra wait before each call
	Jitter time.Duration `json:"jitter,omitempty"`
	// Whether the site hint is appended to the query as " site:<hint>"
	SiteTag bool `json:"siteTag,omitempty"`
}

const (
	BackendMemory = "memory"
	BackendValkey = "valkey"
	BackendSQLite = "sqlite"
)

func defaultProviders() []Provider {
	return []Provider{
		{
			Name:           "yahoo",
			URLTemplate:    "https://search.yahoo.com/search?p={query}",
			ResultSelector: "#web h3 a",
			ResultAttr:     "href",
			Requests:       6,
			Timeframe:      time.Minute,
			BanTime:        3 * time.Hour,
			Jitter:         time.Second,
			SiteTag:        true,
		},
		{
			Name:           "bing",
			URLTemplate:    "https://www.bing.com/search?q={query}",
			ResultSelector: "#b_results h2 a",
			ResultAttr:     "href",
			Requests:       2,
			Timeframe:      time.Minute,
			BanTime:        3 * time.Hour,
			Jitter:         time.Second,
			SiteTag:        true,
		},
	}
}
