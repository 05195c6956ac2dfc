package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rohmanhakim/threadwatch/internal/build"
)

type Config struct {
	//===============
	//  Sources
	//===============
	// Listing pages scanned every poll cycle
	listings []Listing
	// Time between the start of two poll cycles
	pollInterval time.Duration
	// How long shutdown waits for the poll and consumer loops
	shutdownTimeout time.Duration

	//===============
	// Search
	//===============
	// Providers in registration order; earlier providers win ties
	providers []Provider
	// Site hint passed to every search, e.g. fanfiction.net
	searchSite string

	//===============
	// Cache
	//===============
	// One of memory, valkey, sqlite
	cacheBackend string
	// Maximum number of entries kept by the memory and sqlite backends
	cacheSizeLimit int
	// Lifetime of a cached page or search result. 0 means forever
	cacheTTL time.Duration
	// Whether a cache hit restarts the entry's lifetime
	cacheRefreshOnHit bool
	// Keys longer than this are hashed before reaching a remote backend
	cacheMaxKeyLength int
	valkeyAddress     string
	valkeyPassword    string
	valkeyDB          int
	valkeyKeyPrefix   string
	sqlitePath        string

	//===============
	// State
	//===============
	// File holding the dedup window snapshot
	stateFile string
	// Number of poll cycles an item stays suppressed after being handled
	dedupDepth int
	// Save the dedup snapshot every N additions. 0 saves only on shutdown
	snapshotEvery int
	// File holding the resolved-URL counters
	statsFile string
	// Save the counters every N increments. 0 saves only on shutdown
	statsAutosaveEvery int

	//===============
	// Politeness
	//===============
	// Minimum, fixed waiting time between two page requests to the same host.
	baseDelay time.Duration
	// Randomized variation added on top of the base delay.
	jitter time.Duration
	// Controls the random number generator
	randomSeed int64
	// maximum attempt during retry
	maxAttempt int
	// initial delay for backoff
	backoffInitialDuration time.Duration
	// multiplier during exponential backoff
	backoffMultiplier float64
	// capped maximum delay for backoff to stop exponential multiplication
	backoffMaxDuration time.Duration

	//===============
	// Fetch
	//===============
	// Maximum time of a single fetch request
	timeout time.Duration
	// User agent that will be used in the request header. In raw string
	userAgent string

	//===============
	// Output
	//===============
	// Whether state files are left untouched
	dryRun bool
	// zerolog level name: debug, info, warn, error
	logLevel string
}

type configDTO struct {
	Listings               []Listing     `json:"listings"`
	PollInterval           time.Duration `json:"pollInterval,omitempty"`
	ShutdownTimeout        time.Duration `json:"shutdownTimeout,omitempty"`
	Providers              []Provider    `json:"providers,omitempty"`
	SearchSite             string        `json:"searchSite,omitempty"`
	CacheBackend           string        `json:"cacheBackend,omitempty"`
	CacheSizeLimit         int           `json:"cacheSizeLimit,omitempty"`
	CacheTTL               time.Duration `json:"cacheTtl,omitempty"`
	CacheRefreshOnHit      *bool         `json:"cacheRefreshOnHit,omitempty"`
	CacheMaxKeyLength      int           `json:"cacheMaxKeyLength,omitempty"`
	ValkeyAddress          string        `json:"valkeyAddress,omitempty"`
	ValkeyPassword         string        `json:"valkeyPassword,omitempty"`
	ValkeyDB               int           `json:"valkeyDb,omitempty"`
	ValkeyKeyPrefix        string        `json:"valkeyKeyPrefix,omitempty"`
	SQLitePath             string        `json:"sqlitePath,omitempty"`
	StateFile              string        `json:"stateFile,omitempty"`
	DedupDepth             int           `json:"dedupDepth,omitempty"`
	SnapshotEvery          *int          `json:"snapshotEvery,omitempty"`
	StatsFile              string        `json:"statsFile,omitempty"`
	StatsAutosaveEvery     *int          `json:"statsAutosaveEvery,omitempty"`
	BaseDelay              time.Duration `json:"baseDelay,omitempty"`
	Jitter                 time.Duration `json:"jitter,omitempty"`
	RandomSeed             int64         `json:"randomSeed,omitempty"`
	MaxAttempt             int           `json:"maxAttempt,omitempty"`
	BackoffInitialDuration time.Duration `json:"backoffInitialDuration,omitempty"`
	BackoffMultiplier      float64       `json:"backoffMultiplier,omitempty"`
	BackoffMaxDuration     time.Duration `json:"backoffMaxDuration,omitempty"`
	Timeout                time.Duration `json:"timeout,omitempty"`
	UserAgent              string        `json:"userAgent,omitempty"`
	DryRun                 bool          `json:"dryRun,omitempty"`
	LogLevel               string        `json:"logLevel,omitempty"`
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	cfg := WithDefault(dto.Listings)

	// only override if a non-zero value is provided
	if dto.PollInterval != 0 {
		cfg.pollInterval = dto.PollInterval
	}
	if dto.ShutdownTimeout != 0 {
		cfg.shutdownTimeout = dto.ShutdownTimeout
	}
	if len(dto.Providers) > 0 {
		cfg.providers = dto.Providers
	}
	if dto.SearchSite != "" {
		cfg.searchSite = dto.SearchSite
	}
	if dto.CacheBackend != "" {
		cfg.cacheBackend = dto.CacheBackend
	}
	if dto.CacheSizeLimit != 0 {
		cfg.cacheSizeLimit = dto.CacheSizeLimit
	}
	if dto.CacheTTL != 0 {
		cfg.cacheTTL = dto.CacheTTL
	}
	if dto.CacheRefreshOnHit != nil {
		cfg.cacheRefreshOnHit = *dto.CacheRefreshOnHit
	}
	if dto.CacheMaxKeyLength != 0 {
		cfg.cacheMaxKeyLength = dto.CacheMaxKeyLength
	}
	if dto.ValkeyAddress != "" {
		cfg.valkeyAddress = dto.ValkeyAddress
	}
	if dto.ValkeyPassword != "" {
		cfg.valkeyPassword = dto.ValkeyPassword
	}
	if dto.ValkeyDB != 0 {
		cfg.valkeyDB = dto.ValkeyDB
	}
	if dto.ValkeyKeyPrefix != "" {
		cfg.valkeyKeyPrefix = dto.ValkeyKeyPrefix
	}
	if dto.SQLitePath != "" {
		cfg.sqlitePath = dto.SQLitePath
	}
	if dto.StateFile != "" {
		cfg.stateFile = dto.StateFile
	}
	if dto.DedupDepth != 0 {
		cfg.dedupDepth = dto.DedupDepth
	}
	// 0 is meaningful for both autosave intervals
	if dto.SnapshotEvery != nil {
		cfg.snapshotEvery = *dto.SnapshotEvery
	}
	if dto.StatsFile != "" {
		cfg.statsFile = dto.StatsFile
	}
	if dto.StatsAutosaveEvery != nil {
		cfg.statsAutosaveEvery = *dto.StatsAutosaveEvery
	}
	if dto.BaseDelay != 0 {
		cfg.baseDelay = dto.BaseDelay
	}
	if dto.Jitter != 0 {
		cfg.jitter = dto.Jitter
	}
	if dto.RandomSeed != 0 {
		cfg.randomSeed = dto.RandomSeed
	}
	if dto.MaxAttempt != 0 {
		cfg.maxAttempt = dto.MaxAttempt
	}
	if dto.BackoffInitialDuration != 0 {
		cfg.backoffInitialDuration = dto.BackoffInitialDuration
	}
	if dto.BackoffMultiplier != 0 {
		cfg.backoffMultiplier = dto.BackoffMultiplier
	}
	if dto.BackoffMaxDuration != 0 {
		cfg.backoffMaxDuration = dto.BackoffMaxDuration
	}
	if dto.Timeout != 0 {
		cfg.timeout = dto.Timeout
	}
	if dto.UserAgent != "" {
		cfg.userAgent = dto.UserAgent
	}
	cfg.dryRun = dto.DryRun
	if dto.LogLevel != "" {
		cfg.logLevel = dto.LogLevel
	}

	return cfg.Build()
}

func WithConfigFile(path string) (Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}

	configContent, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}

	cfgDTO := configDTO{}
	err = json.Unmarshal(configContent, &cfgDTO)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	return newConfigFromDTO(cfgDTO)
}

// WithDefault creates a new Config with the provided listings and default values for all other fields.
// listings is mandatory; Build returns an error if it is empty.
func WithDefault(listings []Listing) *Config {
	defaultConfig := Config{
		listings:               listings,
		pollInterval:           10 * time.Second,
		shutdownTimeout:        30 * time.Second,
		providers:              defaultProviders(),
		searchSite:             "",
		cacheBackend:           BackendMemory,
		cacheSizeLimit:         10000,
		cacheTTL:               30 * time.Minute,
		cacheRefreshOnHit:      true,
		cacheMaxKeyLength:      200,
		valkeyAddress:          "localhost:6379",
		valkeyKeyPrefix:        "threadwatch",
		sqlitePath:             "threadwatch-cache.db",
		stateFile:              "seen.txt",
		dedupDepth:             4,
		snapshotEvery:          10,
		statsFile:              "stats.json",
		statsAutosaveEvery:     100,
		baseDelay:              time.Second,
		jitter:                 500 * time.Millisecond,
		randomSeed:             time.Now().UnixNano(),
		maxAttempt:             3,
		backoffInitialDuration: 100 * time.Millisecond,
		backoffMultiplier:      2.0,
		backoffMaxDuration:     10 * time.Second,
		timeout:                10 * time.Second,
		userAgent:              build.UserAgent(),
		dryRun:                 false,
		logLevel:               "info",
	}
	return &defaultConfig
}

func (c *Config) WithListings(listings []Listing) *Config {
	c.listings = listings
	return c
}

func (c *Config) WithPollInterval(interval time.Duration) *Config {
	c.pollInterval = interval
	return c
}

func (c *Config) WithShutdownTimeout(timeout time.Duration) *Config {
	c.shutdownTimeout = timeout
	return c
}

func (c *Config) WithProviders(providers []Provider) *Config {
	c.providers = providers
	return c
}

func (c *Config) WithSearchSite(site string) *Config {
	c.searchSite = site
	return c
}

func (c *Config) WithCacheBackend(backend string) *Config {
	c.cacheBackend = backend
	return c
}

func (c *Config) WithCacheSizeLimit(limit int) *Config {
	c.cacheSizeLimit = limit
	return c
}

func (c *Config) WithCacheTTL(ttl time.Duration) *Config {
	c.cacheTTL = ttl
	return c
}

func (c *Config) WithCacheRefreshOnHit(refresh bool) *Config {
	c.cacheRefreshOnHit = refresh
	return c
}

func (c *Config) WithCacheMaxKeyLength(length int) *Config {
	c.cacheMaxKeyLength = length
	return c
}

func (c *Config) WithValkey(address, password string, db int) *Config {
	c.valkeyAddress = address
	c.valkeyPassword = password
	c.valkeyDB = db
	return c
}

func (c *Config) WithValkeyKeyPrefix(prefix string) *Config {
	c.valkeyKeyPrefix = prefix
	return c
}

func (c *Config) WithSQLitePath(path string) *Config {
	c.sqlitePath = path
	return c
}

func (c *Config) WithStateFile(path string) *Config {
	c.stateFile = path
	return c
}

func (c *Config) WithDedupDepth(depth int) *Config {
	c.dedupDepth = depth
	return c
}

func (c *Config) WithSnapshotEvery(n int) *Config {
	c.snapshotEvery = n
	return c
}

func (c *Config) WithStatsFile(path string) *Config {
	c.statsFile = path
	return c
}

func (c *Config) WithStatsAutosaveEvery(n int) *Config {
	c.statsAutosaveEvery = n
	return c
}

func (c *Config) WithBaseDelay(delay time.Duration) *Config {
	c.baseDelay = delay
	return c
}

func (c *Config) WithJitter(jitter time.Duration) *Config {
	c.jitter = jitter
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

func (c *Config) WithMaxAttempt(attempts int) *Config {
	c.maxAttempt = attempts
	return c
}

func (c *Config) WithBackoffInitialDuration(duration time.Duration) *Config {
	c.backoffInitialDuration = duration
	return c
}

func (c *Config) WithBackoffMultiplier(multiplier float64) *Config {
	c.backoffMultiplier = multiplier
	return c
}

func (c *Config) WithBackoffMaxDuration(duration time.Duration) *Config {
	c.backoffMaxDuration = duration
	return c
}

func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.timeout = timeout
	return c
}

func (c *Config) WithUserAgent(agent string) *Config {
	c.userAgent = agent
	return c
}

func (c *Config) WithDryRun(dryRun bool) *Config {
	c.dryRun = dryRun
	return c
}

func (c *Config) WithLogLevel(level string) *Config {
	c.logLevel = level
	return c
}

func (c *Config) Build() (Config, error) {
	if len(c.listings) == 0 {
		return Config{}, fmt.Errorf("%w: listings cannot be empty", ErrInvalidConfig)
	}
	for i, listing := range c.listings {
		u, err := url.Parse(listing.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return Config{}, fmt.Errorf("%w: listings[%d].url must be an absolute http(s) URL", ErrInvalidConfig, i)
		}
		if strings.TrimSpace(listing.ItemSelector) == "" {
			return Config{}, fmt.Errorf("%w: listings[%d].itemSelector cannot be empty", ErrInvalidConfig, i)
		}
	}
	if c.pollInterval <= 0 {
		return Config{}, fmt.Errorf("%w: pollInterval must be positive", ErrInvalidConfig)
	}

	providers := make([]Provider, len(c.providers))
	copy(providers, c.providers)
	names := make(map[string]struct{}, len(providers))
	for i, p := range providers {
		if p.Name == "" {
			return Config{}, fmt.Errorf("%w: providers[%d].name cannot be empty", ErrInvalidConfig, i)
		}
		if _, dup := names[p.Name]; dup {
			return Config{}, fmt.Errorf("%w: duplicate provider %q", ErrInvalidConfig, p.Name)
		}
		names[p.Name] = struct{}{}
		if !strings.Contains(p.URLTemplate, "{query}") {
			return Config{}, fmt.Errorf("%w: provider %q urlTemplate needs a {query} placeholder", ErrInvalidConfig, p.Name)
		}
		if p.ResultSelector == "" {
			return Config{}, fmt.Errorf("%w: provider %q resultSelector cannot be empty", ErrInvalidConfig, p.Name)
		}
		if p.Requests < 0 || p.Timeframe < 0 || p.BanTime < 0 || p.Jitter < 0 {
			return Config{}, fmt.Errorf("%w: provider %q has negative limits", ErrInvalidConfig, p.Name)
		}
		if p.ResultAttr == "" {
			providers[i].ResultAttr = "href"
		}
	}
	c.providers = providers

	switch c.cacheBackend {
	case BackendMemory, BackendSQLite:
		if c.cacheSizeLimit < 1 {
			return Config{}, fmt.Errorf("%w: cacheSizeLimit must be at least 1", ErrInvalidConfig)
		}
	case BackendValkey:
		if c.valkeyAddress == "" {
			return Config{}, fmt.Errorf("%w: valkeyAddress cannot be empty", ErrInvalidConfig)
		}
	default:
		return Config{}, fmt.Errorf("%w: unknown cacheBackend %q", ErrInvalidConfig, c.cacheBackend)
	}
	if c.cacheTTL < 0 {
		return Config{}, fmt.Errorf("%w: cacheTtl cannot be negative", ErrInvalidConfig)
	}
	if c.dedupDepth < 1 {
		return Config{}, fmt.Errorf("%w: dedupDepth must be at least 1", ErrInvalidConfig)
	}
	if c.snapshotEvery < 0 || c.statsAutosaveEvery < 0 {
		return Config{}, fmt.Errorf("%w: autosave intervals cannot be negative", ErrInvalidConfig)
	}
	if c.maxAttempt < 1 {
		return Config{}, fmt.Errorf("%w: maxAttempt must be at least 1", ErrInvalidConfig)
	}
	return *c, nil
}

func (c Config) Listings() []Listing {
	listings := make([]Listing, len(c.listings))
	copy(listings, c.listings)
	return listings
}

func (c Config) PollInterval() time.Duration {
	return c.pollInterval
}

func (c Config) ShutdownTimeout() time.Duration {
	return c.shutdownTimeout
}

func (c Config) Providers() []Provider {
	providers := make([]Provider, len(c.providers))
	copy(providers, c.providers)
	return providers
}

func (c Config) SearchSite() string {
	return c.searchSite
}

func (c Config) CacheBackend() string {
	return c.cacheBackend
}

func (c Config) CacheSizeLimit() int {
	return c.cacheSizeLimit
}

func (c Config) CacheTTL() time.Duration {
	return c.cacheTTL
}

func (c Config) CacheRefreshOnHit() bool {
	return c.cacheRefreshOnHit
}

func (c Config) CacheMaxKeyLength() int {
	return c.cacheMaxKeyLength
}

func (c Config) ValkeyAddress() string {
	return c.valkeyAddress
}

func (c Config) ValkeyPassword() string {
	return c.valkeyPassword
}

func (c Config) ValkeyDB() int {
	return c.valkeyDB
}

func (c Config) ValkeyKeyPrefix() string {
	return c.valkeyKeyPrefix
}

func (c Config) SQLitePath() string {
	return c.sqlitePath
}

func (c Config) StateFile() string {
	return c.stateFile
}

func (c Config) DedupDepth() int {
	return c.dedupDepth
}

func (c Config) SnapshotEvery() int {
	return c.snapshotEvery
}

func (c Config) StatsFile() string {
	return c.statsFile
}

func (c Config) StatsAutosaveEvery() int {
	return c.statsAutosaveEvery
}

func (c Config) BaseDelay() time.Duration {
	return c.baseDelay
}

func (c Config) Jitter() time.Duration {
	return c.jitter
}

func (c Config) RandomSeed() int64 {
	return c.randomSeed
}

func (c Config) MaxAttempt() int {
	return c.maxAttempt
}

func (c Config) BackoffInitialDuration() time.Duration {
	return c.backoffInitialDuration
}

func (c Config) BackoffMultiplier() float64 {
	return c.backoffMultiplier
}

func (c Config) BackoffMaxDuration() time.Duration {
	return c.backoffMaxDuration
}

func (c Config) Timeout() time.Duration {
	return c.timeout
}

func (c Config) UserAgent() string {
	return c.userAgent
}

func (c Config) DryRun() bool {
	return c.dryRun
}

func (c Config) LogLevel() string {
	return c.logLevel
}
