package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rohmanhakim/threadwatch/internal/app"
	"github.com/rohmanhakim/threadwatch/internal/build"
	"github.com/rohmanhakim/threadwatch/internal/config"
	"github.com/rohmanhakim/threadwatch/internal/metadata"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	listingURLs  []string
	itemSelector string
	linkSelector string
	idAttr       string
	pollInterval time.Duration
	searchSite   string
	cacheBackend string
	cacheTTL     time.Duration
	stateFile    string
	statsFile    string
	dedupDepth   int
	dryRun       bool
	userAgent    string
	timeout      time.Duration
	baseDelay    time.Duration
	jitter       time.Duration
	randomSeed   int64
	logLevel     string
	logFormat    string
	workerID     string
	environ      map[string]string
	recorderOut  io.Writer = os.Stderr
	verbose      bool
)

// parseListings turns the listing flags into config listings. Every URL
// shares the same selectors.
func parseListings(urls []string) ([]config.Listing, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: at least one --listing-url is required", config.ErrInvalidConfig)
	}
	listings := make([]config.Listing, 0, len(urls))
	for _, u := range urls {
		listings = append(listings, config.Listing{
			URL:          u,
			ItemSelector: itemSelector,
			LinkSelector: linkSelector,
			IDAttr:       idAttr,
		})
	}
	return listings, nil
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "threadwatch",
	Short: "Watches listing pages and resolves new threads through cached, rate-limited search.",
	Long: `threadwatch polls one or more listing pages for new threads or comments.
Every item seen for the first time is looked up through a set of search
providers that are throttled, banned on rate limiting and failed over in
order. Page fetches and searches are cached in memory, in SQLite or in
Valkey, and handled items are remembered across restarts.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the configured listings until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := InitConfigWithError()
		if err != nil {
			return err
		}

		recorder, err := NewRecorder(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return Run(ctx, cfg, recorder)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version.",
	Run: func(cmd *cobra.Command, args []string) {
		if verbose {
			fmt.Fprintln(cmd.OutOrStdout(), build.Summary())
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), build.FullVersion())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd, versionCmd)

	flags := runCmd.Flags()
	flags.StringVar(&cfgFile, "config-file", "", "config file path (e.g., /home/myuser/threadwatch.json)")
	flags.StringArrayVar(&listingURLs, "listing-url", []string{}, "listing page to poll (can be repeated)")
	flags.StringVar(&itemSelector, "item-selector", "", "CSS selector matching one element per item")
	flags.StringVar(&linkSelector, "link-selector", "", "CSS selector of the item link inside the item element")
	flags.StringVar(&idAttr, "id-attr", "", "attribute holding the stable item id (default data-id)")
	flags.DurationVar(&pollInterval, "poll-interval", 0, "wait between poll cycles")
	flags.StringVar(&searchSite, "search-site", "", "site hint added to every search")
	flags.StringVar(&cacheBackend, "cache-backend", "", "cache backend: memory, sqlite or valkey")
	flags.DurationVar(&cacheTTL, "cache-ttl", 0, "lifetime of cached pages and searches")
	flags.StringVar(&stateFile, "state-file", "", "file holding the seen-items snapshot")
	flags.StringVar(&statsFile, "stats-file", "", "file holding the resolved-URL counters")
	flags.IntVar(&dedupDepth, "dedup-depth", 0, "number of poll cycles an item is remembered for")
	flags.BoolVar(&dryRun, "dry-run", false, "poll and search without writing state files")
	flags.StringVar(&userAgent, "user-agent", "", "user agent string for HTTP requests")
	flags.DurationVar(&timeout, "timeout", 0, "timeout for HTTP requests")
	flags.DurationVar(&baseDelay, "base-delay", 0, "base delay between HTTP requests to the same host")
	flags.DurationVar(&jitter, "jitter", 0, "random jitter added to base delay")
	flags.Int64Var(&randomSeed, "random-seed", 0, "seed for random number generation (0 for current time)")
	flags.StringVar(&logLevel, "log-level", "", "minimum event level: debug, info, warn, error")
	flags.StringVar(&logFormat, "log-format", "json", "event format: json or console")
	flags.StringVar(&workerID, "worker-id", "", "worker id stamped on every event (random when empty)")

	versionCmd.Flags().BoolVar(&verbose, "verbose", false, "also print the build time")
}

// InitConfigWithError builds the config from the config file or the flags,
// then overlays THREADWATCH_* environment variables. A config file replaces
// the flags entirely.
func InitConfigWithError() (config.Config, error) {
	var configBuilder *config.Config
	if cfgFile != "" {
		cfg, err := config.WithConfigFile(cfgFile)
		if err != nil {
			return config.Config{}, fmt.Errorf("error initializing config from file: %w", err)
		}
		configBuilder = &cfg
	} else {
		listings, err := parseListings(listingURLs)
		if err != nil {
			return config.Config{}, err
		}
		configBuilder = applyFlags(config.WithDefault(listings))
	}

	configBuilder, err := configBuilder.ApplyEnvFrom(environ)
	if err != nil {
		return config.Config{}, err
	}
	return configBuilder.Build()
}

func applyFlags(configBuilder *config.Config) *config.Config {
	if pollInterval > 0 {
		configBuilder = configBuilder.WithPollInterval(pollInterval)
	}
	if searchSite != "" {
		configBuilder = configBuilder.WithSearchSite(searchSite)
	}
	if cacheBackend != "" {
		configBuilder = configBuilder.WithCacheBackend(cacheBackend)
	}
	if cacheTTL > 0 {
		configBuilder = configBuilder.WithCacheTTL(cacheTTL)
	}
	if stateFile != "" {
		configBuilder = configBuilder.WithStateFile(stateFile)
	}
	if statsFile != "" {
		configBuilder = configBuilder.WithStatsFile(statsFile)
	}
	if dedupDepth > 0 {
		configBuilder = configBuilder.WithDedupDepth(dedupDepth)
	}
	if dryRun {
		configBuilder = configBuilder.WithDryRun(dryRun)
	}
	if userAgent != "" {
		configBuilder = configBuilder.WithUserAgent(userAgent)
	}
	if timeout > 0 {
		configBuilder = configBuilder.WithTimeout(timeout)
	}
	if baseDelay > 0 {
		configBuilder = configBuilder.WithBaseDelay(baseDelay)
	}
	if jitter > 0 {
		configBuilder = configBuilder.WithJitter(jitter)
	}
	if randomSeed != 0 {
		configBuilder = configBuilder.WithRandomSeed(randomSeed)
	}
	if logLevel != "" {
		configBuilder = configBuilder.WithLogLevel(logLevel)
	}
	return configBuilder
}

// NewRecorder builds the event recorder for cfg's log level.
func NewRecorder(cfg config.Config) (*metadata.Recorder, error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel())
	if err != nil {
		return nil, fmt.Errorf("%w: log level %q", config.ErrInvalidConfig, cfg.LogLevel())
	}

	var recorder *metadata.Recorder
	switch logFormat {
	case "", "json":
		recorder = metadata.NewRecorder(workerID, recorderOut)
	case "console":
		recorder = metadata.NewConsoleRecorder(workerID, recorderOut)
	default:
		return nil, fmt.Errorf("%w: log format %q", config.ErrInvalidConfig, logFormat)
	}
	recorder.SetLevel(level)
	return recorder, nil
}

// Run builds the app and polls until ctx is cancelled, then flushes state.
func Run(ctx context.Context, cfg config.Config, recorder *metadata.Recorder) error {
	watcher, err := app.New(ctx, cfg, recorder)
	if err != nil {
		return err
	}

	runErr := watcher.Run(ctx)
	closeErr := watcher.Close()
	if runErr != nil {
		return runErr
	}
	return closeErr
}

func ResetFlags() {
	cfgFile = ""
	listingURLs = []string{}
	itemSelector = ""
	linkSelector = ""
	idAttr = ""
	pollInterval = 0
	searchSite = ""
	cacheBackend = ""
	cacheTTL = 0
	stateFile = ""
	statsFile = ""
	dedupDepth = 0
	dryRun = false
	userAgent = ""
	timeout = 0
	baseDelay = 0
	jitter = 0
	randomSeed = 0
	logLevel = ""
	logFormat = "json"
	workerID = ""
	environ = map[string]string{}
	recorderOut = os.Stderr
	verbose = false
}

// Test helper functions to set flag values from tests
func SetConfigFileForTest(path string) {
	cfgFile = path
}

func SetListingURLsForTest(urls []string) {
	listingURLs = urls
}

func SetSelectorsForTest(item, link, id string) {
	itemSelector = item
	linkSelector = link
	idAttr = id
}

func SetPollIntervalForTest(interval time.Duration) {
	pollInterval = interval
}

func SetSearchSiteForTest(site string) {
	searchSite = site
}

func SetCacheBackendForTest(backend string) {
	cacheBackend = backend
}

func SetStateFileForTest(path string) {
	stateFile = path
}

func SetStatsFileForTest(path string) {
	statsFile = path
}

func SetDedupDepthForTest(depth int) {
	dedupDepth = depth
}

func SetDryRunForTest(dry bool) {
	dryRun = dry
}

func SetTimeoutForTest(t time.Duration) {
	timeout = t
}

func SetLogLevelForTest(level string) {
	logLevel = level
}

func SetLogFormatForTest(format string) {
	logFormat = format
}

func SetWorkerIDForTest(id string) {
	workerID = id
}

// SetEnvironForTest replaces the process environment seen by the env
// overlay. nil reads the real environment.
func SetEnvironForTest(env map[string]string) {
	environ = env
}

func SetRecorderOutputForTest(w io.Writer) {
	recorderOut = w
}

// ExecuteForTest runs the root command with args and returns its output.
func ExecuteForTest(args ...string) (string, error) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	err := rootCmd.Execute()
	return out.String(), err
}
