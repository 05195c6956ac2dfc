package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// envOverlay holds deployment settings that are usually injected by the
// environment rather than written into the config file. Typed settings are
// pointers so that an unset variable is distinguishable from a zero value.
type envOverlay struct {
	CacheBackend   string         `env:"THREADWATCH_CACHE_BACKEND"`
	CacheTTL       *time.Duration `env:"THREADWATCH_CACHE_TTL"`
	ValkeyAddress  string         `env:"THREADWATCH_VALKEY_ADDR"`
	ValkeyPassword string         `env:"THREADWATCH_VALKEY_PASSWORD"`
	ValkeyDB       *int           `env:"THREADWATCH_VALKEY_DB"`
	SQLitePath     string         `env:"THREADWATCH_SQLITE_PATH"`
	StateFile      string         `env:"THREADWATCH_STATE_FILE"`
	StatsFile      string         `env:"THREADWATCH_STATS_FILE"`
	UserAgent      string         `env:"THREADWATCH_USER_AGENT"`
	DryRun         *bool          `env:"THREADWATCH_DRY_RUN"`
	LogLevel       string         `env:"THREADWATCH_LOG_LEVEL"`
}

// ApplyEnv overlays THREADWATCH_* variables from the process environment.
func (c *Config) ApplyEnv() (*Config, error) {
	return c.ApplyEnvFrom(nil)
}

// ApplyEnvFrom overlays THREADWATCH_* variables from environ. A nil map
// reads the process environment.
func (c *Config) ApplyEnvFrom(environ map[string]string) (*Config, error) {
	overlay := envOverlay{}
	var err error
	if environ == nil {
		err = env.Parse(&overlay)
	} else {
		err = env.ParseWithOptions(&overlay, env.Options{Environment: environ})
	}
	if err != nil {
		return c, fmt.Errorf("%w: %s", ErrEnvParsingFail, err.Error())
	}

	if overlay.CacheBackend != "" {
		c.cacheBackend = overlay.CacheBackend
	}
	if overlay.CacheTTL != nil {
		c.cacheTTL = *overlay.CacheTTL
	}
	if overlay.ValkeyAddress != "" {
		c.valkeyAddress = overlay.ValkeyAddress
	}
	if overlay.ValkeyPassword != "" {
		c.valkeyPassword = overlay.ValkeyPassword
	}
	if overlay.ValkeyDB != nil {
		c.valkeyDB = *overlay.ValkeyDB
	}
	if overlay.SQLitePath != "" {
		c.sqlitePath = overlay.SQLitePath
	}
	if overlay.StateFile != "" {
		c.stateFile = overlay.StateFile
	}
	if overlay.StatsFile != "" {
		c.statsFile = overlay.StatsFile
	}
	if overlay.UserAgent != "" {
		c.userAgent = overlay.UserAgent
	}
	if overlay.DryRun != nil {
		c.dryRun = *overlay.DryRun
	}
	if overlay.LogLevel != "" {
		c.logLevel = overlay.LogLevel
	}
	return c, nil
}
