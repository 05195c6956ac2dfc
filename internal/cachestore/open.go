package cachestore

import (
	"context"
	"fmt"
	"time"

	"github.com/rohmanhakim/threadwatch/pkg/timeutil"
)

const (
	BackendMemory = "memory"
	BackendValkey = "valkey"
	BackendSQLite = "sqlite"
)

// Options selects and configures a backend at runtime.
type Options struct {
	Backend      string
	SizeLimit    int
	RefreshOnHit bool
	Clock        timeutil.Clock

	ValkeyAddress     string
	ValkeyPassword    string
	ValkeyDB          int
	ValkeyKeyPrefix   string
	MaxKeyLength      int
	ValkeyDialTimeout time.Duration

	SQLitePath string
}

// Open builds the backend named by opts.Backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Backend {
	case BackendMemory, "":
		memOpts := []MemoryOption{WithRefreshOnHit(opts.RefreshOnHit)}
		if opts.Clock != nil {
			memOpts = append(memOpts, WithClock(opts.Clock))
		}
		store, err := NewMemoryStore(opts.SizeLimit, memOpts...)
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendValkey:
		store, err := NewValkeyStore(ctx, ValkeyOptions{
			Address:        opts.ValkeyAddress,
			Password:       opts.ValkeyPassword,
			DB:             opts.ValkeyDB,
			KeyPrefix:      opts.ValkeyKeyPrefix,
			MaxKeyLength:   opts.MaxKeyLength,
			ConnectTimeout: opts.ValkeyDialTimeout,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendSQLite:
		store, err := OpenSQLiteStore(ctx, SQLiteOptions{
			Path:         opts.SQLitePath,
			SizeLimit:    opts.SizeLimit,
			RefreshOnHit: opts.RefreshOnHit,
			Clock:        opts.Clock,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, &StoreError{
			Message: fmt.Sprintf("backend %q", opts.Backend),
			Cause:   ErrCauseUnknownBackend,
		}
	}
}
