package cachestore

import (
	"context"
	"fmt"
	"strings"
	"time"

	valkeylib "github.com/valkey-io/valkey-go"
)

const defaultConnectTimeout = 5 * time.Second

type ValkeyOptions struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	// Keys longer than this are hashed. Default: DefaultMaxKeyLength
	MaxKeyLength   int
	ConnectTimeout time.Duration
}

// ValkeyStore delegates storage, TTL and eviction to a Valkey server.
// The size limit is the server's maxmemory policy.
type ValkeyStore struct {
	client       valkeylib.Client
	keyPrefix    string
	maxKeyLength int
}

// NewValkeyStore connects and pings the server. The caller must Close the store.
func NewValkeyStore(ctx context.Context, opts ValkeyOptions) (*ValkeyStore, error) {
	clientOpts := valkeylib.ClientOption{
		InitAddress: []string{opts.Address},
		SelectDB:    opts.DB,
	}
	if opts.Password != "" {
		clientOpts.Password = opts.Password
	}

	client, err := valkeylib.NewClient(clientOpts)
	if err != nil {
		return nil, &StoreError{
			Message: fmt.Sprintf("create client for %s: %v", opts.Address, err),
			Cause:   ErrCauseBackendConnect,
			Err:     err,
		}
	}

	timeout := opts.ConnectTimeout
	if timeout == 0 {
		timeout = defaultConnectTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, &StoreError{
			Message:   fmt.Sprintf("ping %s (timeout: %v): %v", opts.Address, timeout, err),
			Retryable: true,
			Cause:     ErrCauseBackendConnect,
			Err:       err,
		}
	}

	return NewValkeyStoreWithClient(client, opts.KeyPrefix, opts.MaxKeyLength), nil
}

// NewValkeyStoreWithClient wraps an existing client.
func NewValkeyStoreWithClient(client valkeylib.Client, keyPrefix string, maxKeyLength int) *ValkeyStore {
	if keyPrefix != "" && !strings.HasSuffix(keyPrefix, ":") {
		keyPrefix += ":"
	}
	if maxKeyLength <= 0 {
		maxKeyLength = DefaultMaxKeyLength
	}
	return &ValkeyStore{
		client:       client,
		keyPrefix:    keyPrefix,
		maxKeyLength: maxKeyLength,
	}
}

// Key is the server-side key for a logical cache key.
func (s *ValkeyStore) Key(key string) string {
	return s.keyPrefix + EncodeKey(key, s.maxKeyLength)
}

func (s *ValkeyStore) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.client.B().Get().Key(s.Key(key)).Build()
	data, err := s.client.Do(ctx, cmd).AsBytes()
	if err != nil {
		if valkeylib.IsValkeyNil(err) {
			return nil, ErrMiss
		}
		return nil, missWithCause("valkey get", err)
	}
	return data, nil
}

func (s *ValkeyStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		return &StoreError{Message: "ttl cannot be negative", Cause: ErrCauseInvalidArgument}
	}

	var err error
	if ttl == 0 {
		cmd := s.client.B().Set().Key(s.Key(key)).Value(string(value)).Build()
		err = s.client.Do(ctx, cmd).Error()
	} else {
		// EX has second granularity; never round a short ttl down to zero
		seconds := (ttl + time.Second - 1) / time.Second
		cmd := s.client.B().Set().Key(s.Key(key)).Value(string(value)).Ex(seconds * time.Second).Build()
		err = s.client.Do(ctx, cmd).Error()
	}
	if err != nil {
		return &StoreError{
			Message:   fmt.Sprintf("valkey set: %v", err),
			Retryable: true,
			Cause:     ErrCauseBackendIO,
			Err:       err,
		}
	}
	return nil
}

// Len counts every key in the selected database, not only this store's prefix.
func (s *ValkeyStore) Len(ctx context.Context) (int, error) {
	n, err := s.client.Do(ctx, s.client.B().Dbsize().Build()).AsInt64()
	if err != nil {
		return 0, &StoreError{
			Message:   fmt.Sprintf("valkey dbsize: %v", err),
			Retryable: true,
			Cause:     ErrCauseBackendIO,
			Err:       err,
		}
	}
	return int(n), nil
}

func (s *ValkeyStore) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}
