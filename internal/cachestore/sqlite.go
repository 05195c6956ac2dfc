package cachestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rohmanhakim/threadwatch/pkg/timeutil"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS cache_entries (
	cache_key   TEXT PRIMARY KEY,
	value       BLOB NOT NULL,
	inserted_at INTEGER NOT NULL,
	ttl_ns      INTEGER NOT NULL,
	touched_seq INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS cache_entries_touched ON cache_entries (touched_seq);`

// SQLiteStore keeps the cache in a local SQLite file so it survives
// restarts. It has the same TTL and LRU semantics as MemoryStore; recency
// is a monotonically increasing sequence rather than wall time.
type SQLiteStore struct {
	// serializes writers; SQLite allows a single writer anyway
	mu           sync.Mutex
	db           *sql.DB
	sizeLimit    int
	refreshOnHit bool
	clock        timeutil.Clock
	seq          int64
}

type SQLiteOptions struct {
	Path         string
	SizeLimit    int
	RefreshOnHit bool
	Clock        timeutil.Clock
}

func OpenSQLiteStore(ctx context.Context, opts SQLiteOptions) (*SQLiteStore, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, &StoreError{Message: "sqlite path is required", Cause: ErrCauseInvalidArgument}
	}
	if opts.SizeLimit < 1 {
		return nil, &StoreError{
			Message: fmt.Sprintf("size limit must be at least 1, got %d", opts.SizeLimit),
			Cause:   ErrCauseInvalidArgument,
		}
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.SystemClock{}
	}

	dsn := filepath.Clean(opts.Path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &StoreError{Message: fmt.Sprintf("open sqlite db: %v", err), Cause: ErrCauseBackendConnect, Err: err}
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &StoreError{Message: fmt.Sprintf("ping sqlite db: %v", err), Cause: ErrCauseBackendConnect, Err: err}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, &StoreError{Message: fmt.Sprintf("create schema: %v", err), Cause: ErrCauseBackendIO, Err: err}
	}

	var maxSeq sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(touched_seq) FROM cache_entries`).Scan(&maxSeq); err != nil {
		_ = db.Close()
		return nil, &StoreError{Message: fmt.Sprintf("read sequence: %v", err), Cause: ErrCauseBackendIO, Err: err}
	}

	return &SQLiteStore{
		db:           db,
		sizeLimit:    opts.SizeLimit,
		refreshOnHit: opts.RefreshOnHit,
		clock:        clock,
		seq:          maxSeq.Int64,
	}, nil
}

// caller holds s.mu
func (s *SQLiteStore) nextSeq() int64 {
	s.seq++
	return s.seq
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var value []byte
	var insertedAt, ttlNs int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value, inserted_at, ttl_ns FROM cache_entries WHERE cache_key = ?`, key,
	).Scan(&value, &insertedAt, &ttlNs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, missWithCause("sqlite get", err)
	}

	ttl := time.Duration(ttlNs)
	if ttl > 0 && now.Sub(time.Unix(0, insertedAt)) > ttl {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_key = ?`, key); err != nil {
			return nil, missWithCause("sqlite evict", err)
		}
		return nil, ErrMiss
	}

	if s.refreshOnHit {
		insertedAt = now.UnixNano()
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE cache_entries SET touched_seq = ?, inserted_at = ? WHERE cache_key = ?`,
		s.nextSeq(), insertedAt, key,
	); err != nil {
		return nil, missWithCause("sqlite touch", err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		return &StoreError{Message: "ttl cannot be negative", Cause: ErrCauseInvalidArgument}
	}
	if value == nil {
		value = []byte{}
	}
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.ioError("sqlite begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO cache_entries (cache_key, value, inserted_at, ttl_ns, touched_seq)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		   value = excluded.value,
		   inserted_at = excluded.inserted_at,
		   ttl_ns = excluded.ttl_ns,
		   touched_seq = excluded.touched_seq`,
		key, value, now.UnixNano(), int64(ttl), s.nextSeq(),
	); err != nil {
		return s.ioError("sqlite upsert", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return s.ioError("sqlite count", err)
	}
	if excess := count - s.sizeLimit; excess > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM cache_entries WHERE cache_key IN (
			   SELECT cache_key FROM cache_entries ORDER BY touched_seq ASC LIMIT ?
			 )`, excess,
		); err != nil {
			return s.ioError("sqlite evict", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return s.ioError("sqlite commit", err)
	}
	return nil
}

func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return 0, s.ioError("sqlite count", err)
	}
	return count, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) ioError(op string, err error) error {
	return &StoreError{
		Message:   fmt.Sprintf("%s: %v", op, err),
		Retryable: true,
		Cause:     ErrCauseBackendIO,
		Err:       err,
	}
}
