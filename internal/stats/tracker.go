package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/rohmanhakim/threadwatch/internal/metadata"
	"github.com/rohmanhakim/threadwatch/pkg/fileutil"
	"github.com/rohmanhakim/threadwatch/pkg/timeutil"
)

const fileVersion = 1

type fileDTO struct {
	Version int            `json:"version"`
	Tracker map[string]int `json:"tracker"`
}

// Tracker counts how often each resolved URL was referenced. Counts are
// saved to a JSON file every autosaveEvery increments and on Save. An
// autosaveEvery of 0 disables autosaving.
type Tracker struct {
	metadataSink  metadata.MetadataSink
	clock         timeutil.Clock
	path          string
	autosaveEvery int
	dryRun        bool

	mu      sync.Mutex
	counts  map[string]int
	pending int
}

// Open loads path into a new tracker. A missing file starts empty; an
// unreadable or corrupt file is recorded and also starts empty.
func Open(metadataSink metadata.MetadataSink, path string, autosaveEvery int, dryRun bool) *Tracker {
	t := &Tracker{
		metadataSink:  metadataSink,
		clock:         timeutil.SystemClock{},
		path:          path,
		autosaveEvery: autosaveEvery,
		dryRun:        dryRun,
		counts:        make(map[string]int),
	}
	counts, err := load(path)
	if err != nil {
		t.recordError("stats.Open", err)
		return t
	}
	t.counts = counts
	return t
}

func load(path string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]int), nil
		}
		return nil, &StatsError{Message: err.Error(), Retryable: true, Cause: ErrCauseReadFailed, Err: err}
	}

	var dto fileDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, &StatsError{Message: err.Error(), Cause: ErrCauseCorruptFile, Err: err}
	}
	if dto.Version != fileVersion {
		return nil, &StatsError{
			Message: fmt.Sprintf("got version %d, want %d", dto.Version, fileVersion),
			Cause:   ErrCauseUnsupportedVersion,
		}
	}
	if dto.Tracker == nil {
		dto.Tracker = make(map[string]int)
	}
	return dto.Tracker, nil
}

// Increment adds one reference to url and returns its new count.
func (t *Tracker) Increment(url string) int {
	t.mu.Lock()
	t.counts[url]++
	count := t.counts[url]
	t.pending++
	due := t.autosaveEvery > 0 && t.pending >= t.autosaveEvery
	if due {
		t.pending = 0
	}
	t.mu.Unlock()

	if due {
		if err := t.Save(); err != nil {
			t.recordError("Tracker.Increment", err)
		}
	}
	return count
}

func (t *Tracker) Count(url string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[url]
}

// Len is the number of distinct URLs.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.counts)
}

// Total is the sum of every count.
func (t *Tracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	total := 0
	for _, count := range t.counts {
		total += count
	}
	return total
}

func (t *Tracker) Save() error {
	if t.dryRun {
		return nil
	}
	t.mu.Lock()
	data, err := json.Marshal(fileDTO{Version: fileVersion, Tracker: t.counts})
	t.mu.Unlock()
	if err != nil {
		return &StatsError{Message: err.Error(), Cause: ErrCauseWriteFailed, Err: err}
	}

	if err := fileutil.WriteFileAtomic(t.path, data, 0o644); err != nil {
		return &StatsError{Message: err.Error(), Retryable: true, Cause: ErrCauseWriteFailed, Err: err}
	}
	return nil
}

func (t *Tracker) recordError(action string, err error) {
	cause := metadata.CauseUnknown
	var statsErr *StatsError
	if errors.As(err, &statsErr) {
		cause = mapStatsErrorToMetadataCause(statsErr)
	}
	t.metadataSink.RecordError(
		t.clock.Now(),
		"stats",
		action,
		cause,
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrPath, t.path),
		},
	)
}
