package dedup

import (
	"errors"
	"sync"

	"github.com/rohmanhakim/threadwatch/internal/metadata"
	"github.com/rohmanhakim/threadwatch/pkg/timeutil"
)

// PersistentWindow is a Window that snapshots itself to a file every
// autosaveEvery adds and on Close. An autosaveEvery of 0 saves only on
// Close. In dry-run mode nothing is written.
type PersistentWindow struct {
	*Window

	metadataSink  metadata.MetadataSink
	clock         timeutil.Clock
	path          string
	autosaveEvery int
	dryRun        bool

	saveMu  sync.Mutex
	pending int
}

// OpenPersistentWindow loads path into a window of the given depth. Load
// problems are recorded and never fatal; only an invalid depth fails.
func OpenPersistentWindow(
	metadataSink metadata.MetadataSink,
	path string,
	depth int,
	autosaveEvery int,
	dryRun bool,
) (*PersistentWindow, error) {
	window, err := Load(path, depth)
	if window == nil {
		return nil, err
	}
	p := &PersistentWindow{
		Window:        window,
		metadataSink:  metadataSink,
		clock:         timeutil.SystemClock{},
		path:          path,
		autosaveEvery: autosaveEvery,
		dryRun:        dryRun,
	}
	if err != nil {
		p.recordError("OpenPersistentWindow", err)
	}
	return p, nil
}

func (p *PersistentWindow) Path() string {
	return p.path
}

// Add remembers id and snapshots the window on every autosaveEvery-th add.
func (p *PersistentWindow) Add(id string) {
	p.Window.Add(id)

	p.saveMu.Lock()
	p.pending++
	due := p.autosaveEvery > 0 && p.pending >= p.autosaveEvery
	if due {
		p.pending = 0
	}
	p.saveMu.Unlock()

	if due {
		if err := p.Save(); err != nil {
			p.recordError("PersistentWindow.Add", err)
		}
	}
}

func (p *PersistentWindow) Save() error {
	if p.dryRun {
		return nil
	}
	p.saveMu.Lock()
	defer p.saveMu.Unlock()
	return Save(p.path, p.Window)
}

// Close performs the final save.
func (p *PersistentWindow) Close() error {
	p.saveMu.Lock()
	p.pending = 0
	p.saveMu.Unlock()
	return p.Save()
}

func (p *PersistentWindow) recordError(action string, err error) {
	cause := metadata.CauseUnknown
	var dedupErr *DedupError
	if errors.As(err, &dedupErr) {
		cause = mapDedupErrorToMetadataCause(dedupErr)
	}
	p.metadataSink.RecordError(
		p.clock.Now(),
		"dedup",
		action,
		cause,
		err.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrPath, p.path),
		},
	)
}
