package dedup

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/rohmanhakim/threadwatch/pkg/fileutil"
)

/*
Snapshot format: one "<generation> <id>" line per entry. Everything after the
first space is the id, so ids may contain spaces but not line breaks. A line
holding only an id is read as generation 0.

Loading ages every entry by one generation: the restart counts as a cycle
boundary. Entries aged past the window depth are dropped.
*/

// Load seeds a new window from path. A missing file yields an empty window
// and no error. Corrupt lines are skipped and reported through a
// *DedupError; an unreadable file yields an empty window and an error. The
// window is nil only when depth is invalid.
func Load(path string, depth int) (*Window, error) {
	window, err := NewWindow(depth)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return window, nil
		}
		return window, &DedupError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseReadFailed,
			Err:       err,
		}
	}

	var corrupt []int
	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		generation, id, ok := parseLine(line)
		if !ok {
			corrupt = append(corrupt, lineNo)
			continue
		}
		window.restore(generation+1, id)
	}
	if err := scanner.Err(); err != nil {
		return window, &DedupError{
			Message:   err.Error(),
			Retryable: false,
			Cause:     ErrCauseReadFailed,
			Err:       err,
		}
	}

	if len(corrupt) > 0 {
		return window, &DedupError{
			Message:   fmt.Sprintf("skipped %d corrupt line(s) in %s", len(corrupt), path),
			Retryable: false,
			Cause:     ErrCauseCorruptLine,
			Lines:     corrupt,
		}
	}
	return window, nil
}

func parseLine(line string) (int, string, bool) {
	prefix, id, found := strings.Cut(line, " ")
	if !found {
		return 0, strings.TrimSpace(line), true
	}
	generation, err := strconv.Atoi(prefix)
	if err != nil || generation < 0 || id == "" {
		return 0, "", false
	}
	return generation, id, true
}

// Save writes the window to path atomically. Ids containing a line break
// cannot be represented; they are left out and reported through a
// *DedupError after the rest has been written.
func Save(path string, window *Window) error {
	var buf bytes.Buffer
	var skipped []string
	for _, entry := range window.Snapshot() {
		if strings.ContainsAny(entry.ID, "\r\n") {
			skipped = append(skipped, entry.ID)
			continue
		}
		fmt.Fprintf(&buf, "%d %s\n", entry.Generation, entry.ID)
	}
	if err := fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644); err != nil {
		return &DedupError{
			Message:   err.Error(),
			Retryable: true,
			Cause:     ErrCauseWriteFailed,
			Err:       err,
		}
	}
	if len(skipped) > 0 {
		return &DedupError{
			Message:   fmt.Sprintf("left out %d id(s) containing line breaks: %q", len(skipped), skipped),
			Retryable: false,
			Cause:     ErrCauseUnsavableID,
		}
	}
	return nil
}
