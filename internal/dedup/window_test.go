package dedup_test

import (
	"sync"
	"testing"

	"github.com/rohmanhakim/threadwatch/internal/dedup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWindow(t *testing.T, depth int) *dedup.Window {
	t.Helper()
	window, err := dedup.NewWindow(depth)
	require.NoError(t, err)
	return window
}

func TestNewWindow_RejectsInvalidDepth(t *testing.T) {
	for _, depth := range []int{0, -1} {
		window, err := dedup.NewWindow(depth)
		assert.Nil(t, window)

		var dedupErr *dedup.DedupError
		require.ErrorAs(t, err, &dedupErr)
		assert.Equal(t, dedup.ErrCauseInvalidDepth, dedupErr.Cause)
	}
}

func TestWindow_ExpiresAfterDepthRotations(t *testing.T) {
	window := newWindow(t, 2)

	window.Add("x")
	assert.True(t, window.Contains("x"))

	window.Rotate()
	assert.True(t, window.Contains("x"), "still remembered one cycle later")

	window.Rotate()
	assert.False(t, window.Contains("x"), "forgotten after depth rotations")
	assert.Equal(t, 0, window.Len())
}

func TestWindow_ReAddResetsCountdown(t *testing.T) {
	window := newWindow(t, 2)

	window.Add("x")
	window.Rotate()
	window.Add("x")
	window.Rotate()
	assert.True(t, window.Contains("x"))

	window.Rotate()
	assert.False(t, window.Contains("x"))
}

func TestWindow_EachIDInOneGeneration(t *testing.T) {
	window := newWindow(t, 4)

	window.Add("a")
	window.Rotate()
	window.Add("b")
	window.Rotate()
	window.Add("a")

	assert.Equal(t, 2, window.Len())
	assert.Equal(t, []dedup.Entry{
		{Generation: 0, ID: "a"},
		{Generation: 1, ID: "b"},
	}, window.Snapshot())
}

func TestWindow_ContainsIsPure(t *testing.T) {
	window := newWindow(t, 2)

	window.Add("x")
	window.Rotate()
	assert.True(t, window.Contains("x"))
	window.Rotate()
	assert.False(t, window.Contains("x"), "Contains must not refresh the id")
}

func TestWindow_DepthOne(t *testing.T) {
	window := newWindow(t, 1)

	window.Add("x")
	assert.True(t, window.Contains("x"))
	window.Rotate()
	assert.False(t, window.Contains("x"))
}

func TestWindow_SnapshotOrder(t *testing.T) {
	window := newWindow(t, 3)

	window.Add("c")
	window.Add("a")
	window.Rotate()
	window.Add("z")
	window.Add("b")

	assert.Equal(t, []dedup.Entry{
		{Generation: 0, ID: "b"},
		{Generation: 0, ID: "z"},
		{Generation: 1, ID: "a"},
		{Generation: 1, ID: "c"},
	}, window.Snapshot())
	assert.Equal(t, 3, window.Depth())
}

func TestWindow_ConcurrentUse(t *testing.T) {
	window := newWindow(t, 4)

	var wg sync.WaitGroup
	for worker := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				id := string(rune('a'+worker)) + string(rune('0'+i%10))
				window.Add(id)
				window.Contains(id)
				if i%25 == 0 {
					window.Rotate()
				}
			}
		}()
	}
	wg.Wait()

	// no id may appear twice across generations
	seen := make(map[string]bool)
	for _, entry := range window.Snapshot() {
		assert.False(t, seen[entry.ID], "duplicate %s", entry.ID)
		seen[entry.ID] = true
	}
}
