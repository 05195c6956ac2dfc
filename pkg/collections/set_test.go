package collections_test

import (
	"sort"
	"testing"

	"github.com/rohmanhakim/threadwatch/pkg/collections"
	"github.com/stretchr/testify/assert"
)

type setItem struct {
	name   string
	number int
}

func TestAddContains(t *testing.T) {
	set := collections.NewSet[setItem]()
	assert.Equal(t, 0, set.Size())

	set.Add(setItem{name: "First Item", number: 1})
	set.Add(setItem{name: "First Item", number: 0})
	set.Add(setItem{name: "First Item", number: 0})

	assert.Equal(t, 2, set.Size())
	assert.True(t, set.Contains(setItem{name: "First Item", number: 1}))
	assert.False(t, set.Contains(setItem{name: "Second Item", number: 1}))
}

func TestRemoveAndClear(t *testing.T) {
	set := collections.NewSet[string]()
	set.Add("a")
	set.Add("b")

	set.Remove("a")
	assert.False(t, set.Contains("a"))
	assert.Equal(t, 1, set.Size())

	set.Clear()
	assert.Equal(t, 0, set.Size())
}

func TestItems(t *testing.T) {
	set := collections.NewSet[string]()
	set.Add("b")
	set.Add("a")

	items := set.Items()
	sort.Strings(items)

	assert.Equal(t, []string{"a", "b"}, items)
}
