package chunking

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
)

func testChunker() *Chunker {
	return New(&config.ChunkingConfig{
		ParentSize:    100,
		ParentOverlap: 20,
		ChildSize:     30,
		ChildOverlap:  10,
	})
}

func TestSplitWindowsStride(t *testing.T) {
	text := strings.Repeat("a", 250)
	windows := splitWindows(text, 100, 20)

	// Stride 80: windows start at 0, 80 and 160; the last one is short.
	require.Len(t, windows, 3)
	assert.Len(t, windows[0], 100)
	assert.Len(t, windows[2], 90)
}

func TestSplitWindowsRuneBoundaries(t *testing.T) {
	text := "aaaa" + strings.Repeat("ö", 4)
	windows := splitWindows(text, 5, 0)

	require.Len(t, windows, 2)
	assert.Equal(t, "aaaaö", windows[0])
	assert.Equal(t, "ööö", windows[1])
	for i, window := range windows {
		assert.True(t, utf8.ValidString(window), "window %d is not valid UTF-8: %q", i, window)
	}
}

func TestSplitWindowsShortText(t *testing.T) {
	windows := splitWindows("short", 100, 20)
	require.Len(t, windows, 1)
	assert.Equal(t, "short", windows[0])
}

func TestSplitWindowsEmpty(t *testing.T) {
	assert.Nil(t, splitWindows("", 100, 20))
	assert.Nil(t, splitWindows("   \n\t  ", 100, 20))
}

func TestBuildChunksWithoutMetadata(t *testing.T) {
	c := testChunker()
	text := strings.Repeat("x", 150)

	parents, children := c.BuildChunks(text, "")

	require.Len(t, parents, 2)
	require.NotEmpty(t, children)
	for _, child := range children {
		assert.Equal(t, SectionBody, child.Section)
		assert.Equal(t, PositionMiddle, child.Position)
		assert.False(t, child.IsMetadata)
		assert.Less(t, child.ParentID, len(parents))
	}
}

func TestBuildChunksWithMetadata(t *testing.T) {
	c := testChunker()
	text := strings.Repeat("x", 150)
	meta := "=== DOCUMENT METADATA ===\nFilename: a.pdf\n=== END METADATA ==="

	parents, children := c.BuildChunks(text, meta)

	// Metadata chunk is parent 0, body parents shifted by one.
	require.Len(t, parents, 3)
	assert.Equal(t, meta, parents[0])

	require.NotEmpty(t, children)
	first := children[0]
	assert.Equal(t, meta, first.Text)
	assert.Equal(t, 0, first.ParentID)
	assert.Equal(t, SectionMetadata, first.Section)
	assert.Equal(t, PositionMetadata, first.Position)
	assert.True(t, first.IsMetadata)

	for _, child := range children[1:] {
		assert.Equal(t, SectionBody, child.Section)
		assert.GreaterOrEqual(t, child.ParentID, 1)
	}
}

func TestBuildChunksIndexing(t *testing.T) {
	c := testChunker()
	_, children := c.BuildChunks(strings.Repeat("x", 200), "meta")

	for i, child := range children {
		assert.Equal(t, i, child.ChunkIndex)
		assert.Equal(t, len(children), child.TotalChunks)
	}
}

func TestBuildChunksEmptyText(t *testing.T) {
	c := testChunker()
	parents, children := c.BuildChunks("", "")
	assert.Empty(t, parents)
	assert.Empty(t, children)
}

func TestParentStoreRoundTrip(t *testing.T) {
	store, err := NewParentStore(t.TempDir())
	require.NoError(t, err)

	parents := []string{"meta chunk", "first parent", "second parent"}
	require.NoError(t, store.Save(7, parents))

	loaded, err := store.Load(7)
	require.NoError(t, err)
	assert.Equal(t, parents, loaded)

	one, err := store.LoadOne(7, 1)
	require.NoError(t, err)
	assert.Equal(t, "first parent", one)
}

func TestParentStoreLoadOneOutOfRange(t *testing.T) {
	store, err := NewParentStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save(1, []string{"only"}))

	_, err = store.LoadOne(1, 5)
	require.Error(t, err)

	_, err = store.LoadOne(99, 0)
	require.Error(t, err)
}

func TestParentStoreDelete(t *testing.T) {
	store, err := NewParentStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save(3, []string{"p"}))

	require.NoError(t, store.Delete(3))
	_, err = store.Load(3)
	require.Error(t, err)

	// Deleting again is fine.
	require.NoError(t, store.Delete(3))
}
