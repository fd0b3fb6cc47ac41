package embeddings

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSparseEncodeDeterministic(t *testing.T) {
	i1, v1 := SparseEncode("retrieval augmented generation pipeline")
	i2, v2 := SparseEncode("retrieval augmented generation pipeline")
	assert.Equal(t, i1, i2)
	assert.Equal(t, v1, v2)
	assert.Len(t, i1, 4)
}

func TestSparseEncodeFiltersShortTokens(t *testing.T) {
	indices, values := SparseEncode("an is to go of document")
	// Only "document" survives the length filter.
	require.Len(t, indices, 1)
	require.Len(t, values, 1)
	assert.InDelta(t, 1.0, float64(values[0]), 1e-6)
}

func TestSparseEncodeShortUmlautTokensDropped(t *testing.T) {
	// "öl" is two characters; the byte length must not leak into the filter.
	indices, values := SparseEncode("öl öl öl")
	assert.Len(t, indices, 0)
	assert.Len(t, values, 0)
}

func TestSparseEncodeKeepsUmlauts(t *testing.T) {
	indices, _ := SparseEncode("Über die Wärmeübertragung")
	// "über", "die", "wärmeübertragung" tokenize; "die" is kept (len 3).
	assert.Len(t, indices, 3)
}

func TestSparseEncodeEmptyInput(t *testing.T) {
	indices, values := SparseEncode("")
	assert.Len(t, indices, 0)
	assert.Len(t, values, 0)

	indices, values = SparseEncode("123 456 !!!")
	assert.Len(t, indices, 0)
	assert.Len(t, values, 0)
}

func TestSparseEncodeScores(t *testing.T) {
	// "alpha" twice, "beta" once: 3 kept tokens total.
	indices, values := SparseEncode("alpha alpha beta")
	require.Len(t, indices, 2)

	norm := math.Sqrt(3)
	expected := map[uint32]float64{
		sparseHash("alpha"): (1 + math.Log(2)) / norm,
		sparseHash("beta"):  1 / norm,
	}
	for i, idx := range indices {
		assert.InDelta(t, expected[idx], float64(values[i]), 1e-6)
	}
}

func TestSparseEncodeSortedIndices(t *testing.T) {
	indices, values := SparseEncode("document retrieval ranking embedding chunking storage")
	assert.True(t, sort.SliceIsSorted(indices, func(i, j int) bool { return indices[i] < indices[j] }))
	assert.Len(t, values, len(indices))
	for _, idx := range indices {
		assert.Less(t, idx, uint32(sparseDimension))
	}
}
