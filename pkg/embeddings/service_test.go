package embeddings

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder counts calls and returns a distinct vector per text.
type fakeEmbedder struct {
	calls     int
	lastBatch []string
	fail      bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.lastBatch = texts
	if f.fail {
		return nil, fmt.Errorf("encoder unavailable")
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text)), float32(i)}
	}
	return vectors, nil
}

func (f *fakeEmbedder) Dimension() int                 { return 2 }
func (f *fakeEmbedder) Warmup(_ context.Context) error { return nil }

func newTestService(t *testing.T, embedder Embedder, capacity int) *Service {
	t.Helper()
	s, err := NewService(context.Background(), embedder, capacity)
	require.NoError(t, err)
	return s
}

func TestEmbedOneCaches(t *testing.T) {
	fake := &fakeEmbedder{}
	s := newTestService(t, fake, 10)
	callsAfterWarmup := fake.calls

	v1, err := s.EmbedOne(context.Background(), "hello")
	require.NoError(t, err)
	v2, err := s.EmbedOne(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, callsAfterWarmup+1, fake.calls)
}

func TestEmbedOneReturnsCopy(t *testing.T) {
	fake := &fakeEmbedder{}
	s := newTestService(t, fake, 10)

	v1, err := s.EmbedOne(context.Background(), "hello")
	require.NoError(t, err)
	v1[0] = -99

	v2, err := s.EmbedOne(context.Background(), "hello")
	require.NoError(t, err)
	assert.NotEqual(t, float32(-99), v2[0])
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	fake := &fakeEmbedder{}
	s := newTestService(t, fake, 10)

	// Prime the cache with one of the three texts.
	cached, err := s.EmbedOne(context.Background(), "bb")
	require.NoError(t, err)

	results, err := s.EmbedBatch(context.Background(), []string{"a", "bb", "ccc"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Only the two misses reach the encoder, in input order.
	assert.Equal(t, []string{"a", "ccc"}, fake.lastBatch)
	assert.Equal(t, cached, results[1])
	assert.Equal(t, float32(1), results[0][0])
	assert.Equal(t, float32(3), results[2][0])
}

func TestEmbedBatchEncoderErrorLeavesCacheUntouched(t *testing.T) {
	fake := &fakeEmbedder{}
	s := newTestService(t, fake, 10)

	fake.fail = true
	_, err := s.EmbedBatch(context.Background(), []string{"x", "y"})
	require.Error(t, err)

	fake.fail = false
	_, err = s.EmbedBatch(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, fake.lastBatch)
}

func TestCacheEviction(t *testing.T) {
	fake := &fakeEmbedder{}
	s := newTestService(t, fake, 2)

	for _, text := range []string{"one", "two", "three"} {
		_, err := s.EmbedOne(context.Background(), text)
		require.NoError(t, err)
	}

	stats := s.Stats()
	assert.Equal(t, 2, stats["size"])

	// "one" was evicted; re-embedding it hits the encoder again.
	calls := fake.calls
	_, err := s.EmbedOne(context.Background(), "one")
	require.NoError(t, err)
	assert.Equal(t, calls+1, fake.calls)
}

func TestStats(t *testing.T) {
	fake := &fakeEmbedder{}
	s := newTestService(t, fake, 10)

	_, err := s.EmbedOne(context.Background(), "hello")
	require.NoError(t, err)
	_, err = s.EmbedOne(context.Background(), "hello")
	require.NoError(t, err)

	stats := s.Stats()
	assert.Equal(t, int64(1), stats["hits"])
	assert.Equal(t, int64(1), stats["misses"])
	assert.Equal(t, "50.00%", stats["hit_rate"])
	assert.Equal(t, 10, stats["capacity"])
}

func TestEmbedBatchEmpty(t *testing.T) {
	fake := &fakeEmbedder{}
	s := newTestService(t, fake, 10)
	callsAfterWarmup := fake.calls

	results, err := s.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, results, 0)
	assert.Equal(t, callsAfterWarmup, fake.calls)
}
