package embeddings

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
)

// Service wraps an Embedder with an md5-keyed LRU cache. The ingest pipeline
// and the query path share one instance so repeated texts are encoded once.
type Service struct {
	embedder Embedder
	cache    *lru.Cache[string, []float32]
	capacity int

	mu     sync.Mutex
	hits   int64
	misses int64
}

// NewService creates a caching embedding service and warms up the encoder.
func NewService(ctx context.Context, embedder Embedder, capacity int) (*Service, error) {
	if capacity <= 0 {
		capacity = 10000
	}
	cache, err := lru.New[string, []float32](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	s := &Service{
		embedder: embedder,
		cache:    cache,
		capacity: capacity,
	}
	if err := embedder.Warmup(ctx); err != nil {
		slog.Warn("Embedder warmup failed", "error", err)
	}
	return s, nil
}

// Dimension returns the underlying encoder's vector width.
func (s *Service) Dimension() int { return s.embedder.Dimension() }

func cacheKey(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// EmbedOne embeds a single text, serving from cache when possible.
func (s *Service) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)

	if vec, ok := s.lookup(key); ok {
		return vec, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one text", len(vectors))
	}

	s.cache.Add(key, vectors[0])
	return vectors[0], nil
}

// EmbedBatch embeds texts preserving input order. Cached texts are served
// from the cache; the remainder goes to the encoder in a single call.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if vec, ok := s.lookup(cacheKey(text)); ok {
			results[i] = vec
		} else {
			missTexts = append(missTexts, text)
			missIdx = append(missIdx, i)
		}
	}

	if len(missTexts) > 0 {
		vectors, err := s.embedder.Embed(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(missTexts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(missTexts))
		}
		for j, vec := range vectors {
			results[missIdx[j]] = vec
			s.cache.Add(cacheKey(missTexts[j]), vec)
		}
	}

	return results, nil
}

// lookup serves a defensive copy so callers cannot mutate cached vectors.
func (s *Service) lookup(key string) ([]float32, bool) {
	cached, ok := s.cache.Get(key)

	s.mu.Lock()
	if ok {
		s.hits++
	} else {
		s.misses++
	}
	s.mu.Unlock()

	if !ok {
		return nil, false
	}
	vec := make([]float32, len(cached))
	copy(vec, cached)
	return vec, true
}

// Stats reports cache size, capacity and hit/miss counters.
func (s *Service) Stats() map[string]any {
	s.mu.Lock()
	hits, misses := s.hits, s.misses
	s.mu.Unlock()

	total := hits + misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	return map[string]any{
		"size":     s.cache.Len(),
		"capacity": s.capacity,
		"hits":     hits,
		"misses":   misses,
		"hit_rate": fmt.Sprintf("%.2f%%", hitRate),
	}
}

var (
	sharedService *Service
	sharedOnce    sync.Once
	sharedErr     error
)

// Shared returns the process-wide embedding service, creating it on first
// call from the given configuration.
func Shared(ctx context.Context, cfg *config.EmbeddingsConfig) (*Service, error) {
	sharedOnce.Do(func() {
		var embedder Embedder
		embedder, sharedErr = New(cfg)
		if sharedErr != nil {
			return
		}
		sharedService, sharedErr = NewService(ctx, embedder, cfg.CacheSize)
	})
	return sharedService, sharedErr
}

// ResetShared clears the singleton. Tests use this to swap configurations.
func ResetShared() {
	sharedOnce = sync.Once{}
	sharedService = nil
	sharedErr = nil
}
