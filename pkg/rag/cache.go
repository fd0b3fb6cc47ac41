package rag

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// expansionCache is a TTL-bounded LRU for query expansions. Repeat
// questions skip the expansion LLM call entirely.
type expansionCache struct {
	entries *expirable.LRU[string, []string]
}

func newExpansionCache(capacity int, ttl time.Duration) *expansionCache {
	return &expansionCache{
		entries: expirable.NewLRU[string, []string](capacity, nil, ttl),
	}
}

func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

func (c *expansionCache) get(key string) ([]string, bool) {
	queries, ok := c.entries.Get(key)
	if !ok {
		return nil, false
	}
	out := make([]string, len(queries))
	copy(out, queries)
	return out, true
}

func (c *expansionCache) put(key string, queries []string) {
	c.entries.Add(key, queries)
}
