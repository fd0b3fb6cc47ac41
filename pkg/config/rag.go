package config

import (
	"fmt"
	"time"
)

// ChunkingConfig sizes the parent and child character windows.
// Children are what gets embedded and searched; parents are what gets
// handed to the LLM as context.
type ChunkingConfig struct {
	ParentSize    int `yaml:"parent_size,omitempty" json:"parent_size,omitempty" jsonschema:"title=Parent Size,description=Parent chunk size in characters,default=2000"`
	ParentOverlap int `yaml:"parent_overlap,omitempty" json:"parent_overlap,omitempty" jsonschema:"title=Parent Overlap,default=400"`
	ChildSize     int `yaml:"child_size,omitempty" json:"child_size,omitempty" jsonschema:"title=Child Size,description=Child chunk size in characters,default=400"`
	ChildOverlap  int `yaml:"child_overlap,omitempty" json:"child_overlap,omitempty" jsonschema:"title=Child Overlap,default=80"`
}

func (c *ChunkingConfig) SetDefaults() {
	if c.ParentSize == 0 {
		c.ParentSize = 2000
	}
	if c.ParentOverlap == 0 {
		c.ParentOverlap = 400
	}
	if c.ChildSize == 0 {
		c.ChildSize = 400
	}
	if c.ChildOverlap == 0 {
		c.ChildOverlap = 80
	}
}

func (c *ChunkingConfig) Validate() error {
	if c.ParentSize <= 0 || c.ChildSize <= 0 {
		return fmt.Errorf("chunk sizes must be positive")
	}
	if c.ParentOverlap < 0 || c.ChildOverlap < 0 {
		return fmt.Errorf("chunk overlaps must be non-negative")
	}
	if c.ParentOverlap >= c.ParentSize {
		return fmt.Errorf("parent_overlap (%d) must be smaller than parent_size (%d)", c.ParentOverlap, c.ParentSize)
	}
	if c.ChildOverlap >= c.ChildSize {
		return fmt.Errorf("child_overlap (%d) must be smaller than child_size (%d)", c.ChildOverlap, c.ChildSize)
	}
	return nil
}

// RetrievalConfig tunes multi-query retrieval and context expansion.
type RetrievalConfig struct {
	// TopKRetrieval is how many child chunks each search returns.
	TopKRetrieval int `yaml:"top_k_retrieval,omitempty" json:"top_k_retrieval,omitempty" jsonschema:"title=Top K Retrieval,default=20"`

	// TopKRerank is how many contexts survive reranking and expansion.
	TopKRerank int `yaml:"top_k_rerank,omitempty" json:"top_k_rerank,omitempty" jsonschema:"title=Top K Rerank,default=6"`

	// EnableNeighborExpansion pads thin results with parent chunks adjacent
	// to the ones that matched.
	EnableNeighborExpansion *bool `yaml:"enable_neighbor_expansion,omitempty" json:"enable_neighbor_expansion,omitempty" jsonschema:"title=Neighbor Expansion,default=true"`

	// NeighborWindow is how many following parents may be pulled in per
	// hit. A pointer so an explicit 0 (expansion off) survives defaulting.
	NeighborWindow *int `yaml:"neighbor_window,omitempty" json:"neighbor_window,omitempty" jsonschema:"title=Neighbor Window,default=4"`

	// MinAcceptableScore and GoodScore are the quality gates between
	// retrieval rounds.
	MinAcceptableScore float64 `yaml:"min_acceptable_score,omitempty" json:"min_acceptable_score,omitempty" jsonschema:"title=Min Acceptable Score,default=0.4"`
	GoodScore          float64 `yaml:"good_score,omitempty" json:"good_score,omitempty" jsonschema:"title=Good Score,default=0.5"`

	// Query expansion cache.
	ExpansionCacheSize int           `yaml:"query_expansion_cache_size,omitempty" json:"query_expansion_cache_size,omitempty" jsonschema:"title=Expansion Cache Size,default=1000"`
	ExpansionCacheTTL  time.Duration `yaml:"query_expansion_cache_ttl,omitempty" json:"query_expansion_cache_ttl,omitempty" jsonschema:"title=Expansion Cache TTL,default=1h"`
}

func (c *RetrievalConfig) SetDefaults() {
	if c.TopKRetrieval == 0 {
		c.TopKRetrieval = 20
	}
	if c.TopKRerank == 0 {
		c.TopKRerank = 6
	}
	if c.EnableNeighborExpansion == nil {
		t := true
		c.EnableNeighborExpansion = &t
	}
	if c.NeighborWindow == nil {
		n := 4
		c.NeighborWindow = &n
	}
	if c.MinAcceptableScore == 0 {
		c.MinAcceptableScore = 0.4
	}
	if c.GoodScore == 0 {
		c.GoodScore = 0.5
	}
	if c.ExpansionCacheSize == 0 {
		c.ExpansionCacheSize = 1000
	}
	if c.ExpansionCacheTTL == 0 {
		c.ExpansionCacheTTL = time.Hour
	}
}

func (c *RetrievalConfig) Validate() error {
	if c.TopKRetrieval < 1 {
		return fmt.Errorf("top_k_retrieval must be positive, got %d", c.TopKRetrieval)
	}
	if c.TopKRerank < 1 {
		return fmt.Errorf("top_k_rerank must be positive, got %d", c.TopKRerank)
	}
	if c.TopKRerank > c.TopKRetrieval {
		return fmt.Errorf("top_k_rerank (%d) must not exceed top_k_retrieval (%d)", c.TopKRerank, c.TopKRetrieval)
	}
	if c.NeighborWindow != nil && *c.NeighborWindow < 0 {
		return fmt.Errorf("neighbor_window must be non-negative, got %d", *c.NeighborWindow)
	}
	if c.MinAcceptableScore < 0 || c.MinAcceptableScore > 1 ||
		c.GoodScore < 0 || c.GoodScore > 1 {
		return fmt.Errorf("quality gates must be between 0 and 1")
	}
	if c.MinAcceptableScore > c.GoodScore {
		return fmt.Errorf("min_acceptable_score (%g) must not exceed good_score (%g)", c.MinAcceptableScore, c.GoodScore)
	}
	if c.ExpansionCacheSize < 1 {
		return fmt.Errorf("query_expansion_cache_size must be positive")
	}
	if c.ExpansionCacheTTL <= 0 {
		return fmt.Errorf("query_expansion_cache_ttl must be positive")
	}
	return nil
}

// NeighborExpansionEnabled reports whether thin results are padded with
// adjacent parents.
func (c *RetrievalConfig) NeighborExpansionEnabled() bool {
	return (c.EnableNeighborExpansion == nil || *c.EnableNeighborExpansion) && c.NeighborWindowSize() > 0
}

// NeighborWindowSize returns the configured window, defaulting to 4 when
// unset.
func (c *RetrievalConfig) NeighborWindowSize() int {
	if c.NeighborWindow == nil {
		return 4
	}
	return *c.NeighborWindow
}

// MetadataConfig tunes document metadata extraction.
type MetadataConfig struct {
	// UseLLM enables LLM-backed extraction from the first pages. Off by
	// default; the fast path reads the PDF info dictionary only.
	UseLLM bool `yaml:"use_llm_extraction,omitempty" json:"use_llm_extraction,omitempty" jsonschema:"title=Use LLM Extraction,default=false"`

	// FirstPages is how many leading pages feed the LLM prompt.
	FirstPages int `yaml:"first_pages,omitempty" json:"first_pages,omitempty" jsonschema:"title=First Pages,default=2"`

	// FirstPagesMaxChars caps the sampled text length.
	FirstPagesMaxChars int `yaml:"first_pages_max_chars,omitempty" json:"first_pages_max_chars,omitempty" jsonschema:"title=First Pages Max Chars,default=4000"`
}

func (c *MetadataConfig) SetDefaults() {
	if c.FirstPages == 0 {
		c.FirstPages = 2
	}
	if c.FirstPagesMaxChars == 0 {
		c.FirstPagesMaxChars = 4000
	}
}

func (c *MetadataConfig) Validate() error {
	if c.FirstPages < 1 {
		return fmt.Errorf("first_pages must be positive, got %d", c.FirstPages)
	}
	if c.FirstPagesMaxChars < 1 {
		return fmt.Errorf("first_pages_max_chars must be positive, got %d", c.FirstPagesMaxChars)
	}
	return nil
}
