// Package rag implements multi-round retrieval over the vector store:
// query expansion, hybrid search, cross-encoder reranking with quality
// gates, parent-context loading with neighbor expansion, and streamed
// answer generation. Every round reports its progress as thinking steps.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/chunking"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/llms"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/reranking"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/vectorstore"
)

const (
	maxChatHistory  = 5
	searchFanout    = 3
	refineSnippet   = 500
	queryDisplayLen = 80
)

// Step is one thinking event emitted during retrieval.
type Step struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Source describes where one answer context came from.
type Source struct {
	Label    string `json:"label"`
	Content  string `json:"content"`
	Document string `json:"document"`
	Section  string `json:"section"`
	Score    string `json:"score"`
}

// Engine runs retrieval and answer generation.
type Engine struct {
	cfg      *config.RetrievalConfig
	llm      llms.Provider
	vectors  vectorstore.Store
	reranker reranking.Reranker
	parents  *chunking.ParentStore

	expansion *expansionCache

	counterOnce sync.Once
	counter     *tokenCounter
}

// NewEngine wires the retrieval engine.
func NewEngine(
	cfg *config.RetrievalConfig,
	llm llms.Provider,
	vectors vectorstore.Store,
	reranker reranking.Reranker,
	parents *chunking.ParentStore,
) *Engine {
	return &Engine{
		cfg:       cfg,
		llm:       llm,
		vectors:   vectors,
		reranker:  reranker,
		parents:   parents,
		expansion: newExpansionCache(cfg.ExpansionCacheSize, cfg.ExpansionCacheTTL),
	}
}

// chunkEntry is one accumulated retrieval hit.
type chunkEntry struct {
	vectorstore.SearchResult
	metadataPriority bool
}

// scoredChunk is a chunk after reranking.
type scoredChunk struct {
	chunkEntry
	rerankScore float64
}

// run holds the per-query retrieval state.
type run struct {
	engine      *Engine
	docIDs      []int64
	seen        map[string]bool
	accumulated []chunkEntry
	steps       []Step
	onStep      func(Step)
}

func (r *run) emit(stepType, message string, details any) {
	step := Step{Type: stepType, Message: message, Details: details}
	r.steps = append(r.steps, step)
	if r.onStep != nil {
		r.onStep(step)
	}
}

// Retrieve runs the multi-round retrieval for one question over the active
// documents. emit receives thinking steps as they happen; the full list is
// also returned. Reranker and search failures abort the query.
func (e *Engine) Retrieve(ctx context.Context, query string, activeDocs []int64, emit func(Step)) ([]string, []Source, []Step, error) {
	r := &run{
		engine: e,
		docIDs: activeDocs,
		seen:   make(map[string]bool),
		onStep: emit,
	}

	r.emit("start", "Starting iterative multi-query retrieval...", nil)
	r.emit("round1_start", "Round 1: Generating 3 query variations...", nil)

	variations := e.Expand(ctx, query)
	r.emit("queries_generated", "Generated queries", variations)

	if len(activeDocs) == 0 {
		r.emit("no_documents", "No active document collections selected", nil)
		return []string{}, []Source{}, r.steps, nil
	}

	if err := r.search(ctx, variations, "Round 1"); err != nil {
		return nil, nil, r.steps, err
	}
	if err := r.injectMetadata(ctx); err != nil {
		return nil, nil, r.steps, err
	}
	r.emit("round1_dedup", fmt.Sprintf("Round 1 total: %d chunks (incl. metadata)", len(r.accumulated)), nil)

	var reranked []scoredChunk
	round1Best := 0.0
	if len(r.accumulated) == 0 {
		r.emit("round1_no_results", "No results in Round 1, proceeding to Round 2...", nil)
	} else {
		r.emit("round1_reranking", fmt.Sprintf("Reranking %d chunks...", len(r.accumulated)), nil)
		var err error
		reranked, err = r.rerank(ctx, query)
		if err != nil {
			return nil, nil, r.steps, err
		}
		round1Best = bestScore(reranked)
		r.emit("round1_score", fmt.Sprintf("Round 1 best score: %.3f", round1Best), scoreDetails(reranked))

		if round1Best >= e.cfg.GoodScore {
			r.emit("round1_success",
				fmt.Sprintf("Good quality results (score: %.3f), skipping additional rounds", round1Best), nil)
			contexts, sources := e.loadParents(r, reranked)
			r.emit("complete", fmt.Sprintf("Retrieved %d contexts", len(contexts)), nil)
			return contexts, sources, r.steps, nil
		}
	}

	if round1Best < e.cfg.MinAcceptableScore {
		var err error
		reranked, err = r.retryRound(ctx, query, round1Best)
		if err != nil {
			return nil, nil, r.steps, err
		}
	} else {
		r.emit("round1_acceptable",
			fmt.Sprintf("Acceptable quality (score: %.3f), no retry needed", round1Best), nil)
		var err error
		reranked, err = r.rerank(ctx, query)
		if err != nil {
			return nil, nil, r.steps, err
		}
	}

	if len(reranked) == 0 {
		r.emit("no_results", "No results to return", nil)
		return []string{}, []Source{}, r.steps, nil
	}

	r.emit("loading_parents", "Loading parent documents...", nil)
	contexts, sources := e.loadParents(r, reranked)
	r.emit("complete", fmt.Sprintf("Completed with %d contexts", len(contexts)), nil)
	return contexts, sources, r.steps, nil
}

// retryRound runs Round 2 and, when it helps but not enough, Round 3.
func (r *run) retryRound(ctx context.Context, query string, round1Best float64) ([]scoredChunk, error) {
	e := r.engine
	r.emit("round2_start",
		fmt.Sprintf("Round 2: Score %.3f < %.1f, trying alternative formulations...",
			round1Best, e.cfg.MinAcceptableScore), nil)

	queries := e.generateQueries(ctx, alternativeQueriesPrompt, "Original question: "+query, query, "Round 2")
	r.emit("round2_queries", "Generated alternative queries", queries)

	if err := r.search(ctx, queries, "Round 2"); err != nil {
		return nil, err
	}
	if err := r.injectMetadata(ctx); err != nil {
		return nil, err
	}
	r.emit("round2_dedup", fmt.Sprintf("Round 2 total: %d chunks (incl. metadata)", len(r.accumulated)), nil)

	if len(r.accumulated) == 0 {
		r.emit("no_results_final", "No results found after 6 queries (Round 1 + Round 2)", nil)
		return nil, nil
	}

	r.emit("round2_reranking", fmt.Sprintf("Reranking all %d accumulated chunks...", len(r.accumulated)), nil)
	reranked, err := r.rerank(ctx, query)
	if err != nil {
		return nil, err
	}
	round2Best := bestScore(reranked)
	improvement := round2Best - round1Best
	r.emit("round2_score",
		fmt.Sprintf("Round 2 best score: %.3f (improvement: +%.3f)", round2Best, improvement),
		scoreDetails(reranked))

	switch {
	case round2Best >= e.cfg.GoodScore:
		r.emit("round2_success", fmt.Sprintf("Good quality achieved (score: %.3f)", round2Best), nil)
	case improvement > 0:
		return r.refinementRound(ctx, query, reranked, improvement)
	default:
		r.emit("round2_final", "No improvement after Round 2, using best available results", nil)
	}
	return reranked, nil
}

// refinementRound runs Round 3 seeded with the best chunk found so far.
func (r *run) refinementRound(ctx context.Context, query string, reranked []scoredChunk, improvement float64) ([]scoredChunk, error) {
	e := r.engine
	r.emit("round3_start",
		fmt.Sprintf("Round 3: Improvement detected (+%.3f), refining based on best results...", improvement), nil)

	bestContext := ""
	if len(reranked) > 0 {
		bestContext = truncateRunes(reranked[0].Text, refineSnippet)
	}
	user := fmt.Sprintf("Original question: %s\n\nPartially relevant content found:\n%s", query, bestContext)
	queries := e.generateQueries(ctx, refinedQueriesPrompt, user, query, "Round 3")
	r.emit("round3_queries", "Generated refined queries", queries)

	if err := r.search(ctx, queries, "Round 3"); err != nil {
		return nil, err
	}
	if err := r.injectMetadata(ctx); err != nil {
		return nil, err
	}
	r.emit("round3_dedup", fmt.Sprintf("Round 3 total: %d chunks (incl. metadata)", len(r.accumulated)), nil)
	r.emit("round3_reranking", fmt.Sprintf("Final reranking of all %d chunks...", len(r.accumulated)), nil)

	final, err := r.rerank(ctx, query)
	if err != nil {
		return nil, err
	}
	r.emit("round3_score", fmt.Sprintf("Final best score: %.3f", bestScore(final)), scoreDetails(final))
	return final, nil
}

// search fans the queries out over the vector store and folds new chunks
// into the accumulator, first-seen order preserved per query.
func (r *run) search(ctx context.Context, queries []string, roundName string) error {
	results := make([][]vectorstore.SearchResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(searchFanout)

	for i, q := range queries {
		r.emit("searching", fmt.Sprintf("%s Query %d: %s", roundName, i+1, displayQuery(q)), nil)
		g.Go(func() error {
			hits, err := r.engine.vectors.Search(gctx, q, r.docIDs, r.engine.cfg.TopKRetrieval)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			results[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, hits := range results {
		newChunks := 0
		for _, hit := range hits {
			key := fmt.Sprintf("%d_%s", hit.DocID, hit.ChunkID)
			if r.seen[key] {
				continue
			}
			r.seen[key] = true
			r.accumulated = append(r.accumulated, chunkEntry{SearchResult: hit})
			newChunks++
		}
		r.emit("search_complete",
			fmt.Sprintf("%s Query %d: %d results, %d new unique chunks", roundName, i+1, len(hits), newChunks), nil)
	}
	return nil
}

// injectMetadata adds each hit document's metadata chunk to the
// accumulator unless search already surfaced it.
func (r *run) injectMetadata(ctx context.Context) error {
	docsHit := make(map[int64]bool)
	docsWithMetadata := make(map[int64]bool)
	for _, c := range r.accumulated {
		docsHit[c.DocID] = true
		if c.Section == chunking.SectionMetadata {
			docsWithMetadata[c.DocID] = true
		}
	}
	if len(docsHit) == 0 {
		return nil
	}

	docIDs := make([]int64, 0, len(docsHit))
	for id := range docsHit {
		docIDs = append(docIDs, id)
	}
	metaChunks, err := r.engine.vectors.MetadataChunks(ctx, docIDs)
	if err != nil {
		return fmt.Errorf("metadata chunk lookup failed: %w", err)
	}

	injected := 0
	for _, meta := range metaChunks {
		if docsWithMetadata[meta.DocID] {
			continue
		}
		key := fmt.Sprintf("meta_%d_%s", meta.DocID, meta.ChunkID)
		if r.seen[key] {
			continue
		}
		r.seen[key] = true
		r.accumulated = append(r.accumulated, chunkEntry{SearchResult: meta, metadataPriority: true})
		docsWithMetadata[meta.DocID] = true
		injected++
	}
	if injected > 0 {
		r.emit("metadata_injection",
			fmt.Sprintf("Injected %d metadata chunks for %d documents", injected, len(docIDs)), nil)
	}
	return nil
}

// rerank scores the full accumulator against the query with the adaptive
// threshold applied.
func (r *run) rerank(ctx context.Context, query string) ([]scoredChunk, error) {
	if len(r.accumulated) == 0 {
		return nil, nil
	}
	candidates := make([]reranking.Candidate, len(r.accumulated))
	for i, c := range r.accumulated {
		candidates[i] = reranking.Candidate{
			ID:    strconv.Itoa(i),
			Text:  c.Text,
			Score: c.Score,
		}
	}

	out, err := r.engine.reranker.Rerank(ctx, query, candidates, r.engine.cfg.TopKRerank, true)
	if err != nil {
		return nil, fmt.Errorf("reranking failed: %w", err)
	}

	reranked := make([]scoredChunk, 0, len(out))
	for _, c := range out {
		idx, err := strconv.Atoi(c.ID)
		if err != nil || idx < 0 || idx >= len(r.accumulated) {
			continue
		}
		reranked = append(reranked, scoredChunk{
			chunkEntry:  r.accumulated[idx],
			rerankScore: c.Score,
		})
	}
	return reranked, nil
}

func bestScore(reranked []scoredChunk) float64 {
	if len(reranked) == 0 {
		return 0
	}
	return reranked[0].rerankScore
}

func scoreDetails(reranked []scoredChunk) []map[string]any {
	n := len(reranked)
	if n > 3 {
		n = 3
	}
	details := make([]map[string]any, 0, n)
	for _, c := range reranked[:n] {
		details = append(details, map[string]any{"text": truncateRunes(c.Text, queryDisplayLen), "score": c.rerankScore})
	}
	return details
}

func displayQuery(q string) string {
	if utf8.RuneCountInString(q) > queryDisplayLen {
		return `"` + truncateRunes(q, queryDisplayLen) + `..."`
	}
	return `"` + q + `"`
}

// truncateRunes cuts text to at most max characters on rune boundaries.
func truncateRunes(text string, max int) string {
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	return string([]rune(text)[:max])
}

var queryPrefixRe = regexp.MustCompile(`^\s*(?:\d+[.)]\s*|[-*•]\s*)`)

// Expand returns exactly 3 query variations, cached per normalized query.
func (e *Engine) Expand(ctx context.Context, query string) []string {
	key := normalizeQuery(query)
	if cached, ok := e.expansion.get(key); ok {
		slog.Debug("Query expansion cache hit", "query", displayQuery(query))
		return cached
	}

	variants := e.generateQueries(ctx, queryExpansionPrompt, "Original question: "+query, query, "Query expansion")
	for len(variants) < 3 {
		variants = append(variants, query)
	}
	variants = variants[:3]

	e.expansion.put(key, variants)
	return variants
}

// generateQueries asks the LLM for up to 3 queries. Failures fall back to
// the original question so retrieval always has something to run.
func (e *Engine) generateQueries(ctx context.Context, system, user, original, roundName string) []string {
	response, err := e.llm.Generate(ctx, []llms.Message{
		llms.System(system),
		llms.User(user),
	})
	if err != nil {
		slog.Warn("Query generation failed", "round", roundName, "error", err)
		return []string{original}
	}

	var queries []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(queryPrefixRe.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		queries = append(queries, line)
		if len(queries) == 3 {
			break
		}
	}
	if len(queries) == 0 {
		return []string{original}
	}
	return queries
}
