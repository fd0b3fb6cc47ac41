package rag

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// parentEntry is one parent context selected for the answer.
type parentEntry struct {
	docID      int64
	parentID   int
	docName    string
	section    string
	score      float64
	text       string
	isNeighbor bool
	direction  int
	docOrder   int
}

type parentKey struct {
	docID    int64
	parentID int
}

// loadParents resolves reranked chunks to their parent contexts, padding
// thin results with neighboring parents, and builds the source records.
func (e *Engine) loadParents(r *run, reranked []scoredChunk) ([]string, []Source) {
	limit := e.cfg.TopKRerank
	if limit < 1 {
		limit = 1
	}

	var entries []parentEntry
	seen := make(map[parentKey]bool)
	docOrder := make(map[int64]int)

	order := func(docID int64) int {
		if _, ok := docOrder[docID]; !ok {
			docOrder[docID] = len(docOrder)
		}
		return docOrder[docID]
	}

	for _, chunk := range reranked {
		if chunk.ParentID < 0 {
			continue
		}
		key := parentKey{chunk.DocID, chunk.ParentID}
		if seen[key] {
			continue
		}

		text, err := e.parents.LoadOne(chunk.DocID, chunk.ParentID)
		if err != nil || strings.TrimSpace(text) == "" {
			if err != nil {
				slog.Debug("Parent load failed", "doc_id", chunk.DocID, "parent_id", chunk.ParentID, "error", err)
			}
			continue
		}

		entries = append(entries, parentEntry{
			docID:    chunk.DocID,
			parentID: chunk.ParentID,
			docName:  chunk.DocumentName,
			section:  chunk.Section,
			score:    chunk.rerankScore,
			text:     text,
			docOrder: order(chunk.DocID),
		})
		seen[key] = true
		if len(entries) >= limit {
			break
		}
	}

	entries = e.expandNeighbors(entries, seen, order, limit)

	contexts := make([]string, 0, len(entries))
	sources := make([]Source, 0, len(entries))
	for _, entry := range entries {
		contexts = append(contexts, entry.text)
		sources = append(sources, buildSource(entry))
	}
	return contexts, sources
}

// expandNeighbors pads thin results with the parents adjacent to the ones
// that matched: the previous parent first, then up to window following
// ones, per base entry in score order.
func (e *Engine) expandNeighbors(entries []parentEntry, seen map[parentKey]bool, order func(int64) int, limit int) []parentEntry {
	window := e.cfg.NeighborWindowSize()
	if !e.cfg.NeighborExpansionEnabled() || window <= 0 || len(entries) >= limit {
		if len(entries) > limit {
			entries = entries[:limit]
		}
		return entries
	}

	expanded := entries
	base := make([]parentEntry, len(entries))
	copy(base, entries)

	addNeighbor := func(from parentEntry, parentID int, weight float64, direction int) bool {
		key := parentKey{from.docID, parentID}
		if parentID < 0 || seen[key] {
			return false
		}
		text, err := e.parents.LoadOne(from.docID, parentID)
		if err != nil || strings.TrimSpace(text) == "" {
			return false
		}
		score := from.score * weight
		if score < 0 {
			score = 0
		}
		expanded = append(expanded, parentEntry{
			docID:      from.docID,
			parentID:   parentID,
			docName:    from.docName,
			section:    from.section,
			score:      score,
			text:       text,
			isNeighbor: true,
			direction:  direction,
			docOrder:   order(from.docID),
		})
		seen[key] = true
		return true
	}

	for _, entry := range base {
		if len(expanded) >= limit {
			break
		}
		addNeighbor(entry, entry.parentID-1, 0.95, -1)

		for offset := 1; offset <= window; offset++ {
			if len(expanded) >= limit {
				break
			}
			addNeighbor(entry, entry.parentID+offset, 0.98, 1)
		}
	}

	anyNeighbor := false
	for _, entry := range expanded {
		if entry.isNeighbor {
			anyNeighbor = true
			break
		}
	}
	if anyNeighbor {
		// Reading order: keep each document's parents together, ascending.
		sort.SliceStable(expanded, func(i, j int) bool {
			if expanded[i].docOrder != expanded[j].docOrder {
				return expanded[i].docOrder < expanded[j].docOrder
			}
			return expanded[i].parentID < expanded[j].parentID
		})
	} else {
		sort.SliceStable(expanded, func(i, j int) bool {
			return expanded[i].score > expanded[j].score
		})
	}

	if len(expanded) > limit {
		expanded = expanded[:limit]
	}
	return expanded
}

func buildSource(entry parentEntry) Source {
	name := entry.docName
	if name == "" {
		name = "Document"
	}

	parts := []string{name}
	if entry.section != "" && entry.section != "Unknown" && entry.section != "Introduction" {
		parts = append(parts, "§ "+entry.section)
	}
	if entry.isNeighbor {
		switch {
		case entry.direction > 0:
			parts = append(parts, "Folgeabschnitt")
		case entry.direction < 0:
			parts = append(parts, "Vorabschnitt")
		default:
			parts = append(parts, "Nachbarabschnitt")
		}
	}
	parts = append(parts, fmt.Sprintf("(Relevanz: %.0f%%)", entry.score*100))

	return Source{
		Label:    strings.Join(parts, " - "),
		Content:  strings.TrimSpace(entry.text),
		Document: name,
		Section:  entry.section,
		Score:    fmt.Sprintf("%.3f", entry.score),
	}
}
