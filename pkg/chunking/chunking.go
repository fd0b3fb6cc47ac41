// Package chunking splits document text into overlapping parent and child
// windows. Children are what gets embedded and searched; parents are the
// larger context units handed to the LLM, stored in a JSON side-store.
package chunking

import (
	"strings"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
)

// Section and position labels attached to child chunks.
const (
	SectionBody     = "Body"
	SectionMetadata = "Document Metadata"

	PositionMiddle   = "middle"
	PositionMetadata = "metadata"
)

// Child is one embeddable chunk with its parent linkage.
type Child struct {
	Text        string
	ParentID    int
	Section     string
	Position    string
	IsMetadata  bool
	ChunkIndex  int
	TotalChunks int
}

// Chunker produces parent and child windows per the configured sizes.
type Chunker struct {
	cfg *config.ChunkingConfig
}

// New creates a chunker from configuration.
func New(cfg *config.ChunkingConfig) *Chunker {
	return &Chunker{cfg: cfg}
}

// splitWindows cuts text into character windows with the given size and
// overlap. Sizes count runes, not bytes, so multi-byte characters are
// never split. The trailing short window is kept; whitespace-only windows
// are dropped.
func splitWindows(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	stride := size - overlap
	var windows []string
	for start := 0; start < len(runes); start += stride {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		window := string(runes[start:end])
		if strings.TrimSpace(window) != "" {
			windows = append(windows, window)
		}
		if end == len(runes) {
			break
		}
	}
	return windows
}

// SplitParents cuts text into parent windows.
func (c *Chunker) SplitParents(text string) []string {
	return splitWindows(text, c.cfg.ParentSize, c.cfg.ParentOverlap)
}

// SplitChildren cuts text into child windows.
func (c *Chunker) SplitChildren(text string) []string {
	return splitWindows(text, c.cfg.ChildSize, c.cfg.ChildOverlap)
}

// BuildChunks produces the parent slice for the side-store and the child
// chunks to embed. A non-empty metadataChunk becomes parent 0 and a single
// metadata child prepended to the body children.
func (c *Chunker) BuildChunks(text, metadataChunk string) (parents []string, children []Child) {
	bodyParents := c.SplitParents(text)

	parentOffset := 0
	if metadataChunk != "" {
		parents = append(parents, metadataChunk)
		parentOffset = 1

		children = append(children, Child{
			Text:       metadataChunk,
			ParentID:   0,
			Section:    SectionMetadata,
			Position:   PositionMetadata,
			IsMetadata: true,
		})
	}
	parents = append(parents, bodyParents...)

	for p, parentText := range bodyParents {
		for _, childText := range c.SplitChildren(parentText) {
			children = append(children, Child{
				Text:     childText,
				ParentID: p + parentOffset,
				Section:  SectionBody,
				Position: PositionMiddle,
			})
		}
	}

	for i := range children {
		children[i].ChunkIndex = i
		children[i].TotalChunks = len(children)
	}
	return parents, children
}
