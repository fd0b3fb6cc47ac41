// Package docmeta extracts bibliographic metadata from uploaded documents
// and renders it as a dedicated chunk so queries about authorship and
// provenance can hit it directly.
package docmeta

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Squiddl/sma-group2-mini-rag/pkg/config"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/extraction"
	"github.com/Squiddl/sma-group2-mini-rag/pkg/llms"
)

// Fields holds the extracted metadata. Empty strings mean absent.
type Fields struct {
	Title       string
	Author      string
	Institution string
	Date        string
	DocType     string
	Keywords    string
	Abstract    string
}

const llmExtractionPrompt = `Extract the following metadata from the beginning of this document.
Answer with one field per line, exactly in this format:

Title: ...
Author(s): ...
Institution(s): ...
Date/Year: ...
Document Type: ...
Keywords: ...
Abstract: ...

Write "(not found)" for fields the text does not contain.

Document text:
`

// Extractor derives document metadata via the PDF info dictionary and,
// optionally, an LLM pass over the first pages.
type Extractor struct {
	cfg       *config.MetadataConfig
	llm       llms.Provider
	extractor *extraction.Extractor
}

// New creates a metadata extractor. llm may be nil when the LLM path is
// disabled.
func New(cfg *config.MetadataConfig, llm llms.Provider, extractor *extraction.Extractor) *Extractor {
	return &Extractor{cfg: cfg, llm: llm, extractor: extractor}
}

// Extract returns metadata for the file. The fast path reads the PDF info
// dictionary; the LLM path refines it from the first pages. LLM failures
// fall back to the fast result and never fail ingestion.
func (e *Extractor) Extract(ctx context.Context, path, filename string) Fields {
	fields := fastFields(path)

	if !e.cfg.UseLLM || e.llm == nil {
		return fields
	}

	text, err := e.extractor.FirstPagesText(path, e.cfg.FirstPages, e.cfg.FirstPagesMaxChars)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			slog.Warn("First pages extraction failed, keeping fast metadata", "file", filename, "error", err)
		}
		return fields
	}

	response, err := e.llm.Generate(ctx, []llms.Message{
		llms.User(llmExtractionPrompt + text),
	})
	if err != nil {
		slog.Warn("LLM metadata extraction failed, keeping fast metadata", "file", filename, "error", err)
		return fields
	}

	llmFields := ParseLLMResponse(response)
	mergeFields(&fields, llmFields)
	return fields
}

// fastFields maps the PDF info dictionary onto the field set.
func fastFields(path string) Fields {
	info := extraction.PDFMetadata(path)
	return Fields{
		Title:    info["title"],
		Author:   info["author"],
		Date:     info["creation_date"],
		Keywords: info["keywords"],
	}
}

// mergeFields overlays non-empty LLM fields onto the fast result.
func mergeFields(dst *Fields, src Fields) {
	if src.Title != "" {
		dst.Title = src.Title
	}
	if src.Author != "" {
		dst.Author = src.Author
	}
	if src.Institution != "" {
		dst.Institution = src.Institution
	}
	if src.Date != "" {
		dst.Date = src.Date
	}
	if src.DocType != "" {
		dst.DocType = src.DocType
	}
	if src.Keywords != "" {
		dst.Keywords = src.Keywords
	}
	if src.Abstract != "" {
		dst.Abstract = src.Abstract
	}
}
