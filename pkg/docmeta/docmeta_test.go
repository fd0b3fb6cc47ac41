package docmeta

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLLMResponse(t *testing.T) {
	response := `Title: Attention Is All You Need
Author(s): Vaswani et al.
Institution(s): Google Brain
Date/Year: 2017
Document Type: Conference Paper
Keywords: transformer, attention
Abstract: The dominant sequence transduction models are based on
complex recurrent or convolutional neural networks.`

	f := ParseLLMResponse(response)
	assert.Equal(t, "Attention Is All You Need", f.Title)
	assert.Equal(t, "Vaswani et al.", f.Author)
	assert.Equal(t, "Google Brain", f.Institution)
	assert.Equal(t, "2017", f.Date)
	assert.Equal(t, "Conference Paper", f.DocType)
	assert.Equal(t, "transformer, attention", f.Keywords)
	assert.Equal(t, "The dominant sequence transduction models are based on complex recurrent or convolutional neural networks.", f.Abstract)
}

func TestParseLLMResponseAliases(t *testing.T) {
	f := ParseLLMResponse("Author: Jane Doe\nYear: 2020\nType: Thesis")
	assert.Equal(t, "Jane Doe", f.Author)
	assert.Equal(t, "2020", f.Date)
	assert.Equal(t, "Thesis", f.DocType)
}

func TestParseLLMResponsePlaceholders(t *testing.T) {
	f := ParseLLMResponse("Title: (not found)\nAuthor: unknown\nKeywords:")
	assert.Empty(t, f.Title)
	assert.Empty(t, f.Author)
	assert.Empty(t, f.Keywords)
}

func TestParseLLMResponseMultilineAbstract(t *testing.T) {
	response := `Abstract: First sentence.
Second sentence continues.

Keywords: alpha, beta`

	f := ParseLLMResponse(response)
	assert.Equal(t, "First sentence. Second sentence continues.", f.Abstract)
	assert.Equal(t, "alpha, beta", f.Keywords)
}

func TestParseLLMResponseCaseInsensitive(t *testing.T) {
	f := ParseLLMResponse("TITLE: Loud Title\nauthor(s): quiet author")
	assert.Equal(t, "Loud Title", f.Title)
	assert.Equal(t, "quiet author", f.Author)
}

func TestMetadataChunkFull(t *testing.T) {
	chunk := MetadataChunk("paper.pdf", Fields{
		Title:       "A Title",
		Author:      "Jane Doe",
		Institution: "Uni Leipzig",
		Date:        "2023",
		DocType:     "Paper",
		Keywords:    "rag, retrieval",
		Abstract:    "Short abstract.",
	})

	assert.True(t, strings.HasPrefix(chunk, "=== DOCUMENT METADATA ===\n"))
	assert.True(t, strings.HasSuffix(chunk, "=== END METADATA ==="))
	assert.Contains(t, chunk, "Filename: paper.pdf")
	assert.Contains(t, chunk, "This document was written by Jane Doe.")
	assert.Contains(t, chunk, "The author of this paper is Jane Doe.")
	assert.Contains(t, chunk, "Affiliation: Uni Leipzig")
	assert.Contains(t, chunk, "Published: 2023")
	assert.Contains(t, chunk, "\nAbstract:\nShort abstract.\n")
}

func TestMetadataChunkSparse(t *testing.T) {
	chunk := MetadataChunk("empty.pdf", Fields{})

	assert.Contains(t, chunk, "Filename: empty.pdf")
	assert.NotContains(t, chunk, "Title:")
	assert.NotContains(t, chunk, "Author")
	assert.NotContains(t, chunk, "Abstract")
}
