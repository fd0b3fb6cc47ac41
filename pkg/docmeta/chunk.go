package docmeta

import (
	"fmt"
	"strings"
)

// MetadataChunk renders the metadata block that is embedded as its own
// chunk. Author paraphrases make the chunk match natural-language questions
// about authorship. Absent fields are omitted entirely.
func MetadataChunk(filename string, f Fields) string {
	var sb strings.Builder
	sb.WriteString("=== DOCUMENT METADATA ===\n")
	fmt.Fprintf(&sb, "Filename: %s\n", filename)

	if f.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", f.Title)
	}
	if f.Author != "" {
		fmt.Fprintf(&sb, "Author(s): %s\n", f.Author)
		fmt.Fprintf(&sb, "This document was written by %s.\n", f.Author)
		fmt.Fprintf(&sb, "The author of this paper is %s.\n", f.Author)
	}
	if f.Institution != "" {
		fmt.Fprintf(&sb, "Institution(s): %s\n", f.Institution)
		fmt.Fprintf(&sb, "Affiliation: %s\n", f.Institution)
	}
	if f.Date != "" {
		fmt.Fprintf(&sb, "Date/Year: %s\n", f.Date)
		fmt.Fprintf(&sb, "Published: %s\n", f.Date)
	}
	if f.DocType != "" {
		fmt.Fprintf(&sb, "Document Type: %s\n", f.DocType)
	}
	if f.Keywords != "" {
		fmt.Fprintf(&sb, "Keywords: %s\n", f.Keywords)
	}
	if f.Abstract != "" {
		fmt.Fprintf(&sb, "\nAbstract:\n%s\n", f.Abstract)
	}

	sb.WriteString("=== END METADATA ===")
	return sb.String()
}
