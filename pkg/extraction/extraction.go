// Package extraction turns uploaded files into plain text. Extractors are
// registered per file extension; PDF extraction can route through an
// external MCP converter before falling back to the native parser.
package extraction

import (
	"fmt"
	"path/filepath"
	"strings"
)

// UnsupportedFileTypeError marks files no registered extractor handles.
type UnsupportedFileTypeError struct {
	Extension string
}

func (e *UnsupportedFileTypeError) Error() string {
	return fmt.Sprintf("unsupported file type: %s", e.Extension)
}

// TextExtractionError marks files of a supported type that yielded no
// usable text.
type TextExtractionError struct {
	Path string
	Err  error
}

func (e *TextExtractionError) Error() string {
	return fmt.Sprintf("failed to extract text from %s: %v", e.Path, e.Err)
}

func (e *TextExtractionError) Unwrap() error { return e.Err }

// Converter produces text for a file through an external service. A nil
// converter disables the conversion step.
type Converter interface {
	Convert(path string) (string, error)
	Close() error
}

// Extractor dispatches file parsing by extension.
type Extractor struct {
	converter Converter
}

// New creates an extractor. converter may be nil.
func New(converter Converter) *Extractor {
	return &Extractor{converter: converter}
}

// SupportedExtensions lists the extensions ExtractText accepts.
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".txt", ".md", ".xlsx"}
}

// Supported reports whether the file's extension has an extractor.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions() {
		if ext == s {
			return true
		}
	}
	return false
}

// ExtractText returns the full plain text of the file.
func (e *Extractor) ExtractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return e.extractPDF(path)
	case ".docx":
		return extractDOCX(path)
	case ".txt", ".md":
		return extractPlainText(path)
	case ".xlsx":
		return extractXLSX(path)
	default:
		return "", &UnsupportedFileTypeError{Extension: strings.ToLower(filepath.Ext(path))}
	}
}

// FirstPagesText returns a bounded text sample for metadata extraction.
// PDFs read only the first nPages natively; other types use the full text.
func (e *Extractor) FirstPagesText(path string, nPages, maxChars int) (string, error) {
	var text string
	var err error

	if strings.ToLower(filepath.Ext(path)) == ".pdf" {
		text, err = extractPDFPages(path, nPages)
	} else {
		text, err = e.ExtractText(path)
	}
	if err != nil {
		return "", err
	}
	if runes := []rune(text); len(runes) > maxChars {
		text = string(runes[:maxChars])
	}
	return text, nil
}
