package extraction

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF runs the converter chain: a configured converter wins when it
// returns non-whitespace text, otherwise the native parser takes over.
func (e *Extractor) extractPDF(path string) (string, error) {
	if e.converter != nil {
		text, err := e.converter.Convert(path)
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		if err != nil {
			slog.Warn("PDF converter failed, using native parser", "file", path, "error", err)
		}
	}
	return extractPDFPages(path, 0)
}

// extractPDFPages extracts text page by page. nPages 0 means all pages.
// Individual page failures are skipped; a document where every page fails
// or only whitespace comes back is a TextExtractionError.
func extractPDFPages(path string, nPages int) (string, error) {
	file, reader, err := openPDF(path)
	if err != nil {
		return "", &TextExtractionError{Path: path, Err: err}
	}
	defer file.Close()

	total := reader.NumPage()
	if nPages > 0 && nPages < total {
		total = nPages
	}

	var pages []string
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Debug("Skipping unreadable PDF page", "file", path, "page", i, "error", err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, text)
		}
	}

	joined := strings.Join(pages, "\n\n")
	if strings.TrimSpace(joined) == "" {
		return "", &TextExtractionError{Path: path, Err: fmt.Errorf("no extractable text in %d pages", reader.NumPage())}
	}
	return joined, nil
}

// PDFMetadata reads the document info dictionary. Extraction is best
// effort: any failure returns an empty map.
func PDFMetadata(path string) (meta map[string]string) {
	meta = make(map[string]string)

	file, reader, err := openPDF(path)
	if err != nil {
		return meta
	}
	defer file.Close()

	defer func() {
		// The info dictionary of malformed PDFs can panic the parser.
		_ = recover()
	}()

	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return meta
	}
	for key, field := range map[string]string{
		"Title":        "title",
		"Author":       "author",
		"Subject":      "subject",
		"Keywords":     "keywords",
		"CreationDate": "creation_date",
	} {
		if v := info.Key(key); !v.IsNull() {
			if text := strings.TrimSpace(v.Text()); text != "" {
				meta[field] = text
			}
		}
	}
	return meta
}

func openPDF(path string) (*os.File, *pdf.Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	reader, err := pdf.NewReader(file, stat.Size())
	if err != nil {
		file.Close()
		return nil, nil, err
	}
	return file, reader, nil
}
