package extraction

import (
	"fmt"
	"html"
	"os"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

var (
	docxParagraphEndRe = regexp.MustCompile(`</w:p>`)
	xmlTagRe           = regexp.MustCompile(`<[^>]*>`)
)

// extractDOCX pulls paragraph text out of a Word document. Paragraphs are
// joined with newlines, empty ones dropped.
func extractDOCX(path string) (string, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", &TextExtractionError{Path: path, Err: err}
	}
	defer doc.Close()

	content := doc.Editable().GetContent()

	var paragraphs []string
	for _, block := range docxParagraphEndRe.Split(content, -1) {
		text := html.UnescapeString(xmlTagRe.ReplaceAllString(block, ""))
		if text = strings.TrimSpace(text); text != "" {
			paragraphs = append(paragraphs, text)
		}
	}
	if len(paragraphs) == 0 {
		return "", &TextExtractionError{Path: path, Err: fmt.Errorf("document contains no text")}
	}
	return strings.Join(paragraphs, "\n"), nil
}

// extractPlainText reads .txt and .md files. Invalid UTF-8 sequences are
// replaced rather than failing the file.
func extractPlainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &TextExtractionError{Path: path, Err: err}
	}
	return strings.ToValidUTF8(string(data), "�"), nil
}

// extractXLSX flattens a workbook: each sheet headed by its name, rows on
// separate lines, cells tab-separated, empty rows and sheets dropped.
func extractXLSX(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", &TextExtractionError{Path: path, Err: err}
	}
	defer f.Close()

	var sheets []string
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			continue
		}

		var lines []string
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			sheets = append(sheets, name+"\n"+strings.Join(lines, "\n"))
		}
	}
	if len(sheets) == 0 {
		return "", &TextExtractionError{Path: path, Err: fmt.Errorf("workbook contains no text")}
	}
	return strings.Join(sheets, "\n\n"), nil
}
