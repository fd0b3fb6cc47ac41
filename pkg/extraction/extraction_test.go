package extraction

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSupported(t *testing.T) {
	assert.True(t, Supported("paper.pdf"))
	assert.True(t, Supported("notes.MD"))
	assert.True(t, Supported("report.xlsx"))
	assert.False(t, Supported("archive.zip"))
	assert.False(t, Supported("noext"))
}

func TestExtractTextUnsupported(t *testing.T) {
	e := New(nil)
	_, err := e.ExtractText("file.zip")

	var unsupported *UnsupportedFileTypeError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, ".zip", unsupported.Extension)
}

func TestExtractPlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello world\nzeile zwei"), 0o644))

	e := New(nil)
	text, err := e.ExtractText(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world\nzeile zwei", text)
}

func TestExtractPlainTextInvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.md")
	require.NoError(t, os.WriteFile(path, []byte{'o', 'k', 0xff, 0xfe, '!'}, 0o644))

	e := New(nil)
	text, err := e.ExtractText(path)
	require.NoError(t, err)
	assert.Equal(t, "ok�!", text)
}

func TestExtractXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "name"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "value"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "alpha"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 42))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	e := New(nil)
	text, err := e.ExtractText(path)
	require.NoError(t, err)
	assert.Contains(t, text, "Sheet1")
	assert.Contains(t, text, "name\tvalue")
	assert.Contains(t, text, "alpha\t42")
}

func TestExtractPDFMissingFile(t *testing.T) {
	e := New(nil)
	_, err := e.ExtractText(filepath.Join(t.TempDir(), "missing.pdf"))

	var extractErr *TextExtractionError
	require.ErrorAs(t, err, &extractErr)
}

func TestPDFMetadataMissingFile(t *testing.T) {
	meta := PDFMetadata("/nonexistent/file.pdf")
	assert.NotNil(t, meta)
	assert.Empty(t, meta)
}

func TestFirstPagesTextTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "long.txt")
	require.NoError(t, os.WriteFile(path, []byte("abcdefghij"), 0o644))

	e := New(nil)
	text, err := e.FirstPagesText(path, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, "abcde", text)
}

func TestFirstPagesTextTruncatesOnRunes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "umlauts.txt")
	require.NoError(t, os.WriteFile(path, []byte("äöüäöüäöüä"), 0o644))

	e := New(nil)
	text, err := e.FirstPagesText(path, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, "äöüäö", text)
	assert.True(t, utf8.ValidString(text))
}

type fakeConverter struct {
	text string
	err  error
}

func (f *fakeConverter) Convert(string) (string, error) { return f.text, f.err }
func (f *fakeConverter) Close() error                   { return nil }

func TestPDFConverterWins(t *testing.T) {
	// Converter output is used without touching the native parser, so a
	// nonexistent file path is fine here.
	e := New(&fakeConverter{text: "converted text"})
	text, err := e.ExtractText("whatever.pdf")
	require.NoError(t, err)
	assert.Equal(t, "converted text", text)
}

func TestPDFConverterFailureFallsBack(t *testing.T) {
	e := New(&fakeConverter{err: errors.New("server down")})
	_, err := e.ExtractText(filepath.Join(t.TempDir(), "missing.pdf"))

	// Fallback hits the native parser, which fails on the missing file.
	var extractErr *TextExtractionError
	require.ErrorAs(t, err, &extractErr)
}

func TestPDFConverterWhitespaceFallsBack(t *testing.T) {
	e := New(&fakeConverter{text: "   \n\t "})
	_, err := e.ExtractText(filepath.Join(t.TempDir(), "missing.pdf"))

	var extractErr *TextExtractionError
	require.ErrorAs(t, err, &extractErr)
}

func TestNewMCPConverterDisabled(t *testing.T) {
	assert.Nil(t, NewMCPConverter(nil))
}
