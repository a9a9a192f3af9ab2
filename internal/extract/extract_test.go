package extract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func newTestExtractor() *Extractor {
	return New(zap.NewNop())
}

// zipFixture builds an in-memory zip archive from name -> content entries.
func zipFixture(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// =============================================================================
// Section 2.1: Plain Text and HTML
// =============================================================================

// TestExtractPlainText tests UTF-8 and latin-1 text decoding.
func TestExtractPlainText(t *testing.T) {
	e := newTestExtractor()

	tests := []struct {
		name     string
		content  []byte
		mimeType string
		filename string
		want     string
	}{
		{"utf-8 by mime", []byte("héllo wörld"), "text/plain", "f.bin", "héllo wörld"},
		{"utf-8 by extension", []byte("hello"), "", "notes.txt", "hello"},
		{"latin-1 fallback", []byte{'c', 'a', 'f', 0xE9}, "text/plain", "f.txt", "café"},
		{"trims whitespace", []byte("  hi  \n"), "text/plain", "f.txt", "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Extract(tt.content, tt.mimeType, tt.filename)
			if got != tt.want {
				t.Errorf("Extract() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestExtractHTMLStripsTags tests that HTML markup is removed.
func TestExtractHTMLStripsTags(t *testing.T) {
	e := newTestExtractor()

	html := []byte("<html><body><h1>Title</h1><p>Some text</p></body></html>")
	got := e.Extract(html, "text/html", "page.html")
	if strings.Contains(got, "<") || strings.Contains(got, ">") {
		t.Errorf("Extract() left tags in output: %q", got)
	}
	if !strings.Contains(got, "Title") || !strings.Contains(got, "Some text") {
		t.Errorf("Extract() lost text content: %q", got)
	}
}

// =============================================================================
// Section 2.2: Office Formats
// =============================================================================

// TestExtractDocx tests paragraph extraction from a minimal DOCX archive.
func TestExtractDocx(t *testing.T) {
	e := newTestExtractor()

	doc := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>First paragraph</w:t></w:r></w:p>
    <w:p><w:r><w:t>Second </w:t></w:r><w:r><w:t>paragraph</w:t></w:r></w:p>
  </w:body>
</w:document>`
	content := zipFixture(t, map[string]string{"word/document.xml": doc})

	got := e.Extract(content, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", "report.docx")
	want := "First paragraph\nSecond paragraph"
	if got != want {
		t.Errorf("Extract() = %q, want %q", got, want)
	}
}

// TestExtractDocxNotAZip tests that a binary .doc surfaces as no text.
func TestExtractDocxNotAZip(t *testing.T) {
	e := newTestExtractor()
	if got := e.Extract([]byte{0xD0, 0xCF, 0x11, 0xE0}, "application/msword", "legacy.doc"); got != "" {
		t.Errorf("Extract() = %q, want empty for non-zip doc", got)
	}
}

// TestExtractSlides tests slide labeling and deck ordering.
func TestExtractSlides(t *testing.T) {
	e := newTestExtractor()

	slide := func(text string) string {
		return `<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
  <a:p><a:r><a:t>` + text + `</a:t></a:r></a:p>
</p:sld>`
	}
	content := zipFixture(t, map[string]string{
		"ppt/slides/slide2.xml": slide("Closing"),
		"ppt/slides/slide1.xml": slide("Opening"),
		"ppt/notes/notes1.xml":  slide("Speaker notes"),
	})

	got := e.Extract(content, "", "deck.pptx")
	want := "Slide 1:\nOpening\n\nSlide 2:\nClosing"
	if got != want {
		t.Errorf("Extract() = %q, want %q", got, want)
	}
	if strings.Contains(got, "Speaker notes") {
		t.Error("Extract() should ignore non-slide parts")
	}
}

// TestExtractSheet tests workbook extraction through a generated XLSX.
func TestExtractSheet(t *testing.T) {
	e := newTestExtractor()

	wb := excelize.NewFile()
	if err := wb.SetCellValue("Sheet1", "A1", "alpha"); err != nil {
		t.Fatal(err)
	}
	if err := wb.SetCellValue("Sheet1", "B1", "beta"); err != nil {
		t.Fatal(err)
	}
	if err := wb.SetCellValue("Sheet1", "A2", "gamma"); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := wb.Write(&buf); err != nil {
		t.Fatal(err)
	}

	got := e.Extract(buf.Bytes(), "application/vnd.ms-excel", "data.xlsx")
	want := "Sheet: Sheet1\nalpha beta\ngamma"
	if got != want {
		t.Errorf("Extract() = %q, want %q", got, want)
	}
}

// =============================================================================
// Section 2.3: Dispatch and Unknown Formats
// =============================================================================

// TestExtractPDFMalformed tests that a broken PDF surfaces as no text
// instead of an error or panic.
func TestExtractPDFMalformed(t *testing.T) {
	e := newTestExtractor()
	if got := e.Extract([]byte("%PDF-1.7 truncated garbage"), "application/pdf", "doc.pdf"); got != "" {
		t.Errorf("Extract() = %q, want empty for malformed PDF", got)
	}
}

// TestExtractUnknownFormat tests that unrecognized content yields no text
// without an error path.
func TestExtractUnknownFormat(t *testing.T) {
	e := newTestExtractor()

	tests := []struct {
		name     string
		mimeType string
		filename string
	}{
		{"binary blob", "application/octet-stream", "data.bin"},
		{"image", "image/png", "photo.png"},
		{"no hints", "", "mystery"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := e.Extract([]byte{0x00, 0x01, 0x02}, tt.mimeType, tt.filename); got != "" {
				t.Errorf("Extract() = %q, want empty", got)
			}
		})
	}
}

// TestExtractExtensionCaseInsensitive tests that extension dispatch ignores
// filename case.
func TestExtractExtensionCaseInsensitive(t *testing.T) {
	e := newTestExtractor()
	if got := e.Extract([]byte("upper"), "", "NOTES.TXT"); got != "upper" {
		t.Errorf("Extract() = %q, want %q", got, "upper")
	}
}

// =============================================================================
// Section 2.4: Normalize
// =============================================================================

// TestNormalize tests lowercasing and whitespace collapsing.
func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"already normal", "plain text", "plain text"},
		{"mixed case", "Hello World", "hello world"},
		{"whitespace runs", "a\t\tb\n\nc   d", "a b c d"},
		{"surrounding space", "  trimmed  ", "trimmed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if again := Normalize(got); again != got {
				t.Errorf("Normalize not idempotent: %q -> %q", got, again)
			}
		})
	}
}
