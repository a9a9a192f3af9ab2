// Package extract pulls normalized text out of file content for
// content-based duplicate detection.
//
// Extraction is dispatched by MIME type with a filename-extension fallback.
// Extraction never fails loudly: any error is logged and reported as "no
// text", so binary and unreadable files simply skip the content-based
// detection paths.
package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

var (
	htmlTagRE    = regexp.MustCompile(`<[^>]+>`)
	whitespaceRE = regexp.MustCompile(`\s+`)
)

// Extractor extracts text from raw file content.
type Extractor struct {
	logger *zap.Logger
}

// New creates an Extractor.
func New(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract returns the text content of a file, or "" when the file carries no
// extractable text. It never returns an error: failures are logged and
// treated as non-textual content.
func (e *Extractor) Extract(content []byte, mimeType, filename string) string {
	text, err := e.dispatch(content, mimeType, strings.ToLower(filename))
	if err != nil {
		e.logger.Warn("text extraction failed",
			zap.String("file", filename), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(text)
}

func (e *Extractor) dispatch(content []byte, mimeType, name string) (string, error) {
	switch {
	case mimeType == "application/pdf" || strings.HasSuffix(name, ".pdf"):
		return extractPDF(content)

	case mimeType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document" ||
		mimeType == "application/msword" ||
		strings.HasSuffix(name, ".docx") || strings.HasSuffix(name, ".doc"):
		return extractDocx(content)

	case mimeType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" ||
		mimeType == "application/vnd.ms-excel" ||
		strings.HasSuffix(name, ".xlsx") || strings.HasSuffix(name, ".xls"):
		return extractSheet(content)

	case mimeType == "application/vnd.openxmlformats-officedocument.presentationml.presentation" ||
		mimeType == "application/vnd.ms-powerpoint" ||
		strings.HasSuffix(name, ".pptx") || strings.HasSuffix(name, ".ppt"):
		return extractSlides(content)

	case mimeType == "text/plain" || strings.HasSuffix(name, ".txt"):
		return decodeText(content)

	case mimeType == "text/html" || strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".htm"):
		text, err := decodeText(content)
		if err != nil {
			return "", err
		}
		return htmlTagRE.ReplaceAllString(text, ""), nil
	}

	// Unrecognized format: no text.
	return "", nil
}

// decodeText decodes bytes as UTF-8, falling back to latin-1. Latin-1 maps
// every byte to a rune, so the fallback cannot fail.
func decodeText(content []byte) (string, error) {
	if utf8.Valid(content) {
		return string(content), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(content)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// Normalize lowercases text and collapses all whitespace runs to single
// spaces, trimming the ends. Idempotent.
func Normalize(text string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(strings.ToLower(text), " "))
}
