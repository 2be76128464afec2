// Package extract converts uploaded document bytes into plain text.
// Each adapter is a pure function over the raw bytes; the format is keyed
// off the file extension.
package extract

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrExtraction marks any failure to pull text out of a document,
// including documents that parse but contain no text at all.
var ErrExtraction = errors.New("text extraction")

// ErrUnsupportedFormat is returned for extensions no adapter handles.
var ErrUnsupportedFormat = fmt.Errorf("%w: unsupported format", ErrExtraction)

// Text extracts plain text from data, selecting the adapter by filename
// extension. Supported: .pdf, .docx, .pptx, .html, .htm, .txt, .md.
func Text(data []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var (
		text string
		err  error
	)
	switch ext {
	case ".pdf":
		text, err = pdfText(data)
	case ".docx":
		text, err = docxText(data)
	case ".pptx":
		text, err = pptxText(data)
	case ".html", ".htm":
		text, err = htmlText(data)
	case ".txt", ".md":
		text = string(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: %s produced no text", ErrExtraction, filename)
	}
	return text, nil
}

// Supported reports whether filename's extension has an adapter.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf", ".docx", ".pptx", ".html", ".htm", ".txt", ".md":
		return true
	}
	return false
}
