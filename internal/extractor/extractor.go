// Package extractor splits a source document into ordered page texts.
//
// Pages are numbered 1-based in source order. Pages whose trimmed text is
// empty are omitted from the page sequence but still counted in TotalPages,
// so ingestion reports can distinguish "pages in the document" from "pages
// worth indexing".
package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for source files the extractor cannot read.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Page is a single non-blank page of a source document.
type Page struct {
	Number int // 1-based position in the source document
	Text   string
}

// Result holds the extracted pages of one document.
type Result struct {
	TotalPages int
	Pages      []Page // non-blank pages only, ascending by Number
}

// Extract reads the document at path and returns its non-blank pages in
// source order. PDF documents are decoded with pdfcpu; plain-text documents
// use form feed (\f) as the page separator. A malformed or unreadable source
// is an error: extraction is all-or-nothing.
func Extract(ctx context.Context, path string) (*Result, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(ctx, path)
	case ".txt", ".text":
		return extractText(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// extractText splits a plain-text manual into pages on form feed characters.
func extractText(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	raw := strings.Split(string(data), "\f")
	result := &Result{TotalPages: len(raw)}
	for i, text := range raw {
		if strings.TrimSpace(text) == "" {
			continue
		}
		result.Pages = append(result.Pages, Page{Number: i + 1, Text: text})
	}
	return result, nil
}
