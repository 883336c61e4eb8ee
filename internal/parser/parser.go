// Package parser is the text-extraction collaborator: it turns an uploaded
// file into positioned text fragments for the structurer.
//
// PDF fragments carry real positions and font sizes. Formats with explicit
// markup (Markdown, HTML, DOCX) are laid out synthetically: headings get
// font sizes by level and blocks are stacked down a single page, so the
// font-size heuristics see the markup's structure.
package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/quizgest/internal/doctree"
)

var (
	// ErrUnsupported is returned for file types no extractor handles.
	ErrUnsupported = errors.New("unsupported file type")
	// ErrNoText means the file parsed but held no extractable text.
	ErrNoText = errors.New("no extractable text")
)

// Extractor converts raw document bytes into fragments in reading order.
type Extractor interface {
	Extract(r io.Reader, filename string) ([]doctree.Fragment, error)
}

// Options tune extractor behaviour.
type Options struct {
	// PDFFallbackPdftotext shells out to pdftotext when the Go PDF reader fails.
	PDFFallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate extractor for a filename.
func ForFile(filename string, opts Options) (Extractor, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextExtractor{}, nil
	case ".md", ".markdown":
		return &MarkdownExtractor{}, nil
	case ".html", ".htm":
		return &HTMLExtractor{}, nil
	case ".pdf":
		return &PDFExtractor{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXExtractor{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	return SupportedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// Extract picks an extractor by filename and runs it. An empty result is
// ErrNoText.
func Extract(r io.Reader, filename string, opts Options) ([]doctree.Fragment, error) {
	ex, err := ForFile(filename, opts)
	if err != nil {
		return nil, err
	}
	frags, err := ex.Extract(r, filename)
	if err != nil {
		return nil, err
	}
	for _, f := range frags {
		if strings.TrimSpace(f.Text) != "" {
			return frags, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", filename, ErrNoText)
}
