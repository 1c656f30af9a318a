package parser

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/dgallion1/recap/internal/doctree"
)

// Parser converts raw document bytes into a DocTree.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.DocTree, error)
}

// Options tune parser selection.
type Options struct {
	// PDFFallbackPdftotext shells out to pdftotext when the Go PDF reader fails.
	PDFFallbackPdftotext bool
}

// knownExtensions are picked without sniffing the content.
var knownExtensions = map[string]bool{
	".txt":      true,
	".text":     true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// byExtension picks a parser from the file extension alone.
func byExtension(filename string, o Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt", ".text":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: o.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// ForContent picks a parser by extension, falling back to sniffing the
// content when the extension is missing or unknown.
func ForContent(filename string, data []byte, o Options) (Parser, error) {
	if knownExtension(filename) {
		return byExtension(filename, o)
	}
	detected := mimetype.Detect(data)
	for mt := detected; mt != nil; mt = mt.Parent() {
		switch {
		case mt.Is("application/pdf"):
			return &PDFParser{FallbackPdftotext: o.PDFFallbackPdftotext}, nil
		case mt.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document"):
			return &DOCXParser{}, nil
		case mt.Is("text/html"):
			return &HTMLParser{}, nil
		case mt.Is("text/csv"):
			return &CSVParser{}, nil
		case mt.Is("text/plain"):
			return &TextParser{}, nil
		}
	}
	return nil, fmt.Errorf("unsupported content type %s for %s", detected.String(), filepath.Base(filename))
}

// knownExtension reports whether the extension alone picks a parser.
func knownExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return knownExtensions[ext]
}

// Extract parses data and returns its text in reading order.
func Extract(data []byte, filename string, o Options) (string, error) {
	p, err := ForContent(filename, data, o)
	if err != nil {
		return "", err
	}
	tree, err := p.Parse(bytes.NewReader(data), filepath.Base(filename))
	if err != nil {
		return "", err
	}
	return tree.Text(), nil
}

// ReadFile loads a document from disk and extracts its text.
func ReadFile(path string, o Options) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return Extract(data, path, o)
}
