package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/recap/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
)

var errNoPDFText = errors.New("no text layer")

// PDFParser extracts text page by page with the Go PDF reader and, when
// FallbackPdftotext is set, retries with pdftotext if that fails. Each page
// is split into paragraphs on blank lines; nodes carry their page number.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	pages, err := readPDFPages(data)
	if err != nil && p.FallbackPdftotext {
		pages, err = pdftotextPages(data)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	o := newOutline(docTitle(filename))
	for i, page := range pages {
		o.page = i + 1
		for _, para := range splitParagraphs(decodeText([]byte(page))) {
			o.paragraph(para)
		}
	}
	return o.tree(), nil
}

// readPDFPages returns the plain text of each page. Pages that fail to
// decode are left empty; the document fails only when no page yields text.
// The reader panics on some malformed files, which is reported as an error.
func readPDFPages(data []byte) (pages []string, err error) {
	defer func() {
		if v := recover(); v != nil {
			pages, err = nil, fmt.Errorf("pdf reader: %v", v)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	found := false
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		var text string
		if !page.V.IsNull() {
			if t, err := page.GetPlainText(nil); err == nil {
				text = t
			}
		}
		found = found || strings.TrimSpace(text) != ""
		pages = append(pages, text)
	}
	if !found {
		return nil, errNoPDFText
	}
	return pages, nil
}

// pdftotextPages runs poppler's pdftotext, which separates pages with form
// feeds.
func pdftotextPages(data []byte) ([]string, error) {
	tmp, err := os.CreateTemp("", "recap-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	out, err := exec.Command("pdftotext", "-layout", tmp.Name(), "-").Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return strings.Split(string(out), "\f"), nil
}
