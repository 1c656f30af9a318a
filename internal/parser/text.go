package parser

import (
	"fmt"
	"io"

	"github.com/dgallion1/recap/internal/doctree"
)

// TextParser reads plain text. Blank lines separate paragraphs; a paragraph
// of any size stays whole and is left to the chunker to cut.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	o := newOutline(docTitle(filename))
	for _, para := range splitParagraphs(decodeText(data)) {
		o.paragraph(para)
	}
	return o.tree(), nil
}
