package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/recap/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser renders Markdown to plain paragraphs using goldmark.
// Inline markup is dropped, headings build the section tree and code
// blocks are kept verbatim.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read markdown: %w", err)
	}
	src := []byte(decodeText(data))
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	o := newOutline(docTitle(filename))
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			o.heading(node.Level, inlineText(node, src))
		case *ast.Paragraph, *ast.TextBlock:
			o.paragraph(inlineText(node, src))
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			o.paragraph(blockLines(node, src))
		case *ast.HTMLBlock, *ast.ThematicBreak:
		default:
			return ast.WalkContinue, nil
		}
		return ast.WalkSkipChildren, nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk markdown: %w", err)
	}
	return o.tree(), nil
}

// inlineText collects the visible text of n's inline children. Soft and
// hard line breaks become newlines.
func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	var walk func(ast.Node)
	walk = func(parent ast.Node) {
		for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
			switch c := c.(type) {
			case *ast.Text:
				b.Write(c.Value(src))
				if c.SoftLineBreak() || c.HardLineBreak() {
					b.WriteByte('\n')
				}
			case *ast.String:
				b.Write(c.Value)
			case *ast.AutoLink:
				b.Write(c.Label(src))
			case *ast.RawHTML:
			default:
				walk(c)
			}
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

// blockLines returns the raw source lines of a block such as a code block.
func blockLines(n ast.Node, src []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return strings.TrimRight(b.String(), "\n")
}
