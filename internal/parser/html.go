package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/recap/internal/doctree"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLParser extracts readable text from HTML. Page chrome (navigation,
// scripts, forms) is skipped, block elements end paragraphs and headings
// build the section tree.
type HTMLParser struct{}

var (
	htmlSkipped = map[atom.Atom]bool{
		atom.Head: true, atom.Script: true, atom.Style: true, atom.Noscript: true,
		atom.Template: true, atom.Nav: true, atom.Header: true, atom.Footer: true,
		atom.Form: true, atom.Button: true, atom.Svg: true, atom.Iframe: true,
	}
	htmlBlocks = map[atom.Atom]bool{
		atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
		atom.Main: true, atom.Aside: true, atom.Blockquote: true, atom.Li: true,
		atom.Ul: true, atom.Ol: true, atom.Dl: true, atom.Dt: true, atom.Dd: true,
		atom.Table: true, atom.Tr: true, atom.Figure: true, atom.Figcaption: true,
		atom.Address: true, atom.Hr: true, atom.Body: true,
	}
)

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}
	doc, err := html.Parse(strings.NewReader(decodeText(data)))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := docTitle(filename)
	if t := findTitle(doc); t != "" {
		title = t
	}
	w := &htmlWalker{out: newOutline(title)}
	w.walk(doc)
	w.flush()
	return w.out.tree(), nil
}

type htmlWalker struct {
	out   *outline
	lines []string
	buf   strings.Builder
}

func (w *htmlWalker) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.buf.WriteString(n.Data)
		return
	case html.ElementNode:
		switch {
		case htmlSkipped[n.DataAtom]:
			return
		case headingLevel(n.DataAtom) > 0:
			w.flush()
			w.out.heading(headingLevel(n.DataAtom), collapseSpace(textContent(n)))
			return
		case n.DataAtom == atom.Pre:
			w.flush()
			w.out.paragraph(textContent(n))
			return
		case n.DataAtom == atom.Br:
			w.breakLine()
			return
		case n.DataAtom == atom.Td || n.DataAtom == atom.Th:
			w.buf.WriteString(" ")
		case htmlBlocks[n.DataAtom]:
			w.flush()
			defer w.flush()
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

// breakLine ends the current line without ending the paragraph.
func (w *htmlWalker) breakLine() {
	if line := collapseSpace(w.buf.String()); line != "" {
		w.lines = append(w.lines, line)
	}
	w.buf.Reset()
}

// flush ends the current paragraph.
func (w *htmlWalker) flush() {
	w.breakLine()
	w.out.paragraph(strings.Join(w.lines, "\n"))
	w.lines = w.lines[:0]
}

func headingLevel(a atom.Atom) int {
	switch a {
	case atom.H1:
		return 1
	case atom.H2:
		return 2
	case atom.H3:
		return 3
	case atom.H4:
		return 4
	case atom.H5:
		return 5
	case atom.H6:
		return 6
	}
	return 0
}

// collapseSpace folds runs of HTML whitespace into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.TrimSpace(b.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		return collapseSpace(textContent(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}
