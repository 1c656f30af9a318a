package parser

import (
	"strings"

	"github.com/dgallion1/recap/internal/doctree"
)

// outline builds a DocTree in reading order. Each paragraph becomes a leaf
// under the most recent heading; a heading nests under the closest earlier
// heading of a lower level. Text before the first heading stays at the top.
type outline struct {
	title string
	root  doctree.DocNode
	stack []section

	// page is stamped on nodes as they are added. 0 when unknown.
	page int
}

type section struct {
	node  *doctree.DocNode
	level int
}

func newOutline(title string) *outline {
	o := &outline{title: title}
	o.stack = []section{{node: &o.root, level: 0}}
	return o
}

func (o *outline) heading(level int, title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}
	for len(o.stack) > 1 && o.stack[len(o.stack)-1].level >= level {
		o.stack = o.stack[:len(o.stack)-1]
	}
	n := &doctree.DocNode{Title: title, Page: o.page}
	o.top().Children = append(o.top().Children, n)
	o.stack = append(o.stack, section{node: n, level: level})
}

func (o *outline) paragraph(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	o.top().Children = append(o.top().Children, &doctree.DocNode{Text: text, Page: o.page})
}

func (o *outline) top() *doctree.DocNode {
	return o.stack[len(o.stack)-1].node
}

func (o *outline) tree() *doctree.DocTree {
	return &doctree.DocTree{Title: o.title, Children: o.root.Children}
}
