package doctree

import "strings"

// DocTree is the root of a parsed document.
type DocTree struct {
	Title    string     // Document title (from metadata or filename)
	Children []*DocNode // Top-level sections
}

// DocNode is a recursive section in the document tree.
type DocNode struct {
	Title    string     // Section heading (empty for leaf text)
	Text     string     // Text content of this node (may be empty for container nodes)
	Page     int        // Source page/line (0 if N/A)
	Children []*DocNode // Subsections
}

// Walk visits every node depth-first in document order.
func (t *DocTree) Walk(fn func(n *DocNode, depth int)) {
	var walk func(nodes []*DocNode, depth int)
	walk = func(nodes []*DocNode, depth int) {
		for _, n := range nodes {
			fn(n, depth)
			walk(n.Children, depth+1)
		}
	}
	walk(t.Children, 1)
}

// Text flattens the tree into plain text in reading order. Headings and text
// blocks each become a paragraph, so paragraph boundaries survive for the
// chunker.
func (t *DocTree) Text() string {
	var parts []string
	t.Walk(func(n *DocNode, _ int) {
		if title := strings.TrimSpace(n.Title); title != "" {
			parts = append(parts, title)
		}
		if text := strings.TrimSpace(n.Text); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.ToValidUTF8(strings.Join(parts, "\n\n"), "�")
}
