package parser

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dgallion1/recap/internal/doctree"
	"github.com/fumiama/go-docx"
)

// DOCXParser extracts paragraphs and tables from Word documents. Heading
// styles build the section tree; each table becomes one paragraph with a
// line per row.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	o := newOutline(docTitle(filename))
	for _, item := range doc.Document.Body.Items {
		switch item := item.(type) {
		case *docx.Paragraph:
			text := docxParagraphText(item)
			if level := docxHeadingLevel(item); level > 0 {
				o.heading(level, text)
			} else {
				o.paragraph(text)
			}
		case *docx.Table:
			o.paragraph(docxTableText(item))
		}
	}
	return o.tree(), nil
}

// docxHeadingLevel maps "Heading1", "heading 2" and "Title" styles to a
// level. Other styles are body text.
func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if style == "title" {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimPrefix(style, "heading"))
	if err != nil || !strings.HasPrefix(style, "heading") || n < 1 {
		return 0
	}
	return n
}

func docxParagraphText(para *docx.Paragraph) string {
	var b strings.Builder
	for _, child := range para.Children {
		switch c := child.(type) {
		case *docx.Run:
			docxRunText(&b, c)
		case *docx.Hyperlink:
			docxRunText(&b, &c.Run)
		}
	}
	return strings.TrimSpace(b.String())
}

func docxRunText(b *strings.Builder, run *docx.Run) {
	for _, rc := range run.Children {
		switch t := rc.(type) {
		case *docx.Text:
			b.WriteString(t.Text)
		case *docx.Tab:
			b.WriteByte('\t')
		case *docx.BarterRabbet:
			b.WriteByte('\n')
		}
	}
}

// docxTableText renders rows as cells joined by " | ". Nested tables are
// flattened into their cell.
func docxTableText(tbl *docx.Table) string {
	var rows []string
	for _, row := range tbl.TableRows {
		var cells []string
		for _, cell := range row.TableCells {
			var parts []string
			for _, para := range cell.Paragraphs {
				if t := docxParagraphText(para); t != "" {
					parts = append(parts, t)
				}
			}
			for _, nested := range cell.Tables {
				if t := docxTableText(nested); t != "" {
					parts = append(parts, t)
				}
			}
			cells = append(cells, strings.Join(parts, " "))
		}
		if line := strings.TrimSpace(strings.Join(cells, " | ")); strings.Trim(line, "| ") != "" {
			rows = append(rows, line)
		}
	}
	return strings.Join(rows, "\n")
}
