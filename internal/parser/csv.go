package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/recap/internal/doctree"
)

// rowsPerParagraph groups CSV records so the chunker can cut a large table
// between groups instead of inside a record.
const rowsPerParagraph = 20

// CSVParser renders each record as "header: value" pairs, one record per
// line. The first record is the header. Ragged rows are accepted.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	reader := csv.NewReader(strings.NewReader(decodeText(data)))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	o := newOutline(docTitle(filename))
	var header []string
	var group []string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		if header == nil {
			header = record
			continue
		}
		if line := csvLine(header, record); line != "" {
			group = append(group, line)
		}
		if len(group) == rowsPerParagraph {
			o.paragraph(strings.Join(group, "\n"))
			group = group[:0]
		}
	}
	o.paragraph(strings.Join(group, "\n"))
	return o.tree(), nil
}

// csvLine labels each non-empty cell with its column header.
func csvLine(header, record []string) string {
	var cells []string
	for i, cell := range record {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		name := fmt.Sprintf("column %d", i+1)
		if i < len(header) && strings.TrimSpace(header[i]) != "" {
			name = strings.TrimSpace(header[i])
		}
		cells = append(cells, name+": "+cell)
	}
	return strings.Join(cells, "; ")
}
