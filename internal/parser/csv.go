package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/wikidoc/internal/doctree"
)

// csvBatchRows is the number of data rows per table section.
const csvBatchRows = 20

// CSVParser handles CSV files. The first record is the header row; data
// rows are split into sections of csvBatchRows, each a table that repeats
// the header.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	doc := &doctree.Document{}
	title := titleFromFilename(filename)
	if len(records) == 0 {
		return doctree.BuildTree(title, doc), nil
	}

	header := csvRow(records[0], true)
	data := records[1:]
	if len(data) == 0 {
		doc.Blocks = append(doc.Blocks, doctree.Table{Rows: []doctree.Row{header}})
		return doctree.BuildTree(title, doc), nil
	}

	anchors := anchorSet{}
	for i := 0; i < len(data); i += csvBatchRows {
		end := min(i+csvBatchRows, len(data))
		// 1-indexed, counting the header line.
		heading := fmt.Sprintf("Rows %d-%d", i+2, end+1)

		tbl := doctree.Table{Rows: []doctree.Row{header}}
		for _, rec := range data[i:end] {
			tbl.Rows = append(tbl.Rows, csvRow(rec, false))
		}
		doc.Blocks = append(doc.Blocks,
			doctree.Heading{Level: 2, Text: doctree.PlainRun(heading), Anchor: anchors.add(heading)},
			tbl,
		)
	}
	return doctree.BuildTree(title, doc), nil
}

func csvRow(rec []string, header bool) doctree.Row {
	row := doctree.Row{Cells: make([]doctree.Cell, 0, len(rec))}
	for _, field := range rec {
		row.Cells = append(row.Cells, doctree.Cell{Header: header, Content: doctree.PlainRun(field)})
	}
	return row
}
