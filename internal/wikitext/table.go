package wikitext

import (
	"strings"

	"github.com/dgallion1/wikidoc/internal/doctree"
)

type rawCell struct {
	header bool
	text   string
}

// table consumes a {| ... |} block. Nested tables are skipped, and an
// unterminated table runs to the end of input.
func (p *parser) table() ([]doctree.Block, int) {
	var (
		tbl     doctree.Table
		cells   []rawCell
		caption string
		depth   int
	)
	flush := func() {
		if len(cells) == 0 {
			return
		}
		row := doctree.Row{Cells: make([]doctree.Cell, 0, len(cells))}
		for _, c := range cells {
			row.Cells = append(row.Cells, doctree.Cell{
				Header:  c.header,
				Content: p.tokenize(strings.TrimSpace(c.text)),
			})
		}
		tbl.Rows = append(tbl.Rows, row)
		cells = nil
	}

	i := p.pos
lines:
	for ; i < len(p.lines); i++ {
		t := strings.TrimSpace(p.lines[i])
		if strings.HasPrefix(t, "{|") {
			depth++
			continue
		}
		if depth > 1 {
			if strings.HasPrefix(t, "|}") {
				depth--
			}
			continue
		}
		switch {
		case strings.HasPrefix(t, "|}"):
			i++
			break lines
		case strings.HasPrefix(t, "|+"):
			caption = stripCellAttrs(t[2:])
		case strings.HasPrefix(t, "|-"):
			flush()
		case strings.HasPrefix(t, "!"):
			for _, c := range splitCells(t[1:], true) {
				cells = append(cells, rawCell{header: true, text: stripCellAttrs(c)})
			}
		case strings.HasPrefix(t, "|"):
			for _, c := range splitCells(t[1:], false) {
				cells = append(cells, rawCell{text: stripCellAttrs(c)})
			}
		case t == "":
		default:
			// Continuation of the previous cell.
			if n := len(cells); n > 0 {
				cells[n-1].text += " " + t
			}
		}
	}
	flush()
	if caption != "" {
		tbl.Caption = p.tokenize(strings.TrimSpace(caption))
	}
	if len(tbl.Rows) == 0 && len(tbl.Caption) == 0 {
		return nil, i - p.pos
	}
	return []doctree.Block{tbl}, i - p.pos
}

// splitCells splits a row line on "||", and on "!!" for header lines.
// Separators inside links and templates are ignored.
func splitCells(s string, header bool) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i := 0; i+1 < len(s); i++ {
		two := s[i : i+2]
		switch {
		case two == "[[" || two == "{{":
			depth++
			i++
		case two == "]]" || two == "}}":
			if depth > 0 {
				depth--
			}
			i++
		case depth == 0 && (two == "||" || (header && two == "!!")):
			out = append(out, s[start:i])
			start = i + 2
			i++
		}
	}
	return append(out, s[start:])
}

// stripCellAttrs drops a leading attribute section such as
// `style="text-align:left" | value`.
func stripCellAttrs(s string) string {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch {
		case strings.HasPrefix(s[i:], "[[") || strings.HasPrefix(s[i:], "{{"):
			depth++
			i++
		case strings.HasPrefix(s[i:], "]]") || strings.HasPrefix(s[i:], "}}"):
			if depth > 0 {
				depth--
			}
			i++
		case s[i] == '|' && depth == 0:
			if cellAttrRe.MatchString(s[:i]) {
				return s[i+1:]
			}
			return s
		}
	}
	return s
}
