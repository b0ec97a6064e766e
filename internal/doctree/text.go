package doctree

import "strings"

// PlainText flattens a run to its visible text, markup removed.
func (r InlineRun) PlainText() string {
	var b strings.Builder
	r.writeText(&b)
	return b.String()
}

func (r InlineRun) writeText(b *strings.Builder) {
	for _, tok := range r {
		switch t := tok.(type) {
		case Text:
			b.WriteString(t.Text)
		case Bold:
			t.Content.writeText(b)
		case Italic:
			t.Content.writeText(b)
		case BoldItalic:
			b.WriteString(t.Text)
		case Code:
			b.WriteString(t.Text)
		case Link:
			b.WriteString(t.Label)
		case WikiLink:
			b.WriteString(t.Label)
		case InlineMath:
			b.WriteString(t.Latex)
		case Superscript:
			t.Content.writeText(b)
		case Subscript:
			t.Content.writeText(b)
		}
	}
}

// BlockText returns the plain text of one block. Table cells are joined
// with " | " and rows with newlines.
func BlockText(b Block) string {
	switch v := b.(type) {
	case Heading:
		return v.Text.PlainText()
	case Paragraph:
		parts := make([]string, 0, len(v.Runs))
		for _, r := range v.Runs {
			parts = append(parts, r.PlainText())
		}
		return strings.Join(parts, "\n")
	case List:
		parts := make([]string, 0, len(v.Items))
		for _, it := range v.Items {
			parts = append(parts, "- "+it.PlainText())
		}
		return strings.Join(parts, "\n")
	case Table:
		var lines []string
		if len(v.Caption) > 0 {
			lines = append(lines, v.Caption.PlainText())
		}
		for _, row := range v.Rows {
			cells := make([]string, 0, len(row.Cells))
			for _, c := range row.Cells {
				cells = append(cells, c.Content.PlainText())
			}
			lines = append(lines, strings.Join(cells, " | "))
		}
		return strings.Join(lines, "\n")
	case CodeBlock:
		return v.Text
	case DisplayMath:
		return v.Latex
	case Blockquote:
		return v.Content.PlainText()
	}
	return ""
}

// PlainText joins the text of every block with blank lines.
func (d *Document) PlainText() string {
	if d == nil {
		return ""
	}
	return blocksText(d.Blocks)
}

func blocksText(blocks []Block) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if t := strings.TrimSpace(BlockText(b)); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}
