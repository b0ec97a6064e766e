package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/dgallion1/wikidoc/internal/doctree"
)

// Palette
const (
	colorTitle  = "#FF6188"
	colorLink   = "#AB9DF2"
	colorCode   = "#A9DC76"
	colorMath   = "#78DCE8"
	colorDim    = "#727072"
	colorBorder = "#5B595C"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorTitle))
	boldStyle    = lipgloss.NewStyle().Bold(true)
	italicStyle  = lipgloss.NewStyle().Italic(true)
	codeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorCode))
	linkStyle    = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color(colorLink))
	mathStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMath))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color(colorDim))

	codeBlockStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorCode)).
			PaddingLeft(2)

	quoteStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.ThickBorder()).
			BorderLeft(true).
			BorderForeground(lipgloss.Color(colorDim)).
			PaddingLeft(1)
)

// Terminal renders documents as styled text for a terminal.
type Terminal struct {
	Width int // wrap width; 0 disables wrapping
}

// Render writes doc to w, one block per paragraph.
func (r *Terminal) Render(w io.Writer, doc *doctree.Document) error {
	if doc == nil {
		return nil
	}
	for _, b := range doc.Blocks {
		s := r.block(b)
		if s == "" {
			continue
		}
		if _, err := fmt.Fprintln(w, s+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func (r *Terminal) wrap(s string) string {
	if r.Width <= 0 {
		return s
	}
	return lipgloss.NewStyle().Width(r.Width).Render(s)
}

func (r *Terminal) block(b doctree.Block) string {
	switch v := b.(type) {
	case doctree.Heading:
		prefix := strings.Repeat("#", max(v.Level, 1))
		return headingStyle.Render(prefix + " " + inlineText(v.Text))
	case doctree.Paragraph:
		lines := make([]string, 0, len(v.Runs))
		for _, run := range v.Runs {
			lines = append(lines, inlineText(run))
		}
		return r.wrap(strings.Join(lines, "\n"))
	case doctree.List:
		lines := make([]string, 0, len(v.Items))
		for i, item := range v.Items {
			bullet := "•"
			if v.Ordered {
				bullet = fmt.Sprintf("%d.", i+1)
			}
			lines = append(lines, dimStyle.Render(bullet)+" "+inlineText(item))
		}
		return strings.Join(lines, "\n")
	case doctree.Table:
		return renderTable(v)
	case doctree.CodeBlock:
		return codeBlockStyle.Render(v.Text)
	case doctree.DisplayMath:
		return mathStyle.Render("  $$ " + v.Latex + " $$")
	case doctree.Blockquote:
		return quoteStyle.Render(r.wrap(inlineText(v.Content)))
	case doctree.HorizontalRule:
		width := r.Width
		if width <= 0 {
			width = 40
		}
		return dimStyle.Render(strings.Repeat("─", width))
	}
	return ""
}

func renderTable(v doctree.Table) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(colorBorder)))

	rows := v.Rows
	if len(rows) > 0 && allHeaders(rows[0]) {
		t = t.Headers(cellTexts(rows[0])...)
		rows = rows[1:]
	}
	for _, row := range rows {
		t = t.Row(cellTexts(row)...)
	}
	out := t.String()
	if len(v.Caption) > 0 {
		out = boldStyle.Render(v.Caption.PlainText()) + "\n" + out
	}
	return out
}

func allHeaders(row doctree.Row) bool {
	for _, c := range row.Cells {
		if !c.Header {
			return false
		}
	}
	return len(row.Cells) > 0
}

func cellTexts(row doctree.Row) []string {
	out := make([]string, 0, len(row.Cells))
	for _, c := range row.Cells {
		out = append(out, c.Content.PlainText())
	}
	return out
}

func inlineText(run doctree.InlineRun) string {
	var b strings.Builder
	for _, tok := range run {
		switch t := tok.(type) {
		case doctree.Text:
			b.WriteString(t.Text)
		case doctree.Bold:
			b.WriteString(boldStyle.Render(t.Content.PlainText()))
		case doctree.Italic:
			b.WriteString(italicStyle.Render(t.Content.PlainText()))
		case doctree.BoldItalic:
			b.WriteString(boldStyle.Italic(true).Render(t.Text))
		case doctree.Code:
			b.WriteString(codeStyle.Render(t.Text))
		case doctree.Link:
			b.WriteString(linkStyle.Render(t.Label))
		case doctree.WikiLink:
			b.WriteString(linkStyle.Render(t.Label))
		case doctree.InlineMath:
			b.WriteString(mathStyle.Render("$" + t.Latex + "$"))
		case doctree.Superscript:
			b.WriteString("^" + t.Content.PlainText())
		case doctree.Subscript:
			b.WriteString("_" + t.Content.PlainText())
		}
	}
	return b.String()
}
