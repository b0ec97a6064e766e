package render

import (
	"github.com/dgallion1/wikidoc/internal/doctree"
)

// MathIssue is a formula the renderer could not convert.
type MathIssue struct {
	Latex   string `json:"latex"`
	Display bool   `json:"display"`
	Error   string `json:"error"`
}

// CheckMath converts every formula in doc with r and returns the ones that
// fail, in document order. It does not touch the failure metrics, and a
// DocumentMath renderer is checked on its own per-document copy.
func CheckMath(r MathRenderer, doc *doctree.Document) []MathIssue {
	if r == nil || doc == nil {
		return nil
	}
	r = forDocument(r)
	var issues []MathIssue
	check := func(latex string, display bool) {
		if _, err := tryMath(r, latex, display); err != nil {
			issues = append(issues, MathIssue{Latex: latex, Display: display, Error: err.Error()})
		}
	}
	var run func(doctree.InlineRun)
	run = func(tokens doctree.InlineRun) {
		for _, tok := range tokens {
			switch t := tok.(type) {
			case doctree.InlineMath:
				check(t.Latex, false)
			case doctree.Bold:
				run(t.Content)
			case doctree.Italic:
				run(t.Content)
			case doctree.Superscript:
				run(t.Content)
			case doctree.Subscript:
				run(t.Content)
			}
		}
	}
	for _, b := range doc.Blocks {
		switch v := b.(type) {
		case doctree.DisplayMath:
			check(v.Latex, true)
		case doctree.Heading:
			run(v.Text)
		case doctree.Paragraph:
			for _, line := range v.Runs {
				run(line)
			}
		case doctree.List:
			for _, item := range v.Items {
				run(item)
			}
		case doctree.Table:
			run(v.Caption)
			for _, row := range v.Rows {
				for _, c := range row.Cells {
					run(c.Content)
				}
			}
		case doctree.Blockquote:
			run(v.Content)
		}
	}
	return issues
}
