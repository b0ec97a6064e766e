package render

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/wikidoc/internal/doctree"
)

// HTML renders documents as HTML fragments. Math goes through Math, with
// failures shown as flagged literal source; a nil Math always shows the
// source.
type HTML struct {
	Math  MathRenderer
	Links LinkResolver
}

// Render writes doc as a sequence of top-level HTML elements.
func (r *HTML) Render(w io.Writer, doc *doctree.Document) error {
	if doc == nil {
		return nil
	}
	dr := &HTML{Math: forDocument(r.Math), Links: r.Links}
	for _, b := range doc.Blocks {
		n := dr.block(b)
		if n == nil {
			continue
		}
		if err := html.Render(w, n); err != nil {
			return fmt.Errorf("render %s: %w", b.Kind(), err)
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}

// RenderString is Render into a string.
func (r *HTML) RenderString(doc *doctree.Document) (string, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

var headingAtoms = [...]atom.Atom{atom.H1, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6}

func (r *HTML) block(b doctree.Block) *html.Node {
	switch v := b.(type) {
	case doctree.Heading:
		level := min(max(v.Level, 1), 6)
		var n *html.Node
		if v.Anchor != "" {
			n = element(headingAtoms[level], "id", v.Anchor)
		} else {
			n = element(headingAtoms[level])
		}
		r.inline(n, v.Text)
		return n

	case doctree.Paragraph:
		n := element(atom.P)
		for i, run := range v.Runs {
			if i > 0 {
				n.AppendChild(element(atom.Br))
			}
			r.inline(n, run)
		}
		return n

	case doctree.List:
		n := element(atom.Ul)
		if v.Ordered {
			n = element(atom.Ol)
		}
		for _, item := range v.Items {
			li := element(atom.Li)
			r.inline(li, item)
			n.AppendChild(li)
		}
		return n

	case doctree.Table:
		n := element(atom.Table, "class", "wikitable")
		if len(v.Caption) > 0 {
			c := element(atom.Caption)
			r.inline(c, v.Caption)
			n.AppendChild(c)
		}
		body := element(atom.Tbody)
		for _, row := range v.Rows {
			tr := element(atom.Tr)
			for _, cell := range row.Cells {
				td := element(atom.Td)
				if cell.Header {
					td = element(atom.Th)
				}
				r.inline(td, cell.Content)
				tr.AppendChild(td)
			}
			body.AppendChild(tr)
		}
		n.AppendChild(body)
		return n

	case doctree.CodeBlock:
		pre := element(atom.Pre)
		code := element(atom.Code)
		if v.Language != "" {
			code.Attr = append(code.Attr, html.Attribute{Key: "class", Val: "language-" + v.Language})
		}
		code.AppendChild(textNode(v.Text))
		pre.AppendChild(code)
		return pre

	case doctree.DisplayMath:
		n := element(atom.Div, "class", "math math-display")
		r.math(n, v.Latex, true)
		return n

	case doctree.Blockquote:
		n := element(atom.Blockquote)
		r.inline(n, v.Content)
		return n

	case doctree.HorizontalRule:
		return element(atom.Hr)
	}
	return nil
}

func (r *HTML) inline(parent *html.Node, run doctree.InlineRun) {
	for _, tok := range run {
		switch t := tok.(type) {
		case doctree.Text:
			parent.AppendChild(textNode(t.Text))
		case doctree.Bold:
			n := element(atom.Strong)
			r.inline(n, t.Content)
			parent.AppendChild(n)
		case doctree.Italic:
			n := element(atom.Em)
			r.inline(n, t.Content)
			parent.AppendChild(n)
		case doctree.BoldItalic:
			strong, em := element(atom.Strong), element(atom.Em)
			em.AppendChild(textNode(t.Text))
			strong.AppendChild(em)
			parent.AppendChild(strong)
		case doctree.Code:
			n := element(atom.Code)
			n.AppendChild(textNode(t.Text))
			parent.AppendChild(n)
		case doctree.Link:
			n := element(atom.A, "href", t.URL, "class", "external", "target", "_blank", "rel", "noopener noreferrer")
			n.AppendChild(textNode(t.Label))
			parent.AppendChild(n)
		case doctree.WikiLink:
			n := element(atom.A, "href", r.Links.Resolve(t.Target), "title", t.Target)
			n.AppendChild(textNode(t.Label))
			parent.AppendChild(n)
		case doctree.InlineMath:
			n := element(atom.Span, "class", "math math-inline")
			r.math(n, t.Latex, false)
			parent.AppendChild(n)
		case doctree.Superscript:
			n := element(atom.Sup)
			r.inline(n, t.Content)
			parent.AppendChild(n)
		case doctree.Subscript:
			n := element(atom.Sub)
			r.inline(n, t.Content)
			parent.AppendChild(n)
		}
	}
}

// math appends the MathML for latex to parent, or a flagged literal when
// conversion fails.
func (r *HTML) math(parent *html.Node, latex string, display bool) {
	if mml, ok := safeMath(r.Math, latex, display); ok {
		nodes, err := html.ParseFragment(strings.NewReader(mml), parent)
		if err == nil && len(nodes) > 0 {
			for _, n := range nodes {
				parent.AppendChild(n)
			}
			return
		}
		recordMathFailure(display, "markup")
	}
	n := element(atom.Code, "class", "math-error", "data-display", strconv.FormatBool(display))
	n.AppendChild(textNode(latex))
	parent.AppendChild(n)
}
