package parser

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/wikidoc/internal/doctree"
)

// HTMLParser handles HTML pages, including article HTML as MediaWiki
// renders it. Page chrome, edit links, references and infoboxes are
// skipped; content maps onto the same block model the wikitext parser
// produces.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := titleFromFilename(filename)
	if t := findTitle(root); t != "" {
		title = t
	}

	c := &htmlConverter{anchors: anchorSet{}}
	doc := &doctree.Document{}
	if body := findBody(root); body != nil {
		c.blocks(body, &doc.Blocks)
	} else {
		c.blocks(root, &doc.Blocks)
	}
	return doctree.BuildTree(title, doc), nil
}

// Classes whose subtrees carry no article content.
var skippedClasses = []string{
	"mw-editsection", "reference", "references", "mw-references-wrap", "reflist",
	"noprint", "navbox", "infobox", "toc", "mw-empty-elt", "thumb", "hatnote",
}

type htmlConverter struct {
	anchors anchorSet
}

func (c *htmlConverter) blocks(n *html.Node, out *[]doctree.Block) {
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if ch.Type != html.ElementNode || skipped(ch) {
			continue
		}
		if latex, ok := texSource(ch); ok && isDisplayMath(ch) {
			*out = append(*out, doctree.DisplayMath{Latex: latex})
			continue
		}

		switch ch.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			run := trimRun(c.inline(ch))
			if len(run) == 0 {
				continue
			}
			*out = append(*out, doctree.Heading{
				Level:  headingLevel(ch.Data),
				Text:   run,
				Anchor: c.anchors.add(run.PlainText()),
			})

		case atom.P, atom.Dt, atom.Dd:
			if latex, ok := soleMath(ch); ok {
				*out = append(*out, doctree.DisplayMath{Latex: latex})
				continue
			}
			if run := trimRun(c.inline(ch)); len(run) > 0 {
				*out = append(*out, doctree.Paragraph{Runs: []doctree.InlineRun{run}})
			}

		case atom.Ul, atom.Ol:
			list := doctree.List{Ordered: ch.DataAtom == atom.Ol}
			c.listItems(ch, &list)
			if len(list.Items) > 0 {
				*out = append(*out, list)
			}

		case atom.Table:
			if tbl, ok := c.table(ch); ok {
				*out = append(*out, tbl)
			}

		case atom.Pre:
			code := doctree.CodeBlock{Text: strings.TrimRight(rawText(ch), "\n")}
			if inner := firstChildElement(ch, atom.Code); inner != nil {
				code.Language = strings.TrimPrefix(classWithPrefix(inner, "language-"), "language-")
			}
			*out = append(*out, code)

		case atom.Blockquote:
			if run := trimRun(c.inline(ch)); len(run) > 0 {
				*out = append(*out, doctree.Blockquote{Content: run})
			}

		case atom.Hr:
			*out = append(*out, doctree.HorizontalRule{})

		default:
			c.blocks(ch, out)
		}
	}
}

// listItems flattens nested lists into the parent, as in wikitext.
func (c *htmlConverter) listItems(n *html.Node, list *doctree.List) {
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || li.DataAtom != atom.Li || skipped(li) {
			continue
		}
		var run doctree.InlineRun
		var nested []*html.Node
		for ch := li.FirstChild; ch != nil; ch = ch.NextSibling {
			if ch.Type == html.ElementNode && (ch.DataAtom == atom.Ul || ch.DataAtom == atom.Ol) {
				nested = append(nested, ch)
				continue
			}
			run = c.token(run, ch)
		}
		if run = trimRun(run); len(run) > 0 {
			list.Items = append(list.Items, run)
		}
		for _, sub := range nested {
			c.listItems(sub, list)
		}
	}
}

func (c *htmlConverter) table(n *html.Node) (doctree.Table, bool) {
	var tbl doctree.Table
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			if ch.Type != html.ElementNode {
				continue
			}
			switch ch.DataAtom {
			case atom.Caption:
				tbl.Caption = trimRun(c.inline(ch))
			case atom.Thead, atom.Tbody, atom.Tfoot:
				walk(ch)
			case atom.Tr:
				var row doctree.Row
				for cell := ch.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type != html.ElementNode || (cell.DataAtom != atom.Td && cell.DataAtom != atom.Th) {
						continue
					}
					row.Cells = append(row.Cells, doctree.Cell{
						Header:  cell.DataAtom == atom.Th,
						Content: trimRun(c.inline(cell)),
					})
				}
				if len(row.Cells) > 0 {
					tbl.Rows = append(tbl.Rows, row)
				}
			}
		}
	}
	walk(n)
	return tbl, len(tbl.Rows) > 0
}

// inline converts the children of n into one run.
func (c *htmlConverter) inline(n *html.Node) doctree.InlineRun {
	var run doctree.InlineRun
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		run = c.token(run, ch)
	}
	return run
}

func (c *htmlConverter) token(run doctree.InlineRun, n *html.Node) doctree.InlineRun {
	if n.Type == html.TextNode {
		return run.Append(doctree.Text{Text: collapseSpace(n.Data)})
	}
	if n.Type != html.ElementNode || skipped(n) {
		return run
	}
	if latex, ok := texSource(n); ok {
		return run.Append(doctree.InlineMath{Latex: latex})
	}

	switch n.DataAtom {
	case atom.B, atom.Strong:
		if content := c.inline(n); len(content) > 0 {
			return run.Append(doctree.Bold{Content: content})
		}
	case atom.I, atom.Em:
		if content := c.inline(n); len(content) > 0 {
			return run.Append(doctree.Italic{Content: content})
		}
	case atom.Code, atom.Tt, atom.Kbd, atom.Samp:
		return run.Append(doctree.Code{Text: textContent(n)})
	case atom.Sup:
		if content := c.inline(n); len(content) > 0 {
			return run.Append(doctree.Superscript{Content: content})
		}
	case atom.Sub:
		if content := c.inline(n); len(content) > 0 {
			return run.Append(doctree.Subscript{Content: content})
		}
	case atom.A:
		return run.Append(linkToken(n))
	case atom.Br:
		return run.Append(doctree.Text{Text: " "})
	case atom.Img, atom.Script, atom.Style:
		return run
	case atom.P, atom.Div, atom.Li, atom.Dd, atom.Dt:
		run = run.Append(doctree.Text{Text: " "})
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			run = c.token(run, ch)
		}
		return run.Append(doctree.Text{Text: " "})
	default:
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			run = c.token(run, ch)
		}
	}
	return run
}

// linkToken maps an anchor to a wiki link when it points at an article
// path, and to an external link otherwise.
func linkToken(n *html.Node) doctree.Token {
	href := attr(n, "href")
	label := strings.TrimSpace(collapseSpace(textContent(n)))

	if hasClass(n, "new") {
		if t := strings.TrimSuffix(attr(n, "title"), " (page does not exist)"); t != "" {
			return doctree.WikiLink{Target: t, Label: labelOr(label, t)}
		}
	}
	for _, prefix := range []string{"/wiki/", "./"} {
		if page, ok := strings.CutPrefix(href, prefix); ok && page != "" {
			if unescaped, err := url.PathUnescape(page); err == nil {
				page = unescaped
			}
			target := strings.ReplaceAll(page, "_", " ")
			return doctree.WikiLink{Target: target, Label: labelOr(label, target)}
		}
	}
	if href == "" || strings.HasPrefix(href, "#") {
		return doctree.Text{Text: label}
	}
	return doctree.Link{URL: href, Label: labelOr(label, href)}
}

// texSource returns the TeX behind a rendered math element: the
// application/x-tex annotation, the alttext of a <math> element, or the
// alt text of a fallback image.
func texSource(n *html.Node) (string, bool) {
	if n.Data != "math" && !hasClass(n, "mwe-math-element") {
		return "", false
	}
	var tex string
	var find func(*html.Node) bool
	find = func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "annotation" && attr(n, "encoding") == "application/x-tex":
				tex = rawText(n)
				return true
			case n.Data == "math" && attr(n, "alttext") != "":
				tex = attr(n, "alttext")
				return true
			case n.DataAtom == atom.Img && attr(n, "alt") != "":
				tex = attr(n, "alt")
				return true
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			if find(ch) {
				return true
			}
		}
		return false
	}
	if !find(n) {
		return "", false
	}
	tex = unwrapStyle(strings.TrimSpace(tex))
	return tex, tex != ""
}

func isDisplayMath(n *html.Node) bool {
	return n.DataAtom == atom.Div ||
		hasClass(n, "mwe-math-element-block") ||
		attr(n, "display") == "block"
}

// soleMath reports a block element whose only content is one formula,
// which MediaWiki emits for indented display equations.
func soleMath(n *html.Node) (string, bool) {
	var found *html.Node
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		switch {
		case ch.Type == html.TextNode && strings.TrimSpace(ch.Data) == "":
		case ch.Type == html.ElementNode && found == nil:
			if _, ok := texSource(ch); !ok {
				return "", false
			}
			found = ch
		default:
			return "", false
		}
	}
	if found == nil || n.DataAtom == atom.P {
		return "", false
	}
	return texSource(found)
}

func unwrapStyle(tex string) string {
	for _, shell := range []string{`{\displaystyle`, `{\textstyle`} {
		if inner, ok := strings.CutPrefix(tex, shell); ok && strings.HasSuffix(inner, "}") {
			return strings.TrimSpace(strings.TrimSuffix(inner, "}"))
		}
	}
	return tex
}

func skipped(n *html.Node) bool {
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Nav, atom.Footer, atom.Header, atom.Noscript, atom.Figure:
		return true
	}
	if attr(n, "role") == "navigation" || attr(n, "id") == "toc" {
		return true
	}
	for _, class := range skippedClasses {
		if hasClass(n, class) {
			return true
		}
	}
	return false
}

// trimRun drops leading and trailing whitespace from the run's text.
func trimRun(run doctree.InlineRun) doctree.InlineRun {
	if len(run) == 0 {
		return nil
	}
	if t, ok := run[0].(doctree.Text); ok {
		if s := strings.TrimLeft(t.Text, " "); s == "" {
			run = run[1:]
		} else {
			run[0] = doctree.Text{Text: s}
		}
	}
	if n := len(run); n > 0 {
		if t, ok := run[n-1].(doctree.Text); ok {
			if s := strings.TrimRight(t.Text, " "); s == "" {
				run = run[:n-1]
			} else {
				run[n-1] = doctree.Text{Text: s}
			}
		}
	}
	var out doctree.InlineRun
	for _, tok := range run {
		if t, ok := tok.(doctree.Text); ok {
			tok = doctree.Text{Text: collapseSpace(t.Text)}
		}
		out = out.Append(tok)
	}
	return out
}

// collapseSpace folds whitespace runs to single spaces, keeping one at
// either end when present.
func collapseSpace(s string) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' {
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	if space {
		b.WriteByte(' ')
	}
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func classWithPrefix(n *html.Node, prefix string) string {
	for _, c := range strings.Fields(attr(n, "class")) {
		if strings.HasPrefix(c, prefix) {
			return c
		}
	}
	return ""
}

func firstChildElement(n *html.Node, a atom.Atom) *html.Node {
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		if ch.Type == html.ElementNode && ch.DataAtom == a {
			return ch
		}
	}
	return nil
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

// rawText concatenates the text under n without trimming.
func rawText(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func textContent(n *html.Node) string {
	return strings.TrimSpace(rawText(n))
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
