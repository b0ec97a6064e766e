package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/wikidoc/internal/doctree"
)

// MarkdownParser handles Markdown files using goldmark. The AST is mapped
// onto the same block model the wikitext parser produces.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough))
	root := md.Parser().Parse(text.NewReader(src))

	c := &mdConverter{src: src, anchors: anchorSet{}}
	doc := &doctree.Document{}
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		doc.Blocks = append(doc.Blocks, c.block(n)...)
	}
	return doctree.BuildTree(titleFromFilename(filename), doc), nil
}

type mdConverter struct {
	src     []byte
	anchors anchorSet
}

func (c *mdConverter) block(n ast.Node) []doctree.Block {
	switch node := n.(type) {
	case *ast.Heading:
		run := c.inline(node)
		if len(run) == 0 {
			return nil
		}
		return []doctree.Block{doctree.Heading{
			Level:  node.Level,
			Text:   run,
			Anchor: c.anchors.add(run.PlainText()),
		}}

	case *ast.Paragraph, *ast.TextBlock:
		if run := c.inline(node); len(run) > 0 {
			return []doctree.Block{doctree.Paragraph{Runs: []doctree.InlineRun{run}}}
		}

	case *ast.List:
		list := doctree.List{Ordered: node.IsOrdered()}
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			var run doctree.InlineRun
			for child := item.FirstChild(); child != nil; child = child.NextSibling() {
				if _, nested := child.(*ast.List); nested {
					// Nested lists flatten into the parent, as in wikitext.
					for _, b := range c.block(child) {
						if l, ok := b.(doctree.List); ok {
							list.Items = append(list.Items, l.Items...)
						}
					}
					continue
				}
				if len(run) > 0 {
					run = run.Append(doctree.Text{Text: " "})
				}
				for _, tok := range c.inline(child) {
					run = run.Append(tok)
				}
			}
			if len(run) > 0 {
				list.Items = append(list.Items, run)
			}
		}
		if len(list.Items) > 0 {
			return []doctree.Block{list}
		}

	case *ast.FencedCodeBlock:
		return []doctree.Block{doctree.CodeBlock{
			Language: string(node.Language(c.src)),
			Text:     c.lines(node),
		}}

	case *ast.CodeBlock:
		return []doctree.Block{doctree.CodeBlock{Text: c.lines(node)}}

	case *ast.Blockquote:
		var run doctree.InlineRun
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			for _, b := range c.block(child) {
				if len(run) > 0 {
					run = run.Append(doctree.Text{Text: " "})
				}
				run = run.Append(doctree.Text{Text: doctree.BlockText(b)})
			}
		}
		if len(run) > 0 {
			return []doctree.Block{doctree.Blockquote{Content: run}}
		}

	case *ast.ThematicBreak:
		return []doctree.Block{doctree.HorizontalRule{}}

	case *east.Table:
		var tbl doctree.Table
		for row := node.FirstChild(); row != nil; row = row.NextSibling() {
			_, header := row.(*east.TableHeader)
			var r doctree.Row
			for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
				r.Cells = append(r.Cells, doctree.Cell{Header: header, Content: c.inline(cell)})
			}
			tbl.Rows = append(tbl.Rows, r)
		}
		if len(tbl.Rows) > 0 {
			return []doctree.Block{tbl}
		}
	}
	return nil
}

func (c *mdConverter) lines(n ast.Node) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(c.src))
	}
	return strings.TrimRight(buf.String(), "\n")
}

// inline converts the inline children of n.
func (c *mdConverter) inline(n ast.Node) doctree.InlineRun {
	var run doctree.InlineRun
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		for _, tok := range c.token(child) {
			run = run.Append(tok)
		}
	}
	return run
}

func (c *mdConverter) token(n ast.Node) []doctree.Token {
	switch node := n.(type) {
	case *ast.Text:
		s := string(node.Value(c.src))
		if node.SoftLineBreak() || node.HardLineBreak() {
			s += " "
		}
		return []doctree.Token{doctree.Text{Text: s}}
	case *ast.String:
		return []doctree.Token{doctree.Text{Text: string(node.Value)}}
	case *ast.Emphasis:
		content := c.inline(node)
		if node.Level >= 2 {
			return []doctree.Token{doctree.Bold{Content: content}}
		}
		return []doctree.Token{doctree.Italic{Content: content}}
	case *ast.CodeSpan:
		return []doctree.Token{doctree.Code{Text: c.inline(node).PlainText()}}
	case *ast.Link:
		return []doctree.Token{doctree.Link{
			URL:   string(node.Destination),
			Label: labelOr(c.inline(node).PlainText(), string(node.Destination)),
		}}
	case *ast.AutoLink:
		url := string(node.URL(c.src))
		return []doctree.Token{doctree.Link{URL: url, Label: string(node.Label(c.src))}}
	case *ast.Image:
		return []doctree.Token{doctree.Text{Text: c.inline(node).PlainText()}}
	case *ast.RawHTML:
		return nil
	}
	// Strikethrough and other wrappers keep their text.
	return c.inline(n)
}

func labelOr(label, fallback string) string {
	if strings.TrimSpace(label) == "" {
		return fallback
	}
	return label
}
