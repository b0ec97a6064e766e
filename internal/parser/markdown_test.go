package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/wikidoc/internal/doctree"
)

func TestMarkdownParser_HeadingHierarchy(t *testing.T) {
	input := `# Paris

Capital of France.

## History

Settled by the Parisii.

### Middle Ages

The city grew around the Île de la Cité.

## Geography

Located on the Seine.
`
	p := &MarkdownParser{}
	tree, err := p.Parse(strings.NewReader(input), "paris.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tree.Title != "paris" {
		t.Errorf("expected title %q, got %q", "paris", tree.Title)
	}

	// One h1 holds everything.
	if len(tree.Children) != 1 {
		t.Fatalf("expected 1 top-level child (h1), got %d", len(tree.Children))
	}

	h1 := tree.Children[0]
	if h1.Title != "Paris" {
		t.Errorf("expected top-level title %q, got %q", "Paris", h1.Title)
	}

	// Lead prose stays on the h1 node.
	if !strings.Contains(h1.Text, "Capital of France.") {
		t.Errorf("expected h1 text to contain %q, got %q", "Capital of France.", h1.Text)
	}

	// h1 has two h2 children: "History" and "Geography"
	if len(h1.Children) != 2 {
		t.Fatalf("expected 2 h2 children, got %d", len(h1.Children))
	}

	history := h1.Children[0]
	if history.Title != "History" {
		t.Errorf("expected %q, got %q", "History", history.Title)
	}
	if !strings.Contains(history.Text, "Settled by the Parisii.") {
		t.Errorf("expected History text to contain %q, got %q", "Settled by the Parisii.", history.Text)
	}

	// History has one h3 child
	if len(history.Children) != 1 {
		t.Fatalf("expected 1 h3 child under History, got %d", len(history.Children))
	}
	medieval := history.Children[0]
	if medieval.Title != "Middle Ages" {
		t.Errorf("expected %q, got %q", "Middle Ages", medieval.Title)
	}

	geography := h1.Children[1]
	if geography.Title != "Geography" {
		t.Errorf("expected %q, got %q", "Geography", geography.Title)
	}
}

func TestMarkdownParser_NoHeadings(t *testing.T) {
	input := `Just some plain text.

Another paragraph here.`

	p := &MarkdownParser{}
	tree, err := p.Parse(strings.NewReader(input), "plain.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// No headings: all text should be collected into a single child node.
	if len(tree.Children) != 1 {
		t.Fatalf("expected 1 child for headingless markdown, got %d", len(tree.Children))
	}

	text := tree.Children[0].Text
	if !strings.Contains(text, "Just some plain text.") {
		t.Errorf("expected text to contain first paragraph, got %q", text)
	}
	if !strings.Contains(text, "Another paragraph here.") {
		t.Errorf("expected text to contain second paragraph, got %q", text)
	}
}

func TestMarkdownParser_MixedContentWithCodeBlocks(t *testing.T) {
	input := "# API Reference\n\nSome intro.\n\n## Endpoints\n\nList of endpoints:\n\n```\nGET /api/users\nPOST /api/users\n```\n\nMore text after code.\n"

	p := &MarkdownParser{}
	tree, err := p.Parse(strings.NewReader(input), "api.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Should have one h1 child
	if len(tree.Children) != 1 {
		t.Fatalf("expected 1 top-level child, got %d", len(tree.Children))
	}

	h1 := tree.Children[0]
	if h1.Title != "API Reference" {
		t.Errorf("expected title %q, got %q", "API Reference", h1.Title)
	}

	// h1 has one h2 child: "Endpoints"
	if len(h1.Children) != 1 {
		t.Fatalf("expected 1 h2 child, got %d", len(h1.Children))
	}

	endpoints := h1.Children[0]
	if endpoints.Title != "Endpoints" {
		t.Errorf("expected title %q, got %q", "Endpoints", endpoints.Title)
	}

	// The endpoints section should contain the code block content
	if !strings.Contains(endpoints.Text, "GET /api/users") {
		t.Errorf("expected code block content in text, got %q", endpoints.Text)
	}
	if !strings.Contains(endpoints.Text, "More text after code.") {
		t.Errorf("expected post-code text, got %q", endpoints.Text)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	p := &MarkdownParser{}
	tree, err := p.Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Children) != 0 {
		t.Errorf("expected 0 children for empty input, got %d", len(tree.Children))
	}
}

func TestMarkdownParser_TitleStripping(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"readme.md", "readme"},
		{"notes.markdown", "notes"},
		{"plain.md", "plain"},
	}
	p := &MarkdownParser{}
	for _, tt := range tests {
		tree, err := p.Parse(strings.NewReader("text"), tt.filename)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tt.filename, err)
		}
		if tree.Title != tt.want {
			t.Errorf("filename=%q: expected title %q, got %q", tt.filename, tt.want, tree.Title)
		}
	}
}

func TestMarkdownParser_BlockMapping(t *testing.T) {
	input := "## Data\n\nSome **bold** and *italic* with `code` and [a link](https://example.org).\n\n" +
		"- one\n- two\n  - nested\n\n1. first\n2. second\n\n" +
		"| Year | Pop |\n|------|-----|\n| 1900 | 100 |\n\n> quoted text\n\n---\n\n```go\nx := 1\n```\n"

	p := &MarkdownParser{}
	tree, err := p.Parse(strings.NewReader(input), "data.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	blocks := tree.Document.Blocks
	wantKinds := []doctree.BlockKind{
		doctree.KindHeading, doctree.KindParagraph, doctree.KindList, doctree.KindList,
		doctree.KindTable, doctree.KindBlockquote, doctree.KindHorizontalRule, doctree.KindCodeBlock,
	}
	if len(blocks) != len(wantKinds) {
		t.Fatalf("expected %d blocks, got %d: %#v", len(wantKinds), len(blocks), blocks)
	}
	for i, k := range wantKinds {
		if blocks[i].Kind() != k {
			t.Errorf("block[%d]: expected %s, got %s", i, k, blocks[i].Kind())
		}
	}

	h := blocks[0].(doctree.Heading)
	if h.Level != 2 || h.Anchor != "data" {
		t.Errorf("unexpected heading %#v", h)
	}

	para := blocks[1].(doctree.Paragraph)
	run := para.Runs[0]
	var sawBold, sawItalic, sawCode, sawLink bool
	for _, tok := range run {
		switch v := tok.(type) {
		case doctree.Bold:
			sawBold = v.Content.PlainText() == "bold"
		case doctree.Italic:
			sawItalic = v.Content.PlainText() == "italic"
		case doctree.Code:
			sawCode = v.Text == "code"
		case doctree.Link:
			sawLink = v.URL == "https://example.org" && v.Label == "a link"
		}
	}
	if !sawBold || !sawItalic || !sawCode || !sawLink {
		t.Errorf("inline tokens missing: bold=%v italic=%v code=%v link=%v in %#v", sawBold, sawItalic, sawCode, sawLink, run)
	}

	unordered := blocks[2].(doctree.List)
	if unordered.Ordered || len(unordered.Items) != 3 {
		t.Errorf("expected flattened unordered list of 3, got %#v", unordered)
	}
	if !blocks[3].(doctree.List).Ordered {
		t.Errorf("expected ordered list")
	}

	tbl := blocks[4].(doctree.Table)
	if len(tbl.Rows) != 2 || !tbl.Rows[0].Cells[0].Header || tbl.Rows[1].Cells[0].Header {
		t.Errorf("unexpected table %#v", tbl)
	}
	if got := doctree.BlockText(tbl); got != "Year | Pop\n1900 | 100" {
		t.Errorf("table text: got %q", got)
	}

	if got := blocks[5].(doctree.Blockquote).Content.PlainText(); got != "quoted text" {
		t.Errorf("blockquote: got %q", got)
	}
	code := blocks[7].(doctree.CodeBlock)
	if code.Language != "go" || code.Text != "x := 1" {
		t.Errorf("code block: got %#v", code)
	}
}
