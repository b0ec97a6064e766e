package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dgallion1/wikidoc/internal/doctree"
)

func TestCSVParser_Basic(t *testing.T) {
	input := "city, population\nParis,2102650\nLyon,522250\n"
	tree, err := (&CSVParser{}).Parse(strings.NewReader(input), "cities.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "cities" {
		t.Errorf("expected title %q, got %q", "cities", tree.Title)
	}

	blocks := tree.Document.Blocks
	if len(blocks) != 2 {
		t.Fatalf("expected heading + table, got %d blocks", len(blocks))
	}
	h := blocks[0].(doctree.Heading)
	if h.Text.PlainText() != "Rows 2-3" || h.Anchor != "rows-2-3" {
		t.Errorf("unexpected heading %#v", h)
	}

	tbl := blocks[1].(doctree.Table)
	if len(tbl.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(tbl.Rows))
	}
	if !tbl.Rows[0].Cells[1].Header || tbl.Rows[0].Cells[1].Content.PlainText() != "population" {
		t.Errorf("expected trimmed header cell, got %#v", tbl.Rows[0].Cells[1])
	}
	if tbl.Rows[2].Cells[0].Header || tbl.Rows[2].Cells[0].Content.PlainText() != "Lyon" {
		t.Errorf("unexpected data cell %#v", tbl.Rows[2].Cells[0])
	}
}

func TestCSVParser_Batches(t *testing.T) {
	var b strings.Builder
	b.WriteString("n\n")
	for i := range 45 {
		fmt.Fprintf(&b, "%d\n", i)
	}
	tree, err := (&CSVParser{}).Parse(strings.NewReader(b.String()), "numbers.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Three sections: 20, 20 and 5 rows, each under its own heading.
	if len(tree.Children) != 3 {
		t.Fatalf("expected 3 sections, got %d", len(tree.Children))
	}
	wantTitles := []string{"Rows 2-21", "Rows 22-41", "Rows 42-46"}
	for i, w := range wantTitles {
		if tree.Children[i].Title != w {
			t.Errorf("section[%d]: expected %q, got %q", i, w, tree.Children[i].Title)
		}
	}
	last := tree.Document.Blocks[5].(doctree.Table)
	if len(last.Rows) != 6 {
		t.Errorf("expected header + 5 rows in last table, got %d", len(last.Rows))
	}
}

func TestCSVParser_HeaderOnlyAndEmpty(t *testing.T) {
	tree, err := (&CSVParser{}).Parse(strings.NewReader("a,b\n"), "h.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Document.Blocks) != 1 || tree.Document.Blocks[0].Kind() != doctree.KindTable {
		t.Errorf("expected a single header table, got %#v", tree.Document.Blocks)
	}

	tree, err = (&CSVParser{}).Parse(strings.NewReader(""), "e.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Document.Blocks) != 0 {
		t.Errorf("expected no blocks, got %d", len(tree.Document.Blocks))
	}
}
