package doctree

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() *Document {
	return &Document{Blocks: []Block{
		Heading{Level: 2, Text: PlainRun("History"), Anchor: "history"},
		Paragraph{Runs: []InlineRun{
			{
				Text{Text: "Founded by "},
				WikiLink{Target: "Julius Caesar", Label: "Caesar"},
				Text{Text: " in "},
				Bold{Content: InlineRun{Italic{Content: PlainRun("52 BC")}}},
			},
			{InlineMath{Latex: `x^2`}, Superscript{Content: PlainRun("1")}},
		}},
		DisplayMath{Latex: `E=mc^2`},
		List{Ordered: true, Items: []InlineRun{PlainRun("one"), {Code{Text: "two"}}}},
		Table{
			Caption: PlainRun("Population"),
			Rows: []Row{
				{Cells: []Cell{{Header: true, Content: PlainRun("Year")}, {Header: true, Content: PlainRun("Count")}}},
				{Cells: []Cell{{Content: PlainRun("1900")}, {Content: InlineRun{Link{URL: "https://example.org", Label: "ref"}}}}},
			},
		},
		CodeBlock{Language: "go", Text: "fmt.Println(1)"},
		Blockquote{Content: InlineRun{BoldItalic{Text: "quoted"}, Subscript{Content: PlainRun("2")}}},
		HorizontalRule{},
	}}
}

func TestDocumentJSONRoundTrip(t *testing.T) {
	doc := sampleDocument()

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var got Document
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, doc.Blocks, got.Blocks)
}

func TestDocumentJSONShape(t *testing.T) {
	doc := &Document{Blocks: []Block{
		Heading{Level: 3, Text: PlainRun("Title")},
		HorizontalRule{},
	}}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"blocks":[{"type":"heading","level":3,"text":[{"type":"text","text":"Title"}]},{"type":"hr"}]}`,
		string(data))
}

func TestUnmarshalUnknownType(t *testing.T) {
	var doc Document
	err := json.Unmarshal([]byte(`{"blocks":[{"type":"gallery"}]}`), &doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gallery")

	err = json.Unmarshal([]byte(`{"blocks":[{"level":2}]}`), &doc)
	require.Error(t, err)
}

func TestInlineRunAppendMergesText(t *testing.T) {
	var r InlineRun
	r = r.Append(Text{Text: "a"})
	r = r.Append(Text{Text: "b"})
	r = r.Append(Text{Text: ""})
	r = r.Append(Code{Text: "c"})
	r = r.Append(Text{Text: "d"})
	assert.Equal(t, InlineRun{Text{Text: "ab"}, Code{Text: "c"}, Text{Text: "d"}}, r)
}

func TestRunBuilder(t *testing.T) {
	var b RunBuilder
	assert.Nil(t, b.Run())

	b.Add(Text{Text: "it"})
	b.Add(Text{Text: "'"})
	b.Add(Text{Text: "s "})
	b.Add(Text{Text: ""})
	b.Add(Bold{Content: PlainRun("x")})
	b.Add(Text{Text: "y"})
	assert.Equal(t, InlineRun{Text{Text: "it's "}, Bold{Content: PlainRun("x")}, Text{Text: "y"}}, b.Run())

	b.Add(Text{Text: "z"})
	assert.Equal(t, InlineRun{Text{Text: "it's "}, Bold{Content: PlainRun("x")}, Text{Text: "yz"}}, b.Run())
}

func TestPlainText(t *testing.T) {
	doc := sampleDocument()
	text := doc.PlainText()

	assert.Contains(t, text, "Founded by Caesar in 52 BC")
	assert.Contains(t, text, "x^21")
	assert.Contains(t, text, "- one\n- two")
	assert.Contains(t, text, "Year | Count")
	assert.Contains(t, text, "quoted2")
	assert.NotContains(t, text, "Julius")
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Early life", "early-life"},
		{"  C++ (language)  ", "c-language"},
		{"Économie", "économie"},
		{"---", ""},
		{"a--b", "a-b"},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := Slugify(strings.Repeat("é", 100))
	assert.LessOrEqual(t, len(long), maxSlugBytes)
	assert.True(t, strings.HasPrefix(long, "éé"))
}

func TestDocumentSlice(t *testing.T) {
	doc := sampleDocument()
	n := len(doc.Blocks)

	assert.Len(t, doc.Slice(0, 0).Blocks, n)
	assert.Len(t, doc.Slice(2, 3).Blocks, 3)
	assert.Len(t, doc.Slice(n-1, 10).Blocks, 1)
	assert.Empty(t, doc.Slice(n+5, 2).Blocks)
	assert.Len(t, doc.Slice(-3, 1).Blocks, 1)

	var nilDoc *Document
	assert.Empty(t, nilDoc.Slice(0, 5).Blocks)
}

func TestBuildTree(t *testing.T) {
	doc := &Document{Blocks: []Block{
		Paragraph{Runs: []InlineRun{PlainRun("Lead text.")}},
		Heading{Level: 2, Text: PlainRun("History"), Anchor: "history"},
		Paragraph{Runs: []InlineRun{PlainRun("Old times.")}},
		Heading{Level: 3, Text: PlainRun("Antiquity"), Anchor: "antiquity"},
		Paragraph{Runs: []InlineRun{PlainRun("Very old.")}},
		Heading{Level: 2, Text: PlainRun("Geography"), Anchor: "geography"},
		List{Items: []InlineRun{PlainRun("river")}},
	}}

	tree := BuildTree("Rome", doc)
	require.Len(t, tree.Children, 3)

	lead := tree.Children[0]
	assert.Equal(t, "", lead.Title)
	assert.Equal(t, "Lead text.", lead.Text)

	history := tree.Children[1]
	assert.Equal(t, "History", history.Title)
	assert.Equal(t, "history", history.Anchor)
	assert.Equal(t, 2, history.Level)
	assert.Equal(t, "Old times.", history.Text)
	require.Len(t, history.Children, 1)
	assert.Equal(t, "Antiquity", history.Children[0].Title)
	assert.Equal(t, "Very old.", history.Children[0].Text)

	geo := tree.Children[2]
	assert.Equal(t, "- river", geo.Text)
	assert.Empty(t, geo.Children)

	var crumbs [][]string
	tree.Walk(func(n *DocNode, bc []string) {
		crumbs = append(crumbs, bc)
	})
	assert.Equal(t, [][]string{nil, {"History"}, {"History", "Antiquity"}, {"Geography"}}, crumbs)
}

func TestBuildTreeNoHeadings(t *testing.T) {
	doc := &Document{Blocks: []Block{
		Paragraph{Runs: []InlineRun{PlainRun("one")}},
		Paragraph{Runs: []InlineRun{PlainRun("two")}},
	}}
	tree := BuildTree("t", doc)
	require.Len(t, tree.Children, 1)
	assert.Equal(t, "one\n\ntwo", tree.Children[0].Text)
	assert.Len(t, tree.Children[0].Blocks, 2)
}
