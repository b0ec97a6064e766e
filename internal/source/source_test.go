package source

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/wikidoc/internal/doctree"
)

func TestDecodeJSONPriority(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		kind  Kind
		title string
		text  string
	}{
		{"top-level string", `"'''Paris'''"`, KindRaw, "", "'''Paris'''"},
		{"wikitext string", `{"title":"Paris","wikitext":"a","content":"b"}`, KindWikitext, "Paris", "a"},
		{"wikitext star", `{"wikitext":{"*":"a"},"*":"b"}`, KindWikitext, "", "a"},
		{"star before content", `{"content":"b","*":"a"}`, KindStar, "", "a"},
		{"content", `{"content":"c","extra":1}`, KindContent, "", "c"},
		{"parse wrapper", `{"parse":{"title":"Rome","pageid":1,"wikitext":{"*":"== R =="}}}`, KindWikitext, "Rome", "== R =="},
		{"non-string wikitext falls through", `{"wikitext":5,"content":"c"}`, KindContent, "", "c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := DecodeJSON(strings.NewReader(tt.body))
			require.NoError(t, err)
			assert.Equal(t, Input{Kind: tt.kind, Title: tt.title, Text: tt.text}, in)
		})
	}
}

func TestDecodeJSONSectionsKeepOrder(t *testing.T) {
	in, err := DecodeJSON(strings.NewReader(`{"title":"Paris","Zeta":"last letter","Alpha":"first","n":3,"list":["x"]}`))
	require.NoError(t, err)
	assert.Equal(t, KindSections, in.Kind)
	assert.Equal(t, "Paris", in.Title)
	assert.Equal(t, "== Zeta ==\nlast letter\n\n== Alpha ==\nfirst", in.Text)

	doc := in.Parse()
	require.Len(t, doc.Blocks, 4)
	assert.Equal(t, doctree.KindHeading, doc.Blocks[0].Kind())
	assert.Equal(t, "zeta", doc.Blocks[0].(doctree.Heading).Anchor)
}

func TestDecodeJSONErrors(t *testing.T) {
	_, err := DecodeJSON(strings.NewReader(`{"n":1,"list":[1,2]}`))
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = DecodeJSON(strings.NewReader(`[1,2]`))
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = DecodeJSON(strings.NewReader(`{"a":`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoContent)

	deep := strings.Repeat("[", 200) + strings.Repeat("]", 200)
	_, err = DecodeJSON(strings.NewReader(deep))
	assert.ErrorIs(t, err, errTooDeep)
}

func TestDecodeYAML(t *testing.T) {
	in, err := DecodeYAML(strings.NewReader("title: Paris\ncontent: |\n  == History ==\n  Old city.\n"))
	require.NoError(t, err)
	assert.Equal(t, Input{Kind: KindContent, Title: "Paris", Text: "== History ==\nOld city.\n"}, in)

	in, err = DecodeYAML(strings.NewReader("Zeta: z\nAlpha: a\ncount: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, "== Zeta ==\nz\n\n== Alpha ==\na", in.Text)

	in, err = DecodeYAML(strings.NewReader("Some '''bold''' text\n"))
	require.NoError(t, err)
	assert.Equal(t, KindRaw, in.Kind)

	_, err = DecodeYAML(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = DecodeYAML(strings.NewReader("a: [\n"))
	assert.Error(t, err)
}

func TestDecodeYAMLAliases(t *testing.T) {
	in, err := DecodeYAML(strings.NewReader("name: &n Paris\ntitle: *n\ncontent: Old city.\n"))
	require.NoError(t, err)
	assert.Equal(t, Input{Kind: KindContent, Title: "Paris", Text: "Old city."}, in)

	// Each level refers to the previous one ten times.
	var b strings.Builder
	b.WriteString("l0: &l0 {a0: x, a1: x, a2: x, a3: x, a4: x, a5: x, a6: x, a7: x, a8: x, a9: x}\n")
	for lvl := 1; lvl <= 8; lvl++ {
		fmt.Fprintf(&b, "l%d: &l%d {", lvl, lvl)
		for k := range 10 {
			if k > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "a%d: *l%d", k, lvl-1)
		}
		b.WriteString("}\n")
	}
	require.Less(t, b.Len(), 1024)

	_, err = DecodeYAML(strings.NewReader(b.String()))
	assert.ErrorIs(t, err, errTooLarge)
}

func TestDecodeByContentType(t *testing.T) {
	in, err := Decode("application/json; charset=utf-8", strings.NewReader(`{"*":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, KindStar, in.Kind)

	in, err = Decode("application/yaml", strings.NewReader(`wikitext: "y"`))
	require.NoError(t, err)
	assert.Equal(t, Input{Kind: KindWikitext, Text: "y"}, in)

	in, err = Decode("text/plain", strings.NewReader(`{"*":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, FromString(`{"*":"x"}`), in)

	in, err = Decode("", strings.NewReader("plain"))
	require.NoError(t, err)
	assert.Equal(t, KindRaw, in.Kind)
}

func TestInputTree(t *testing.T) {
	tree := FromString("Lead.\n== A ==\nBody").Tree("fallback")
	assert.Equal(t, "fallback", tree.Title)
	require.Len(t, tree.Children, 2)
	assert.Equal(t, "A", tree.Children[1].Title)

	tree = Input{Title: "Named", Text: "x"}.Tree("fallback")
	assert.Equal(t, "Named", tree.Title)
}
