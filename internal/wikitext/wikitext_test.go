package wikitext

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/wikidoc/internal/doctree"
)

const parisArticle = `{{Short description|Capital of France}}
{{Infobox settlement
| name = Paris
| image = [[File:Paris.jpg|thumb]]
}}
'''Paris''' is the capital<ref>{{cite web|url=x}}</ref> of [[France]].<!-- lead -->

== History ==
The city was founded in the 3rd century BC.

=== Middle Ages ===
* Item one
* Item two

== Geography ==
The area is <math>105.4</math> square kilometres.
__NOTOC__`

func kinds(doc *doctree.Document) []doctree.BlockKind {
	var out []doctree.BlockKind
	for _, b := range doc.Blocks {
		out = append(out, b.Kind())
	}
	return out
}

func TestParseArticle(t *testing.T) {
	doc := Parse(parisArticle)

	assert.Equal(t, []doctree.BlockKind{
		doctree.KindParagraph,
		doctree.KindHeading, doctree.KindParagraph,
		doctree.KindHeading, doctree.KindList,
		doctree.KindHeading, doctree.KindParagraph,
	}, kinds(doc))

	assert.Equal(t, doctree.Paragraph{Runs: []doctree.InlineRun{run(
		doctree.Bold{Content: run(txt("Paris"))},
		txt(" is the capital of "),
		doctree.WikiLink{Target: "France", Label: "France"},
		txt("."),
	)}}, doc.Blocks[0])

	assert.Equal(t, doctree.Heading{Level: 3, Text: run(txt("Middle Ages")), Anchor: "middle-ages"}, doc.Blocks[3])
	assert.Equal(t, doctree.Paragraph{Runs: []doctree.InlineRun{run(
		txt("The area is "),
		doctree.InlineMath{Latex: "105.4"},
		txt(" square kilometres."),
	)}}, doc.Blocks[6])

	plain := doc.PlainText()
	assert.NotContains(t, plain, "Infobox")
	assert.NotContains(t, plain, "cite web")
	assert.NotContains(t, plain, "NOTOC")
}

func TestParseEmpty(t *testing.T) {
	assert.Empty(t, Parse("").Blocks)
	assert.Empty(t, Parse("  \n\n ").Blocks)
	assert.Empty(t, Parse("{{Infobox|x}}<!-- c -->").Blocks)
}

func TestParseDisplayMathNeverInsideParagraph(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []doctree.Block
	}{
		{
			"assignment pulled into formula",
			`Energy is given by x = {\displaystyle y^2} for all values.`,
			[]doctree.Block{
				para("Energy is given by"),
				doctree.DisplayMath{Latex: "x=y^2"},
				para("for all values."),
			},
		},
		{
			"trailing punctuation dropped",
			`Consider {\displaystyle a+b}.`,
			[]doctree.Block{para("Consider"), doctree.DisplayMath{Latex: "a+b"}},
		},
		{
			"rendered extract fallback removed",
			"Intro sentence here.\n\n  \n    x\n    2\n  \n  {\\displaystyle x^{2}}\n  \nis the square.",
			[]doctree.Block{
				para("Intro sentence here."),
				doctree.DisplayMath{Latex: "x^{2}"},
				para("is the square."),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.in).Blocks)
		})
	}
}

func TestParseInlineMath(t *testing.T) {
	doc := Parse(`Area <math>\pi r^2</math> here`)
	assert.Equal(t, []doctree.Block{doctree.Paragraph{Runs: []doctree.InlineRun{run(
		txt("Area "), doctree.InlineMath{Latex: `\pi r^2`}, txt(" here"),
	)}}}, doc.Blocks)
}

func TestParseCodeKeepsMathSource(t *testing.T) {
	doc := Parse("<pre><math>x</math></pre>")
	assert.Equal(t, []doctree.Block{doctree.CodeBlock{Text: "<math>x</math>"}}, doc.Blocks)
}

func TestParseMalformedInputDegrades(t *testing.T) {
	inputs := []string{
		"{{{{{{",
		"'''''''''''",
		"[[[[[[",
		"<math>",
		"{|",
		"```",
		"$$",
		`{\displaystyle {{`,
		"<sup><sup>",
		"\uE000MATH0\uE001",
		"]]]]}}}}",
	}
	for _, in := range inputs {
		var doc *doctree.Document
		require.NotPanics(t, func() { doc = Parse(in) }, "input %q", in)
		assert.NotEmpty(t, doc.Blocks, "input %q", in)
	}
}

func TestParseEmptyHeadingProducesNoHeading(t *testing.T) {
	assert.Equal(t, []doctree.Block{para("Intro"), para("Body")}, Parse("Intro\n== ==\nBody").Blocks)

	// Alone, the line leaves nothing for the block parser and comes back
	// through the plain-text fallback.
	assert.Equal(t, []doctree.Block{para("== ==")}, Parse("== ==").Blocks)
}

func TestParseFallbackUsesStrippedText(t *testing.T) {
	doc := Parse("{{Infobox person|name=X}}\n{|\n|}")
	assert.Equal(t, []doctree.Block{para("{| |}")}, doc.Blocks)
	assert.NotContains(t, doc.PlainText(), "Infobox")
}

func TestParseDeepNestingTerminates(t *testing.T) {
	in := strings.Repeat("''' [[a|", 300) + strings.Repeat("]]'''", 300)
	doc := Parse(in)
	assert.NotEmpty(t, doc.Blocks)
}

func TestParseConcurrent(t *testing.T) {
	want := Parse(parisArticle)

	var wg sync.WaitGroup
	results := make([]*doctree.Document, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = Parse(parisArticle)
		}(i)
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

// parseTime returns the best of three Parse timings.
func parseTime(s string) time.Duration {
	best := time.Duration(-1)
	for range 3 {
		start := time.Now()
		Parse(s)
		if d := time.Since(start); best < 0 || d < best {
			best = d
		}
	}
	return best
}

func TestParseScalesLinearly(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	units := map[string]string{
		"unmatched emphasis":  "''''a ",
		"apostrophes in text": "it's a ",
		"bare markers":        `Some words here {\textstyle x} `,
		"unclosed markers":    `word {\textstyle x `,
		"unclosed sup":        "<sup>a ",
		"unclosed raw math":   `\( a `,
		"unclosed ext link":   "[http://x a ",
		"unclosed code tag":   "<code>a ",
	}
	for name, unit := range units {
		t.Run(name, func(t *testing.T) {
			n := 50_000 / len(unit)
			small := parseTime(strings.Repeat(unit, n))
			large := parseTime(strings.Repeat(unit, 4*n))
			if large < 50*time.Millisecond {
				return
			}
			// Quadratic work would be 16x; allow noise well short of that.
			assert.Less(t, large, 10*small, "4x input: %v vs %v", large, small)
		})
	}
}

func TestFallback(t *testing.T) {
	doc := Fallback("a\n b\r\n\r\n\n\nc  d")
	assert.Equal(t, []doctree.Block{para("a b"), para("c d")}, doc.Blocks)
	assert.Empty(t, Fallback("").Blocks)
}
