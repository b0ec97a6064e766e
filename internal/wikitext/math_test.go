package wikitext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractMathTags(t *testing.T) {
	text, table := ExtractMath(`a <math>x^2</math> b <math display="block">\frac{a}{b}</math> c <math>{\displaystyle { a + b } }</math>`)

	k0, k1, k2 := placeholderKey(0), placeholderKey(1), placeholderKey(2)
	assert.Equal(t, "a "+k0+" b "+k1+" c "+k2, text)
	require.Len(t, table, 3)
	assert.Equal(t, MathEntry{Latex: "x^2", Display: false, Raw: "<math>x^2</math>"}, table[k0])
	assert.True(t, table[k1].Display)
	assert.Equal(t, `\frac{a}{b}`, table[k1].Latex)
	assert.True(t, table[k2].Display)
	assert.Equal(t, "{a + b}", table[k2].Latex)
}

func TestExtractMathBareMarkers(t *testing.T) {
	text, table := ExtractMath(`The value {\textstyle x+1} here and {\displaystyle \sum_{i} i}, done`)

	k0, k1 := placeholderKey(0), placeholderKey(1)
	assert.Equal(t, "The value "+k0+" here and "+k1+", done", text)
	assert.Equal(t, MathEntry{Latex: "x+1", Display: false, Raw: `{\textstyle x+1}`}, table[k0])
	assert.Equal(t, `\sum_{i} i`, table[k1].Latex)
	assert.True(t, table[k1].Display)
}

func TestExtractMathUnterminated(t *testing.T) {
	in := `a {\displaystyle x+{y`
	text, table := ExtractMath(in)
	assert.Equal(t, in, text)
	assert.Empty(t, table)

	in = `b <math>x`
	text, table = ExtractMath(in)
	assert.Equal(t, in, text)
	assert.Empty(t, table)
}

func TestExtractMathSanitizesSentinels(t *testing.T) {
	text, table := ExtractMath("a\uE000MATH0\uE001b")
	assert.Equal(t, "aMATH0b", text)
	assert.Empty(t, table)
}

func TestPlaceholderUniqueness(t *testing.T) {
	in := "x <math>a</math> y {\\displaystyle b} z <math>{\\textstyle c}</math> \\(d\\) {\\textstyle e}\n" +
		"\uE000MATH1\uE001 <math>a</math>"
	text, table := ExtractMath(in)

	keys := placeholderRe.FindAllString(text, -1)
	assert.Len(t, keys, len(table))
	for key := range table {
		assert.Equal(t, 1, strings.Count(text, key), "key %q", key)
	}
}

func TestUnwrapShell(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		display bool
	}{
		{`{\displaystyle x}`, " x", true},
		{`  {\textstyle \{y\}}  `, ` \{y\}`, false},
		{`{\displaystyle a}+b`, `{\displaystyle a}+b`, false},
		{`{\displaystyles x}`, `{\displaystyles x}`, false},
		{`plain`, `plain`, false},
	}
	for _, tt := range tests {
		got, display := unwrapShell(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.display, display, tt.in)
	}
}

func TestNormalizeLatex(t *testing.T) {
	assert.Equal(t, "{a b}", normalizeLatex("{  a \n\t b  }"))
	assert.Equal(t, `x^{2}`, normalizeLatex(` x^{ 2 } `))
	assert.Equal(t, `\{ x\ }`, normalizeLatex(`\{ x\ }`))
}

func TestMatchBraceSkipsEscapes(t *testing.T) {
	s := `{a \} {b} c}`
	assert.Equal(t, len(s)-1, matchBrace(s, 0))
	assert.Equal(t, -1, matchBrace(`{a {b}`, 0))
}

func TestPairBracesAgreesWithMatchBrace(t *testing.T) {
	inputs := []string{
		`{a \} {b} c}`,
		`{a {b}`,
		`}{\{x}}{`,
		`\{\textstyle a} {\displaystyle {b} \{ c}`,
		`{{{\}}}}}`,
		`a \\{b} \{ {c`,
	}
	for _, s := range inputs {
		pairs := pairBraces(s)
		for i := 0; i < len(s); i++ {
			if s[i] != '{' {
				continue
			}
			assert.Equal(t, matchBrace(s, i), pairs[i], "%q at %d", s, i)
		}
	}
}

func TestMarkerScannerNext(t *testing.T) {
	s := `a {\textstyle x} b {\displaystyles} c {\displaystyle y}`
	m := newMarkerScanner(s)

	idx, display := m.next(0)
	assert.Equal(t, 2, idx)
	assert.False(t, display)
	assert.Equal(t, strings.Index(s, "} b"), m.closeBrace(idx))

	idx, display = m.next(idx + 1)
	assert.Equal(t, strings.LastIndex(s, `{\displaystyle y`), idx)
	assert.True(t, display)

	idx, _ = m.next(idx + 1)
	assert.Equal(t, -1, idx)
}

// The fallback heuristic counts "real words" (letter runs of at least
// FallbackWordLen) between the nearest boundary and the marker. These cases
// pin down both the intended captures and the known misses at its edges.
func TestFallbackSuppression(t *testing.T) {
	t.Run("multi-line fallback removed", func(t *testing.T) {
		in := "Intro sentence here.\n\n  \n    x\n    2\n  \n  {\\displaystyle x^{2}}\n  \nis the square."
		got := suppressFallback(in)
		assert.Equal(t, "Intro sentence here.\n\n{\\displaystyle x^{2}}\n  \nis the square.", got)
	})

	t.Run("prose on boundary line kept", func(t *testing.T) {
		in := "It follows. The sum is\n    a\n    +\n    b\n{\\displaystyle a+b}"
		got := suppressFallback(in)
		assert.Equal(t, "It follows. The sum is{\\displaystyle a+b}", got)
	})

	t.Run("genuine prose kept", func(t *testing.T) {
		in := "The quadratic formula gives solutions for every polynomial\n{\\displaystyle x}"
		assert.Equal(t, in, suppressFallback(in))
	})

	t.Run("glued run removed", func(t *testing.T) {
		in := "where x2{\\displaystyle x^2} holds"
		assert.Equal(t, "where {\\displaystyle x^2} holds", suppressFallback(in))
	})

	t.Run("known false negative: spaced fallback on one line", func(t *testing.T) {
		in := "so r 2 {\\displaystyle r^2}"
		assert.Equal(t, in, suppressFallback(in))
	})

	t.Run("known false positive: short prose line", func(t *testing.T) {
		in := "Intro.\n\nThe area of a circle\n  A\n{\\displaystyle A}"
		got := suppressFallback(in)
		assert.NotContains(t, got, "area")
		assert.Equal(t, "Intro.\n\n{\\displaystyle A}", got)
	})

	t.Run("markers inside math tags ignored", func(t *testing.T) {
		in := "ab<math>{\\displaystyle y}</math>"
		assert.Equal(t, in, suppressFallback(in))
	})

	t.Run("look-back stops at previous marker", func(t *testing.T) {
		in := "{\\displaystyle a}\n  b\n{\\displaystyle b}"
		assert.Equal(t, "{\\displaystyle a}{\\displaystyle b}", suppressFallback(in))
	})
}

func TestCountRealWords(t *testing.T) {
	assert.Equal(t, 0, countRealWords("x 2 + y 2"))
	assert.Equal(t, 2, countRealWords("The area of a circle"))
	assert.Equal(t, 4, countRealWords("every good polynomial root"))
	assert.Equal(t, 1, countRealWords("théorème"))
}

func TestMathTableRestore(t *testing.T) {
	text, table := ExtractMath("code <math>x</math> end")
	assert.Equal(t, "code <math>x</math> end", table.restore(text))
	assert.Equal(t, "nothing", table.restore("nothing"))
}
