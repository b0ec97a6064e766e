package wikitext

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/wikidoc/internal/doctree"
)

// maxInlineDepth bounds recursion through nested emphasis, sup/sub and
// link labels. Deeper content is emitted as text.
const maxInlineDepth = 24

// triggers are the characters that may open an inline construct.
// Everything else is plain text.
const triggers = "'[`<{\\\uE000"

var (
	htmlTagRe     = regexp.MustCompile(`^<(/?)([A-Za-z][A-Za-z0-9]*)\b[^<>]*?(/?)>`)
	linkTrailRe   = regexp.MustCompile(`^[a-z]+`)
	parenSuffixRe = regexp.MustCompile(`\s*\([^()]*\)$`)
)

// presentational tags are removed while their content is kept.
var presentationalTags = map[string]bool{
	"b": true, "i": true, "u": true, "s": true, "em": true, "strong": true,
	"small": true, "big": true, "span": true, "div": true, "font": true,
	"abbr": true, "cite": true, "del": true, "ins": true, "center": true,
	"var": true, "kbd": true, "samp": true, "mark": true, "q": true,
	"wbr": true, "p": true, "strike": true, "bdi": true, "dfn": true,
	"poem": true, "section": true, "onlyinclude": true, "includeonly": true,
	"noinclude": true, "references": true, "ref": true,
}

var externalSchemes = []string{"http://", "https://", "ftp://", "//", "mailto:"}

type tokenizer struct {
	math  MathTable
	depth int
}

func (p *parser) tokenize(s string) doctree.InlineRun {
	t := &tokenizer{math: p.math}
	return t.run(s)
}

// Tokenize splits one block-delimited text run into inline tokens.
// Placeholders are resolved against math; a nil table is allowed.
func Tokenize(s string, math MathTable) doctree.InlineRun {
	t := &tokenizer{math: math}
	return t.run(s)
}

func (t *tokenizer) run(s string) doctree.InlineRun {
	if s == "" {
		return nil
	}
	if t.depth >= maxInlineDepth {
		return doctree.PlainRun(t.math.restore(s))
	}
	t.depth++
	defer func() { t.depth-- }()

	var out doctree.RunBuilder
	ix := newRunIndex(s)

	for i := 0; i < len(s); {
		var (
			toks []doctree.Token
			n    int
		)
		switch s[i] {
		case '\'':
			toks, n = t.quotes(s, i, &ix.quotes)
		case '[':
			if strings.HasPrefix(s[i:], "[[") {
				toks, n = t.wikiLink(s, i, ix.links.closer(i))
			} else {
				toks, n = t.externalLink(s, i, ix)
			}
		case '`':
			toks, n = t.backtick(s, i, ix)
		case '<':
			toks, n = t.tag(s, i, ix)
		case '{':
			if strings.HasPrefix(s[i:], "{{") {
				toks, n = t.template(s, i, ix.tpls.closer(i))
			}
		case '\\':
			toks, n = t.rawMath(s, i, ix)
		default:
			if strings.HasPrefix(s[i:], string(sentinelOpen)) {
				toks, n = t.placeholder(s, i)
			}
		}
		if n > 0 {
			for _, tok := range toks {
				out.Add(tok)
			}
			i += n
			continue
		}

		// Plain run up to the next trigger, at least one rune.
		_, size := utf8.DecodeRuneInString(s[i:])
		j := i + size
		if k := strings.IndexAny(s[j:], triggers); k >= 0 {
			j += k
		} else {
			j = len(s)
		}
		out.Add(doctree.Text{Text: s[i:j]})
		i = j
	}
	return out.Run()
}

func text(s string) []doctree.Token {
	return []doctree.Token{doctree.Text{Text: s}}
}

// placeholder resolves a math placeholder. Inline formulas become
// InlineMath; display formulas are dropped here.
func (t *tokenizer) placeholder(s string, i int) ([]doctree.Token, int) {
	loc := placeholderRe.FindStringIndex(s[i:])
	if loc == nil || loc[0] != 0 {
		// Stray sentinel: skip it.
		return nil, utf8.RuneLen(sentinelOpen)
	}
	key := s[i : i+loc[1]]
	entry, ok := t.math[key]
	if !ok || entry.Display {
		return nil, loc[1]
	}
	return []doctree.Token{doctree.InlineMath{Latex: entry.Latex}}, loc[1]
}

// quotes handles apostrophe runs: 5 = bold italic, 3 = bold, 2 = italic.
// A run of 4 is a literal apostrophe plus bold; longer than 5 leaves the
// extras literal. An opener without a closer of the same length falls back
// to a shorter one and finally to literal text.
func (t *tokenizer) quotes(s string, i int, idx *quoteIndex) ([]doctree.Token, int) {
	n := quoteRun(s, i)
	if n < 2 {
		return nil, 0
	}
	var lead string
	switch {
	case n == 4:
		lead, n = "'", 3
	case n > 5:
		lead, n = strings.Repeat("'", n-5), 5
	}
	start := i + len(lead)

	for _, k := range []int{5, 3, 2} {
		if k > n {
			continue
		}
		closeAt := idx.next(start+n, k)
		if closeAt < 0 {
			continue
		}
		var toks []doctree.Token
		// Opener quotes beyond k stay literal.
		if extra := lead + strings.Repeat("'", n-k); extra != "" {
			toks = append(toks, doctree.Text{Text: extra})
		}
		inner := s[start+n : closeAt]
		switch k {
		case 5:
			toks = append(toks, doctree.BoldItalic{Text: t.run(inner).PlainText()})
		case 3:
			toks = append(toks, doctree.Bold{Content: t.run(inner)})
		default:
			toks = append(toks, doctree.Italic{Content: t.run(inner)})
		}
		return toks, closeAt + k - i
	}
	// No closer for any length: the whole run is literal.
	return text(s[i : start+n]), start + n - i
}

func quoteRun(s string, i int) int {
	n := 0
	for i+n < len(s) && s[i+n] == '\'' {
		n++
	}
	return n
}

// quoteIndex lists the start of every maximal apostrophe run in s, by run
// length. It is built with one pass on first use.
type quoteIndex struct {
	s    string
	runs map[int][]int
}

// next returns the start of the first run of exactly k apostrophes at or
// after from, or -1. from must not fall inside a run.
func (q *quoteIndex) next(from, k int) int {
	if q.runs == nil {
		q.runs = map[int][]int{}
		for i := 0; i < len(q.s); {
			j := strings.IndexByte(q.s[i:], '\'')
			if j < 0 {
				break
			}
			i += j
			n := quoteRun(q.s, i)
			q.runs[n] = append(q.runs[n], i)
			i += n
		}
	}
	starts := q.runs[k]
	if j := sort.SearchInts(starts, from); j < len(starts) {
		return starts[j]
	}
	return -1
}

// wikiLink handles [[Target]], [[Target|Label]], the pipe trick and link
// trails.
func (t *tokenizer) wikiLink(s string, i, end int) ([]doctree.Token, int) {
	if end < 0 {
		return text("[["), 2
	}
	inner := s[i+2 : end]
	next := end + 2

	target, label, piped := strings.Cut(inner, "|")
	target = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(target), ":"))
	if target == "" || strings.ContainsAny(target, "{}<>[]") {
		return text("[["), 2
	}
	switch {
	case !piped:
		label = target
	case strings.TrimSpace(label) == "":
		label = pipeTrick(target)
	default:
		label = t.run(strings.TrimSpace(label)).PlainText()
	}
	if trail := linkTrailRe.FindString(s[next:]); trail != "" {
		label += trail
		next += len(trail)
	}
	return []doctree.Token{doctree.WikiLink{Target: target, Label: label}}, next - i
}

// pipeTrick derives a label from a target: "Paris (city)" -> "Paris",
// "Help:Contents" -> "Contents", "Portland, Oregon" -> "Portland".
func pipeTrick(target string) string {
	label := target
	if _, rest, ok := strings.Cut(label, ":"); ok && rest != "" {
		label = rest
	}
	if stripped := parenSuffixRe.ReplaceAllString(label, ""); stripped != "" && stripped != label {
		return strings.TrimSpace(stripped)
	}
	if before, _, ok := strings.Cut(label, ","); ok && strings.TrimSpace(before) != "" {
		return strings.TrimSpace(before)
	}
	return strings.TrimSpace(label)
}

// externalLink handles [url] and [url label].
func (t *tokenizer) externalLink(s string, i int, ix *runIndex) ([]doctree.Token, int) {
	rest := s[i+1:]
	ok := false
	for _, scheme := range externalSchemes {
		if len(rest) >= len(scheme) && strings.EqualFold(rest[:len(scheme)], scheme) {
			ok = true
			break
		}
	}
	if !ok {
		return nil, 0
	}
	b := ix.bracket.after(i + 1)
	if nl := ix.newline.after(i + 1); b < 0 || (nl >= 0 && nl < b) {
		return nil, 0
	}
	end := b - (i + 1)
	url, label, _ := strings.Cut(strings.TrimSpace(rest[:end]), " ")
	label = t.run(strings.TrimSpace(label)).PlainText()
	if label == "" {
		label = url
	}
	return []doctree.Token{doctree.Link{URL: url, Label: label}}, end + 2
}

func (t *tokenizer) backtick(s string, i int, ix *runIndex) ([]doctree.Token, int) {
	end := ix.tick.after(i + 1)
	if end <= i+1 {
		return nil, 0
	}
	return []doctree.Token{doctree.Code{Text: t.math.restore(s[i+1 : end])}}, end + 1 - i
}

// rawMath handles \( ... \).
func (t *tokenizer) rawMath(s string, i int, ix *runIndex) ([]doctree.Token, int) {
	if !strings.HasPrefix(s[i:], `\(`) {
		return nil, 0
	}
	end := ix.mathClose.after(i + 2)
	if end < 0 {
		return nil, 0
	}
	latex := normalizeLatex(s[i+2 : end])
	if latex == "" {
		return nil, end + 2 - i
	}
	return []doctree.Token{doctree.InlineMath{Latex: latex}}, end + 2 - i
}

// tag handles inline HTML-like tags.
func (t *tokenizer) tag(s string, i int, ix *runIndex) ([]doctree.Token, int) {
	m := htmlTagRe.FindStringSubmatch(s[i:])
	if m == nil {
		return nil, 0
	}
	closing, name, selfClosing := m[1] == "/", strings.ToLower(m[2]), m[3] == "/"
	n := len(m[0])

	switch name {
	case "br":
		return text(" "), n
	case "sup", "sub", "code", "tt", "nowiki":
		if closing {
			return nil, n
		}
		if selfClosing {
			return nil, n
		}
		closeAt, closeLen := ix.closingTag(i, i+n, name)
		if closeAt < 0 {
			return nil, 0
		}
		inner := s[i+n : closeAt]
		consumed := closeAt + closeLen - i
		switch name {
		case "sup":
			return []doctree.Token{doctree.Superscript{Content: t.run(inner)}}, consumed
		case "sub":
			return []doctree.Token{doctree.Subscript{Content: t.run(inner)}}, consumed
		case "nowiki":
			return text(t.math.restore(inner)), consumed
		default:
			return []doctree.Token{doctree.Code{Text: t.math.restore(inner)}}, consumed
		}
	}
	if presentationalTags[name] {
		return nil, n
	}
	return nil, 0
}

// findClosingTag finds </name> after from, honouring nesting of the same
// tag. It returns the offset and length of the closing tag, or -1.
func findClosingTag(s string, from int, name string) (int, int) {
	open, closer := "<"+name, "</"+name
	depth := 1
	for i := from; i < len(s); {
		j := strings.IndexByte(s[i:], '<')
		if j < 0 {
			return -1, 0
		}
		i += j
		rest := s[i:]
		switch {
		case hasPrefixFold(rest, closer):
			end := strings.IndexByte(rest, '>')
			if end < 0 {
				return -1, 0
			}
			depth--
			if depth == 0 {
				return i, end + 1
			}
			i += end + 1
		case isOpenTag(rest, open):
			depth++
			i += len(open)
		default:
			i++
		}
	}
	return -1, 0
}

// tagPairs matches every opening tag of name in s to its closing tag in
// one stack pass, with the same rules as findClosingTag. Openers without a
// closer map to -1.
func tagPairs(s, name string) map[int]tagSpan {
	open, closer := "<"+name, "</"+name
	m := map[int]tagSpan{}
	var stack []int
	unclosed := func() {
		for _, o := range stack {
			m[o] = tagSpan{at: -1}
		}
		stack = stack[:0]
	}
	for i := 0; i < len(s); {
		j := strings.IndexByte(s[i:], '<')
		if j < 0 {
			break
		}
		i += j
		rest := s[i:]
		switch {
		case hasPrefixFold(rest, closer):
			end := strings.IndexByte(rest, '>')
			if end < 0 {
				unclosed()
				i += len(closer)
				continue
			}
			if n := len(stack); n > 0 {
				m[stack[n-1]] = tagSpan{at: i, n: end + 1}
				stack = stack[:n-1]
			}
			i += end + 1
		case isOpenTag(rest, open):
			stack = append(stack, i)
			i += len(open)
		default:
			i++
		}
	}
	unclosed()
	return m
}

type tagSpan struct {
	at, n int
}

func isOpenTag(rest, open string) bool {
	return hasPrefixFold(rest, open) && len(rest) > len(open) && (rest[len(open)] == '>' || rest[len(open)] == ' ')
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// pairIndex maps each opener of a two-byte delimiter pair to its balancing
// closer. It is built with one stack pass on first use.
type pairIndex struct {
	s           string
	open, close string
	m           map[int]int
}

func (p *pairIndex) closer(i int) int {
	if p.m == nil {
		p.m = pairDelims(p.s, p.open, p.close)
	}
	if end, ok := p.m[i]; ok {
		return end
	}
	return -1
}

func pairDelims(s, open, close string) map[int]int {
	m := map[int]int{}
	var stack []int
	for j := 0; j+1 < len(s); {
		switch {
		case s[j] == open[0] && s[j+1] == open[1]:
			stack = append(stack, j)
			j += 2
		case s[j] == close[0] && s[j+1] == close[1]:
			if n := len(stack); n > 0 {
				m[stack[n-1]] = j
				stack = stack[:n-1]
			}
			j += 2
		default:
			j++
		}
	}
	return m
}

// runIndex holds the lookups for one text run. Each is built or advanced
// lazily, so a run is scanned a bounded number of times however many
// openers go unmatched.
type runIndex struct {
	s           string
	links, tpls pairIndex
	quotes      quoteIndex
	tags        map[string]map[int]tagSpan

	mathClose, tick, bracket, newline nextIndex
}

func newRunIndex(s string) *runIndex {
	return &runIndex{
		s:         s,
		links:     pairIndex{s: s, open: "[[", close: "]]"},
		tpls:      pairIndex{s: s, open: "{{", close: "}}"},
		quotes:    quoteIndex{s: s},
		mathClose: nextIndex{s: s, sub: `\)`},
		tick:      nextIndex{s: s, sub: "`"},
		bracket:   nextIndex{s: s, sub: "]"},
		newline:   nextIndex{s: s, sub: "\n"},
	}
}

// closingTag is findClosingTag for the tag opened at openAt, answered from
// a per-name pairing of the whole run.
func (x *runIndex) closingTag(openAt, from int, name string) (int, int) {
	if x.tags == nil {
		x.tags = map[string]map[int]tagSpan{}
	}
	m, ok := x.tags[name]
	if !ok {
		m = tagPairs(x.s, name)
		x.tags[name] = m
	}
	if sp, ok := m[openAt]; ok {
		if sp.at < 0 {
			return -1, 0
		}
		return sp.at, sp.n
	}
	return findClosingTag(x.s, from, name)
}

// nextIndex returns the next occurrence of sub at or after an offset. For
// non-decreasing offsets it only rescans once the cached match falls
// behind, so a sweep over s is linear.
type nextIndex struct {
	s, sub   string
	from, at int
	valid    bool
}

func (x *nextIndex) after(i int) int {
	if !x.valid || i < x.from || (x.at >= 0 && x.at < i) {
		x.valid, x.from, x.at = true, i, -1
		if j := strings.Index(x.s[i:], x.sub); j >= 0 {
			x.at = i + j
		}
	}
	return x.at
}
