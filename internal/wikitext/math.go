package wikitext

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Fallback-prose heuristic. Text in front of a bare {\displaystyle ...} or
// {\textstyle ...} marker is treated as the plain-text rendering of the
// formula and deleted unless it holds at least FallbackMinWords words of
// FallbackWordLen or more letters. The look-back never exceeds
// FallbackWindow bytes.
const (
	FallbackMinWords = 3
	FallbackWordLen  = 4
	FallbackWindow   = 600
)

const (
	displayMarker = `{\displaystyle`
	textMarker    = `{\textstyle`

	sentinelOpen  = '\uE000'
	sentinelClose = '\uE001'
)

// MathEntry is one extracted formula.
type MathEntry struct {
	Latex   string
	Display bool
	Raw     string // source span the placeholder replaced
}

// MathTable maps placeholder keys to extracted formulas.
type MathTable map[string]MathEntry

var (
	mathTagRe     = regexp.MustCompile(`(?is)<math(\s[^>]*)?>(.*?)</math\s*>`)
	displayAttrRe = regexp.MustCompile(`(?i)\bdisplay\s*=\s*["']?\s*block`)
	placeholderRe = regexp.MustCompile("\uE000MATH[0-9]+\uE001")
)

func placeholderKey(n int) string {
	return string(sentinelOpen) + "MATH" + strconv.Itoa(n) + string(sentinelClose)
}

// ExtractMath replaces every formula in text with a placeholder and returns
// the rewritten text together with the table describing each placeholder.
func ExtractMath(text string) (string, MathTable) {
	text = dropSentinels(text)
	x := &mathExtractor{table: MathTable{}}
	text = suppressFallback(text)
	text = x.replaceTags(text)
	text = x.replaceBare(text)
	return text, x.table
}

// dropSentinels removes the placeholder delimiter runes from text.
func dropSentinels(text string) string {
	return strings.Map(func(r rune) rune {
		if r == sentinelOpen || r == sentinelClose {
			return -1
		}
		return r
	}, text)
}

type mathExtractor struct {
	table MathTable
	next  int
}

func (x *mathExtractor) add(latex string, display bool, raw string) string {
	key := placeholderKey(x.next)
	x.next++
	x.table[key] = MathEntry{Latex: latex, Display: display, Raw: raw}
	return key
}

// replaceTags handles <math>...</math> tags.
func (x *mathExtractor) replaceTags(text string) string {
	return mathTagRe.ReplaceAllStringFunc(text, func(m string) string {
		sub := mathTagRe.FindStringSubmatch(m)
		display := displayAttrRe.MatchString(sub[1])
		latex, shellDisplay := unwrapShell(sub[2])
		return x.add(normalizeLatex(latex), display || shellDisplay, m)
	})
}

// replaceBare handles {\displaystyle ...} and {\textstyle ...} markers
// outside math tags. The whitespace around a marker collapses to a single
// separator; newlines in that whitespace are kept as one line break (two
// when a blank line was present).
func (x *mathExtractor) replaceBare(text string) string {
	if !strings.Contains(text, displayMarker) && !strings.Contains(text, textMarker) {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	markers := newMarkerScanner(text)
	pos := 0
	for pos < len(text) {
		idx, display := markers.next(pos)
		if idx < 0 {
			break
		}
		end := markers.closeBrace(idx)
		if end < 0 {
			mlen := len(textMarker)
			if display {
				mlen = len(displayMarker)
			}
			b.WriteString(text[pos : idx+mlen])
			pos = idx + mlen
			continue
		}

		before := text[pos:idx]
		trimmedBefore := strings.TrimRight(before, " \t\r\n")
		b.WriteString(trimmedBefore)
		if out := b.String(); out != "" {
			lead := before[len(trimmedBefore):]
			if lead != "" || !strings.ContainsRune("([", rune(out[len(out)-1])) {
				b.WriteString(separator(lead))
			}
		}

		mlen := len(textMarker)
		if display {
			mlen = len(displayMarker)
		}
		raw := text[idx : end+1]
		b.WriteString(x.add(normalizeLatex(text[idx+mlen:end]), display, raw))

		after := end + 1
		for after < len(text) && isSpaceByte(text[after]) {
			after++
		}
		trail := text[end+1 : after]
		if after < len(text) {
			sep := separator(trail)
			if sep == " " && strings.ContainsRune(",.;:)!?", rune(text[after])) {
				sep = ""
			}
			b.WriteString(sep)
		}
		pos = after
	}
	b.WriteString(text[pos:])
	return b.String()
}

func separator(ws string) string {
	switch {
	case strings.Contains(ws, "\n\n"):
		return "\n\n"
	case strings.Contains(ws, "\n"):
		return "\n"
	default:
		return " "
	}
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// markerScanner finds bare markers and their closing braces in text. Calls
// with non-decreasing positions sweep text a bounded number of times.
type markerScanner struct {
	text            string
	display, inline nextIndex
	braces          map[int]int
}

func newMarkerScanner(text string) *markerScanner {
	return &markerScanner{
		text:    text,
		display: nextIndex{s: text, sub: displayMarker},
		inline:  nextIndex{s: text, sub: textMarker},
	}
}

// next finds the next bare marker at or after pos.
func (m *markerScanner) next(pos int) (int, bool) {
	for {
		d := m.display.after(pos)
		t := m.inline.after(pos)
		var idx int
		var display bool
		switch {
		case d < 0 && t < 0:
			return -1, false
		case t < 0 || (d >= 0 && d < t):
			idx, display = d, true
		default:
			idx, display = t, false
		}
		mlen := len(textMarker)
		if display {
			mlen = len(displayMarker)
		}
		// {\displaystyles is some other command.
		if e := idx + mlen; e < len(m.text) && isASCIILetter(m.text[e]) {
			pos = e
			continue
		}
		return idx, display
	}
}

// closeBrace is matchBrace(text, open) answered from a pairing of every
// brace in text.
func (m *markerScanner) closeBrace(open int) int {
	if m.braces == nil {
		m.braces = pairBraces(m.text)
	}
	return m.braces[open]
}

// pairBraces maps the offset of every '{' to the offset matchBrace would
// return for it, or -1. An escaped '{' is not an opener for the braces
// around it, but it is still matched as if a scan started there: by the
// first '}' that returns the stack to its depth.
func pairBraces(s string) map[int]int {
	m := map[int]int{}
	var (
		stack   []int
		waiters [][]int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 < len(s) && s[i+1] == '{' {
				l := len(stack)
				for len(waiters) <= l {
					waiters = append(waiters, nil)
				}
				waiters[l] = append(waiters[l], i+1)
			}
			i++
		case '{':
			stack = append(stack, i)
		case '}':
			l := len(stack)
			if l < len(waiters) {
				for _, w := range waiters[l] {
					m[w] = i
				}
				waiters[l] = waiters[l][:0]
			}
			if l > 0 {
				m[stack[l-1]] = i
				stack = stack[:l-1]
			}
		}
	}
	for _, o := range stack {
		m[o] = -1
	}
	for _, ws := range waiters {
		for _, w := range ws {
			m[w] = -1
		}
	}
	return m
}

// matchBrace returns the index of the brace closing the one at open, or -1.
// Escaped braces (\{ and \}) do not count.
func matchBrace(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// unwrapShell strips a {\displaystyle ...} or {\textstyle ...} wrapper that
// spans the whole payload. The flag reports a display wrapper.
func unwrapShell(payload string) (string, bool) {
	t := strings.TrimSpace(payload)
	for _, marker := range []string{displayMarker, textMarker} {
		if !strings.HasPrefix(t, marker) {
			continue
		}
		if len(t) > len(marker) && isASCIILetter(t[len(marker)]) {
			continue
		}
		if end := matchBrace(t, 0); end == len(t)-1 {
			return t[len(marker):end], marker == displayMarker
		}
	}
	return payload, false
}

// normalizeLatex collapses whitespace runs and drops spaces just inside
// braces.
func normalizeLatex(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' {
			n := len(out)
			if n > 0 && out[n-1] == '{' && !escapedAt(out, n-1) {
				continue
			}
			if i+1 < len(s) && s[i+1] == '}' && (n == 0 || out[n-1] != '\\') {
				continue
			}
		}
		out = append(out, c)
	}
	return string(out)
}

// escapedAt reports whether b[i] is preceded by an odd run of backslashes.
func escapedAt(b []byte, i int) bool {
	n := 0
	for j := i - 1; j >= 0 && b[j] == '\\'; j-- {
		n++
	}
	return n%2 == 1
}

// suppressFallback deletes the plain-text fallback that rendered extracts
// put in front of bare markers. Markers inside <math> tags are ignored;
// both tags and markers bound the look-back of the marker after them.
func suppressFallback(text string) string {
	tags := mathTagRe.FindAllStringIndex(text, -1)
	var (
		ranges  []span
		prevEnd int
		tagIdx  int
		pos     int
	)
	markers := newMarkerScanner(text)
	for {
		idx, display := markers.next(pos)
		if idx < 0 {
			break
		}
		for tagIdx < len(tags) && tags[tagIdx][1] <= idx {
			prevEnd = max(prevEnd, tags[tagIdx][1])
			tagIdx++
		}
		mlen := len(textMarker)
		if display {
			mlen = len(displayMarker)
		}
		if tagIdx < len(tags) && tags[tagIdx][0] <= idx {
			pos = tags[tagIdx][1]
			continue
		}

		if r, ok := fallbackRange(text, prevEnd, idx); ok {
			ranges = append(ranges, r)
		}

		end := markers.closeBrace(idx)
		if end < 0 {
			end = idx + mlen - 1
		}
		prevEnd = end + 1
		pos = end + 1
	}
	if len(ranges) == 0 {
		return text
	}
	return deleteRanges(text, ranges)
}

// fallbackRange computes the candidate fallback span in front of the marker
// at idx and reports whether it should be deleted.
func fallbackRange(text string, prevEnd, idx int) (span, bool) {
	lo := max(prevEnd, idx-FallbackWindow)
	for lo < idx && !utf8.RuneStart(text[lo]) {
		lo++
	}
	seg := text[lo:idx]

	boundary := 0
	if i := lastSentenceEnd(seg); i > boundary {
		boundary = i
	}
	if i := strings.LastIndex(seg, "\n\n"); i >= 0 && i+2 > boundary {
		boundary = i + 2
	}
	start := lo + boundary
	seg = text[start:idx]

	atLineStart := start == 0 || text[start-1] == '\n'
	candStart := start
	if nl := strings.IndexByte(seg, '\n'); nl >= 0 {
		if !atLineStart {
			candStart = start + nl
		}
	} else {
		// Single line: only the run glued to the marker is a candidate.
		candStart = idx
		for candStart > start {
			r, size := utf8.DecodeLastRuneInString(text[start:candStart])
			if unicode.IsSpace(r) {
				break
			}
			candStart -= size
		}
	}
	if candStart >= idx {
		return span{}, false
	}
	if countRealWords(text[candStart:idx]) >= FallbackMinWords {
		return span{}, false
	}
	return span{candStart, idx}, true
}

// lastSentenceEnd returns the offset just past the last '.', '!' or '?'
// that is followed by whitespace, or 0.
func lastSentenceEnd(s string) int {
	for i := len(s) - 2; i >= 0; i-- {
		switch s[i] {
		case '.', '!', '?':
			if isSpaceByte(s[i+1]) {
				return i + 1
			}
		}
	}
	return 0
}

func countRealWords(s string) int {
	words, run := 0, 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			run++
			continue
		}
		if run >= FallbackWordLen {
			words++
		}
		run = 0
	}
	if run >= FallbackWordLen {
		words++
	}
	return words
}

// deleteRanges removes disjoint ranges, given in ascending order.
func deleteRanges(s string, ranges []span) string {
	var b strings.Builder
	b.Grow(len(s))
	pos := 0
	for _, r := range ranges {
		if r.start < pos {
			continue
		}
		b.WriteString(s[pos:r.start])
		pos = r.end
	}
	b.WriteString(s[pos:])
	return b.String()
}

// restore replaces placeholders in s with the source text they stand for.
func (t MathTable) restore(s string) string {
	if !strings.ContainsRune(s, sentinelOpen) {
		return s
	}
	return placeholderRe.ReplaceAllStringFunc(s, func(key string) string {
		if e, ok := t[key]; ok {
			return e.Raw
		}
		return ""
	})
}
