package wikitext

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/dgallion1/wikidoc/internal/doctree"
)

var (
	hrRe         = regexp.MustCompile(`^-{4,}$`)
	wikiListRe   = regexp.MustCompile(`^([*#]+)[:;]?\s*`)
	dashListRe   = regexp.MustCompile(`^-\s+`)
	numListRe    = regexp.MustCompile(`^\d+\.\s+`)
	redirectRe   = regexp.MustCompile(`(?i)^#\s*redirect\b`)
	codeTagRe    = regexp.MustCompile(`(?i)^<(syntaxhighlight|source|pre)\b([^>]*)>`)
	langAttrRe   = regexp.MustCompile(`(?i)\blang\s*=\s*["']?([\w+#.-]+)`)
	codeCloseRes = map[string]*regexp.Regexp{
		"syntaxhighlight": regexp.MustCompile(`(?i)</syntaxhighlight\s*>`),
		"source":          regexp.MustCompile(`(?i)</source\s*>`),
		"pre":             regexp.MustCompile(`(?i)</pre\s*>`),
	}
	quoteTagRe   = regexp.MustCompile(`(?i)^<blockquote\b[^>]*>`)
	quoteCloseRe = regexp.MustCompile(`(?i)</blockquote\s*>`)
	brRe         = regexp.MustCompile(`(?i)<br\s*/?>`)
	cellAttrRe   = regexp.MustCompile(`^\s*[A-Za-z-]+\s*=`)

	// An assignment left-hand side directly in front of a display formula.
	lhsRe = regexp.MustCompile(`(?:^|\s)([\p{L}\p{N}_()^'\\{}+\-*/]+\s*=)\s*$`)
)

const maxLHSLen = 30

type lineKind int

const (
	lineBlank lineKind = iota
	lineFence
	lineCodeTag
	lineQuoteTag
	lineTable
	lineMath
	lineHeading
	lineRule
	lineList
	lineIndent
	lineQuote
	lineIndentedCode
	lineText
)

// parser holds the cursor and shared state of one block-level pass.
type parser struct {
	lines   []string
	pos     int
	math    MathTable
	anchors map[string]int
	blocks  []doctree.Block
}

func newParser(text string, math MathTable) *parser {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return &parser{
		lines:   strings.Split(text, "\n"),
		math:    math,
		anchors: map[string]int{},
	}
}

func (p *parser) run() []doctree.Block {
	for p.pos < len(p.lines) {
		blocks, n := p.next()
		if n < 1 {
			n = 1
		}
		p.blocks = append(p.blocks, blocks...)
		p.pos += n
	}
	return p.blocks
}

// classify decides which handler owns a line.
func classify(line string) lineKind {
	t := strings.TrimSpace(line)
	switch {
	case t == "":
		return lineBlank
	case strings.HasPrefix(t, "```"):
		return lineFence
	case codeTagRe.MatchString(t):
		return lineCodeTag
	case quoteTagRe.MatchString(t):
		return lineQuoteTag
	case strings.HasPrefix(t, "{|"):
		return lineTable
	case strings.HasPrefix(t, "$$"):
		return lineMath
	}
	if _, _, ok := parseHeading(t); ok {
		return lineHeading
	}
	switch {
	case hrRe.MatchString(t):
		return lineRule
	case isListLine(t):
		return lineList
	case t[0] == ':' || t[0] == ';':
		return lineIndent
	case t[0] == '>':
		return lineQuote
	case line[0] == ' ':
		return lineIndentedCode
	}
	return lineText
}

func isListLine(t string) bool {
	if redirectRe.MatchString(t) {
		return false
	}
	return wikiListRe.MatchString(t) || dashListRe.MatchString(t) || numListRe.MatchString(t)
}

// next dispatches the line at the cursor and returns the blocks produced
// and the number of lines consumed.
func (p *parser) next() ([]doctree.Block, int) {
	switch classify(p.lines[p.pos]) {
	case lineBlank:
		return nil, 1
	case lineFence:
		return p.fence()
	case lineCodeTag:
		return p.codeTag()
	case lineQuoteTag:
		return p.quoteTag()
	case lineTable:
		return p.table()
	case lineMath:
		return p.blockMath()
	case lineHeading:
		return p.heading()
	case lineRule:
		return []doctree.Block{doctree.HorizontalRule{}}, 1
	case lineList:
		return p.list()
	case lineIndent:
		return p.indent()
	case lineQuote:
		return p.quote()
	case lineIndentedCode:
		return p.indentedCode()
	default:
		return p.paragraph()
	}
}

// parseHeading reports whether t is heading syntax. The title may be empty.
// The shorter '=' run sets the level; surplus '=' stay in the title.
func parseHeading(t string) (int, string, bool) {
	lead := len(t) - len(strings.TrimLeft(t, "="))
	trail := len(t) - len(strings.TrimRight(t, "="))
	if lead < 2 || trail < 2 {
		return 0, "", false
	}
	if lead+trail >= len(t) {
		return 2, "", true
	}
	level := min(lead, trail, 6)
	inner := strings.Repeat("=", lead-level) + t[lead:len(t)-trail] + strings.Repeat("=", trail-level)
	return level, strings.TrimSpace(inner), true
}

func (p *parser) heading() ([]doctree.Block, int) {
	level, title, _ := parseHeading(strings.TrimSpace(p.lines[p.pos]))
	if title == "" {
		return nil, 1
	}
	text := p.tokenize(title)
	return []doctree.Block{doctree.Heading{
		Level:  level,
		Text:   text,
		Anchor: p.anchor(text.PlainText()),
	}}, 1
}

// anchor returns a slug unique within the document.
func (p *parser) anchor(title string) string {
	slug := doctree.Slugify(title)
	if slug == "" {
		return ""
	}
	n := p.anchors[slug]
	p.anchors[slug] = n + 1
	if n == 0 {
		return slug
	}
	return slug + "-" + strconv.Itoa(n+1)
}

func (p *parser) fence() ([]doctree.Block, int) {
	open := strings.TrimSpace(p.lines[p.pos])
	lang := strings.TrimSpace(strings.TrimLeft(open, "`"))
	var body []string
	i := p.pos + 1
	for ; i < len(p.lines); i++ {
		if strings.HasPrefix(strings.TrimSpace(p.lines[i]), "```") {
			i++
			break
		}
		body = append(body, p.lines[i])
	}
	return []doctree.Block{doctree.CodeBlock{
		Language: lang,
		Text:     p.math.restore(strings.Join(body, "\n")),
	}}, i - p.pos
}

// codeTag handles <syntaxhighlight>, <source> and <pre> blocks.
func (p *parser) codeTag() ([]doctree.Block, int) {
	first := strings.TrimSpace(p.lines[p.pos])
	m := codeTagRe.FindStringSubmatchIndex(first)
	tag := strings.ToLower(first[m[2]:m[3]])
	attrs := first[m[4]:m[5]]
	closeRe := codeCloseRes[tag]

	var lang string
	if lm := langAttrRe.FindStringSubmatch(attrs); lm != nil {
		lang = strings.ToLower(lm[1])
	}

	var body []string
	rest := first[m[1]:]
	i := p.pos
	for {
		if loc := closeRe.FindStringIndex(rest); loc != nil {
			body = append(body, rest[:loc[0]])
			i++
			break
		}
		body = append(body, rest)
		i++
		if i >= len(p.lines) {
			break
		}
		rest = p.lines[i]
	}
	text := strings.Trim(strings.Join(body, "\n"), "\n")
	return []doctree.Block{doctree.CodeBlock{
		Language: lang,
		Text:     p.math.restore(text),
	}}, i - p.pos
}

func (p *parser) quoteTag() ([]doctree.Block, int) {
	first := strings.TrimSpace(p.lines[p.pos])
	rest := quoteTagRe.ReplaceAllString(first, "")
	var parts []string
	i := p.pos
	for {
		if loc := quoteCloseRe.FindStringIndex(rest); loc != nil {
			parts = append(parts, strings.TrimSpace(rest[:loc[0]]))
			i++
			break
		}
		parts = append(parts, strings.TrimSpace(rest))
		i++
		if i >= len(p.lines) {
			break
		}
		rest = p.lines[i]
	}
	content := p.tokenize(joinNonEmpty(parts, " "))
	if len(content) == 0 {
		return nil, i - p.pos
	}
	return []doctree.Block{doctree.Blockquote{Content: content}}, i - p.pos
}

func (p *parser) blockMath() ([]doctree.Block, int) {
	first := strings.TrimSpace(p.lines[p.pos])
	if len(first) >= 4 && strings.HasSuffix(first, "$$") {
		return p.displayMath(first[2 : len(first)-2]), 1
	}
	parts := []string{first[2:]}
	i := p.pos + 1
	for ; i < len(p.lines); i++ {
		t := strings.TrimSpace(p.lines[i])
		if strings.HasSuffix(t, "$$") {
			parts = append(parts, strings.TrimSuffix(t, "$$"))
			i++
			break
		}
		parts = append(parts, t)
	}
	return p.displayMath(strings.Join(parts, "\n")), i - p.pos
}

func (p *parser) displayMath(latex string) []doctree.Block {
	latex = strings.TrimSpace(latex)
	if latex == "" {
		return nil
	}
	return []doctree.Block{doctree.DisplayMath{Latex: latex}}
}

// list consumes consecutive list lines of the same kind. Nested sigils
// are flattened into one level.
func (p *parser) list() ([]doctree.Block, int) {
	ordered := listOrdered(strings.TrimSpace(p.lines[p.pos]))
	var items []doctree.InlineRun
	i := p.pos
	for ; i < len(p.lines); i++ {
		t := strings.TrimSpace(p.lines[i])
		if t == "" || classify(p.lines[i]) != lineList || listOrdered(t) != ordered {
			break
		}
		if item := p.tokenize(listItemText(t)); len(item) > 0 {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return nil, i - p.pos
	}
	return []doctree.Block{doctree.List{Ordered: ordered, Items: items}}, i - p.pos
}

func listOrdered(t string) bool {
	if m := wikiListRe.FindStringSubmatch(t); m != nil {
		return m[1][0] == '#'
	}
	return numListRe.MatchString(t)
}

func listItemText(t string) string {
	for _, re := range []*regexp.Regexp{wikiListRe, dashListRe, numListRe} {
		if loc := re.FindStringIndex(t); loc != nil {
			return strings.TrimSpace(t[loc[1]:])
		}
	}
	return t
}

// indent handles ':' indented lines and ';' definition lines, one line
// at a time.
func (p *parser) indent() ([]doctree.Block, int) {
	t := strings.TrimSpace(p.lines[p.pos])
	if t[0] == ':' {
		return p.paragraphBlocks(strings.TrimSpace(strings.TrimLeft(t, ":"))), 1
	}

	body := strings.TrimSpace(strings.TrimLeft(t, ";"))
	term, def := body, ""
	if i := definitionColon(body); i >= 0 {
		term, def = strings.TrimSpace(body[:i]), strings.TrimSpace(body[i+1:])
	}
	var runs []doctree.InlineRun
	if termRun := p.tokenize(term); len(termRun) > 0 {
		runs = append(runs, doctree.InlineRun{doctree.Bold{Content: termRun}})
	}
	if defRun := p.tokenize(def); len(defRun) > 0 {
		runs = append(runs, defRun)
	}
	if len(runs) == 0 {
		return nil, 1
	}
	return []doctree.Block{doctree.Paragraph{Runs: runs}}, 1
}

// definitionColon finds the ':' separating a term from its definition,
// ignoring colons inside links and templates and in "://".
func definitionColon(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch {
		case strings.HasPrefix(s[i:], "[[") || strings.HasPrefix(s[i:], "{{"):
			depth++
			i++
		case strings.HasPrefix(s[i:], "]]") || strings.HasPrefix(s[i:], "}}"):
			if depth > 0 {
				depth--
			}
			i++
		case s[i] == ':' && depth == 0 && !strings.HasPrefix(s[i:], "://"):
			return i
		}
	}
	return -1
}

func (p *parser) quote() ([]doctree.Block, int) {
	var parts []string
	i := p.pos
	for ; i < len(p.lines); i++ {
		t := strings.TrimSpace(p.lines[i])
		if !strings.HasPrefix(t, ">") {
			break
		}
		parts = append(parts, strings.TrimSpace(strings.TrimLeft(t, ">")))
	}
	content := p.tokenize(joinNonEmpty(parts, " "))
	if len(content) == 0 {
		return nil, i - p.pos
	}
	return []doctree.Block{doctree.Blockquote{Content: content}}, i - p.pos
}

// indentedCode captures space-indented lines (and blank lines between
// them), stripping one leading space from each.
func (p *parser) indentedCode() ([]doctree.Block, int) {
	var body []string
	i := p.pos
	for ; i < len(p.lines); i++ {
		line := p.lines[i]
		if strings.TrimSpace(line) == "" {
			body = append(body, "")
			continue
		}
		if line[0] != ' ' {
			break
		}
		body = append(body, line[1:])
	}
	for len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "" {
		body = body[:len(body)-1]
	}
	return []doctree.Block{doctree.CodeBlock{Text: p.math.restore(strings.Join(body, "\n"))}}, i - p.pos
}

// paragraph joins consecutive plain lines with spaces.
func (p *parser) paragraph() ([]doctree.Block, int) {
	var parts []string
	i := p.pos
	for ; i < len(p.lines); i++ {
		if i > p.pos && classify(p.lines[i]) != lineText {
			break
		}
		parts = append(parts, strings.TrimSpace(p.lines[i]))
	}
	return p.paragraphBlocks(strings.Join(parts, " ")), i - p.pos
}

// paragraphBlocks splits text around display-math placeholders so that no
// formula ends up inside a paragraph. An assignment such as "x =" right
// before a formula moves into the formula.
func (p *parser) paragraphBlocks(text string) []doctree.Block {
	var blocks []doctree.Block
	last := 0
	for _, loc := range placeholderRe.FindAllStringIndex(text, -1) {
		entry, ok := p.math[text[loc[0]:loc[1]]]
		if !ok || !entry.Display {
			continue
		}
		before := text[last:loc[0]]
		latex := entry.Latex
		if m := lhsRe.FindStringSubmatchIndex(before); m != nil && m[3]-m[2] <= maxLHSLen {
			latex = compactLHS(before[m[2]:m[3]]) + latex
			before = before[:m[2]]
		}
		blocks = append(blocks, p.textParagraph(before)...)
		if latex != "" {
			blocks = append(blocks, doctree.DisplayMath{Latex: latex})
		}
		last = loc[1]
	}
	return append(blocks, p.textParagraph(text[last:])...)
}

// textParagraph builds a paragraph with one run per <br>-separated piece.
// Fragments holding only punctuation produce nothing.
func (p *parser) textParagraph(text string) []doctree.Block {
	if strings.TrimFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}) == "" {
		return nil
	}
	var runs []doctree.InlineRun
	for _, piece := range brRe.Split(text, -1) {
		if run := p.tokenize(strings.TrimSpace(piece)); len(run) > 0 {
			runs = append(runs, run)
		}
	}
	if len(runs) == 0 {
		return nil
	}
	return []doctree.Block{doctree.Paragraph{Runs: runs}}
}

// compactLHS removes spaces next to non-alphanumeric characters:
// "x =" becomes "x=", "f (x) =" becomes "f(x)=".
func compactLHS(s string) string {
	fields := strings.Fields(s)
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			prev := fields[i-1]
			pr := rune(prev[len(prev)-1])
			nr := rune(f[0])
			if isAlnumASCII(pr) && isAlnumASCII(nr) {
				b.WriteByte(' ')
			}
		}
		b.WriteString(f)
	}
	return b.String()
}

func isAlnumASCII(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func joinNonEmpty(parts []string, sep string) string {
	out := parts[:0:0]
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, sep)
}
