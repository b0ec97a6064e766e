package doctree

import "strings"

// TokenKind names an inline token variant. It is the "type" field in JSON.
type TokenKind string

const (
	TokenText        TokenKind = "text"
	TokenBold        TokenKind = "bold"
	TokenItalic      TokenKind = "italic"
	TokenBoldItalic  TokenKind = "bold_italic"
	TokenCode        TokenKind = "code"
	TokenLink        TokenKind = "link"
	TokenWikiLink    TokenKind = "wikilink"
	TokenInlineMath  TokenKind = "math"
	TokenSuperscript TokenKind = "sup"
	TokenSubscript   TokenKind = "sub"
)

// Token is one of the inline variants below.
type Token interface {
	Kind() TokenKind
}

// InlineRun is an ordered token sequence.
type InlineRun []Token

type Text struct {
	Text string `json:"text"`
}

type Bold struct {
	Content InlineRun `json:"content"`
}

type Italic struct {
	Content InlineRun `json:"content"`
}

// BoldItalic carries plain text only; '''''x''''' never nests further.
type BoldItalic struct {
	Text string `json:"text"`
}

type Code struct {
	Text string `json:"text"`
}

// Link is an external link. URL is passed through verbatim.
type Link struct {
	URL   string `json:"url"`
	Label string `json:"label"`
}

// WikiLink targets another page by name. Target is not encoded.
type WikiLink struct {
	Target string `json:"target"`
	Label  string `json:"label"`
}

type InlineMath struct {
	Latex string `json:"latex"`
}

type Superscript struct {
	Content InlineRun `json:"content"`
}

type Subscript struct {
	Content InlineRun `json:"content"`
}

func (Text) Kind() TokenKind        { return TokenText }
func (Bold) Kind() TokenKind        { return TokenBold }
func (Italic) Kind() TokenKind      { return TokenItalic }
func (BoldItalic) Kind() TokenKind  { return TokenBoldItalic }
func (Code) Kind() TokenKind        { return TokenCode }
func (Link) Kind() TokenKind        { return TokenLink }
func (WikiLink) Kind() TokenKind    { return TokenWikiLink }
func (InlineMath) Kind() TokenKind  { return TokenInlineMath }
func (Superscript) Kind() TokenKind { return TokenSuperscript }
func (Subscript) Kind() TokenKind   { return TokenSubscript }

// Append adds tok to the run, merging adjacent Text tokens.
func (r InlineRun) Append(tok Token) InlineRun {
	if t, ok := tok.(Text); ok {
		if t.Text == "" {
			return r
		}
		if n := len(r); n > 0 {
			if prev, ok := r[n-1].(Text); ok {
				r[n-1] = Text{Text: prev.Text + t.Text}
				return r
			}
		}
	}
	return append(r, tok)
}

// RunBuilder accumulates a run, merging adjacent Text tokens without
// re-copying the text already collected.
type RunBuilder struct {
	run  InlineRun
	text strings.Builder
}

// Add appends tok. Empty Text tokens are dropped.
func (b *RunBuilder) Add(tok Token) {
	if t, ok := tok.(Text); ok {
		b.text.WriteString(t.Text)
		return
	}
	b.flush()
	b.run = append(b.run, tok)
}

// Run returns the tokens added so far.
func (b *RunBuilder) Run() InlineRun {
	b.flush()
	return b.run
}

func (b *RunBuilder) flush() {
	if b.text.Len() == 0 {
		return
	}
	b.run = b.run.Append(Text{Text: b.text.String()})
	b.text.Reset()
}

// PlainRun wraps s in a single Text token.
func PlainRun(s string) InlineRun {
	if s == "" {
		return nil
	}
	return InlineRun{Text{Text: s}}
}
