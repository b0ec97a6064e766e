// Package wikitext converts Wikipedia-style markup into a doctree.Document.
//
// Parsing runs in four stages: Strip removes comments, references and
// metadata templates; ExtractMath swaps formulas for placeholders; the block
// parser classifies lines; the tokenizer splits each text run into inline
// tokens. Parse is pure and safe for concurrent use.
package wikitext

import (
	"strings"

	"github.com/dgallion1/wikidoc/internal/doctree"
)

// Parse never fails. Malformed constructs degrade to literal text, and if a
// stage panics the input is returned as plain paragraphs. When the block
// parser yields nothing from text that survived stripping, that stripped
// text is returned as plain paragraphs.
func Parse(raw string) (doc *doctree.Document) {
	defer func() {
		if r := recover(); r != nil {
			doc = Fallback(raw)
		}
	}()

	stripped := Strip(raw)
	text, math := ExtractMath(stripped)
	p := newParser(text, math)
	doc = &doctree.Document{Blocks: p.run()}
	if len(doc.Blocks) == 0 && strings.TrimSpace(text) != "" {
		return Fallback(dropSentinels(stripped))
	}
	return doc
}

// Fallback renders raw as plain paragraphs split on blank lines.
func Fallback(raw string) *doctree.Document {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	doc := &doctree.Document{}
	for _, para := range strings.Split(raw, "\n\n") {
		para = strings.Join(strings.Fields(para), " ")
		if para == "" {
			continue
		}
		doc.Blocks = append(doc.Blocks, doctree.Paragraph{
			Runs: []doctree.InlineRun{doctree.PlainRun(para)},
		})
	}
	return doc
}
