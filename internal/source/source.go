// Package source normalizes the shapes wikitext arrives in into one string.
//
// A payload is either raw wikitext or a structured object. Objects are
// resolved in a fixed priority order: a "wikitext" field (a string, or an
// object carrying "*"), a "*" field, a "content" field, a MediaWiki API
// "parse" wrapper, and finally a flat key to string mapping that becomes one
// "== key ==" section per entry, in source order.
package source

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/dgallion1/wikidoc/internal/doctree"
	"github.com/dgallion1/wikidoc/internal/wikitext"
)

// ErrNoContent is returned when a structured payload holds no usable text.
var ErrNoContent = errors.New("no wikitext content")

// Kind records which input shape produced the text.
type Kind string

const (
	KindRaw      Kind = "raw"
	KindWikitext Kind = "wikitext"
	KindStar     Kind = "star"
	KindContent  Kind = "content"
	KindSections Kind = "sections"
)

// Input is a payload resolved to wikitext.
type Input struct {
	Kind  Kind
	Title string
	Text  string
}

// Parse runs the wikitext parser over the resolved text.
func (in Input) Parse() *doctree.Document {
	return wikitext.Parse(in.Text)
}

// Tree parses the input and nests it under its headings. The fallback
// title is used when the payload carried none.
func (in Input) Tree(fallbackTitle string) *doctree.DocTree {
	title := in.Title
	if title == "" {
		title = fallbackTitle
	}
	return doctree.BuildTree(title, in.Parse())
}

// FromString wraps raw wikitext.
func FromString(s string) Input {
	return Input{Kind: KindRaw, Text: s}
}

// Decode reads a payload according to its media type. JSON and YAML bodies
// are resolved as structured objects; anything else is raw wikitext.
func Decode(contentType string, r io.Reader) (Input, error) {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = ""
	}
	switch mediaType {
	case "application/json":
		return DecodeJSON(r)
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return DecodeYAML(r)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		return Input{}, fmt.Errorf("read wikitext: %w", err)
	}
	return FromString(string(raw)), nil
}

type valueKind int

const (
	valueOther valueKind = iota
	valueString
	valueObject
)

// value is a decoded payload node. Objects keep their fields in source
// order so that synthesized sections follow the document.
type value struct {
	kind   valueKind
	text   string
	fields []field
}

type field struct {
	key string
	val value
}

func (v value) get(key string) (value, bool) {
	for _, f := range v.fields {
		if f.key == key {
			return f.val, true
		}
	}
	return value{}, false
}

func (v value) str(key string) (string, bool) {
	f, ok := v.get(key)
	if !ok || f.kind != valueString {
		return "", false
	}
	return f.text, true
}

// resolve applies the field priority to a decoded payload.
func resolve(v value) (Input, error) {
	switch v.kind {
	case valueString:
		return FromString(v.text), nil
	case valueObject:
	default:
		return Input{}, ErrNoContent
	}

	title, _ := v.str("title")
	if w, ok := v.get("wikitext"); ok {
		if w.kind == valueString {
			return Input{Kind: KindWikitext, Title: title, Text: w.text}, nil
		}
		if s, ok := w.str("*"); ok {
			return Input{Kind: KindWikitext, Title: title, Text: s}, nil
		}
	}
	if s, ok := v.str("*"); ok {
		return Input{Kind: KindStar, Title: title, Text: s}, nil
	}
	if s, ok := v.str("content"); ok {
		return Input{Kind: KindContent, Title: title, Text: s}, nil
	}
	if p, ok := v.get("parse"); ok && p.kind == valueObject {
		if in, err := resolve(p); err == nil && in.Kind != KindSections {
			if in.Title == "" {
				in.Title = title
			}
			return in, nil
		}
	}
	return sections(v, title)
}

// sections builds a document from the string fields of a flat mapping.
// The "title" field names the document rather than a section.
func sections(v value, title string) (Input, error) {
	var b strings.Builder
	n := 0
	for _, f := range v.fields {
		if f.val.kind != valueString || f.key == "title" {
			continue
		}
		key := strings.Join(strings.Fields(f.key), " ")
		if key == "" {
			continue
		}
		if n > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("== " + key + " ==\n")
		b.WriteString(f.val.text)
		n++
	}
	if n == 0 {
		return Input{}, ErrNoContent
	}
	return Input{Kind: KindSections, Title: title, Text: b.String()}, nil
}
