package doctree

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Blocks and tokens are encoded as JSON objects carrying a "type" field
// next to their own fields, e.g. {"type":"heading","level":2,"text":[...]}.

// MarshalBlock encodes a single block with its type tag.
func MarshalBlock(b Block) ([]byte, error) {
	switch b.(type) {
	case Heading, Paragraph, List, Table, CodeBlock, DisplayMath, Blockquote, HorizontalRule:
	default:
		return nil, fmt.Errorf("unknown block type %T", b)
	}
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	return withType(string(b.Kind()), raw), nil
}

// MarshalToken encodes a single inline token with its type tag.
func MarshalToken(t Token) ([]byte, error) {
	switch t.(type) {
	case Text, Bold, Italic, BoldItalic, Code, Link, WikiLink, InlineMath, Superscript, Subscript:
	default:
		return nil, fmt.Errorf("unknown token type %T", t)
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return withType(string(t.Kind()), raw), nil
}

func withType(kind string, obj []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"type":`)
	k, _ := json.Marshal(kind)
	buf.Write(k)
	if inner := bytes.TrimSpace(obj[1 : len(obj)-1]); len(inner) > 0 {
		buf.WriteByte(',')
		buf.Write(inner)
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func (d Document) MarshalJSON() ([]byte, error) {
	blocks := make([]json.RawMessage, 0, len(d.Blocks))
	for _, b := range d.Blocks {
		raw, err := MarshalBlock(b)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, raw)
	}
	return json.Marshal(struct {
		Blocks []json.RawMessage `json:"blocks"`
	}{blocks})
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var wire struct {
		Blocks []json.RawMessage `json:"blocks"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	d.Blocks = nil
	for i, raw := range wire.Blocks {
		b, err := UnmarshalBlock(raw)
		if err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
		d.Blocks = append(d.Blocks, b)
	}
	return nil
}

func (r InlineRun) MarshalJSON() ([]byte, error) {
	toks := make([]json.RawMessage, 0, len(r))
	for _, t := range r {
		raw, err := MarshalToken(t)
		if err != nil {
			return nil, err
		}
		toks = append(toks, raw)
	}
	return json.Marshal(toks)
}

func (r *InlineRun) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	if len(raws) == 0 {
		*r = nil
		return nil
	}
	out := make(InlineRun, 0, len(raws))
	for i, raw := range raws {
		t, err := UnmarshalToken(raw)
		if err != nil {
			return fmt.Errorf("token %d: %w", i, err)
		}
		out = append(out, t)
	}
	*r = out
	return nil
}

func peekType(raw []byte) (string, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", err
	}
	if head.Type == "" {
		return "", fmt.Errorf("missing type field")
	}
	return head.Type, nil
}

// UnmarshalBlock decodes a type-tagged block.
func UnmarshalBlock(raw []byte) (Block, error) {
	kind, err := peekType(raw)
	if err != nil {
		return nil, err
	}
	switch BlockKind(kind) {
	case KindHeading:
		var v Heading
		err = json.Unmarshal(raw, &v)
		return v, err
	case KindParagraph:
		var v Paragraph
		err = json.Unmarshal(raw, &v)
		return v, err
	case KindList:
		var v List
		err = json.Unmarshal(raw, &v)
		return v, err
	case KindTable:
		var v Table
		err = json.Unmarshal(raw, &v)
		return v, err
	case KindCodeBlock:
		var v CodeBlock
		err = json.Unmarshal(raw, &v)
		return v, err
	case KindDisplayMath:
		var v DisplayMath
		err = json.Unmarshal(raw, &v)
		return v, err
	case KindBlockquote:
		var v Blockquote
		err = json.Unmarshal(raw, &v)
		return v, err
	case KindHorizontalRule:
		return HorizontalRule{}, nil
	default:
		return nil, fmt.Errorf("unknown block type %q", kind)
	}
}

// UnmarshalToken decodes a type-tagged inline token.
func UnmarshalToken(raw []byte) (Token, error) {
	kind, err := peekType(raw)
	if err != nil {
		return nil, err
	}
	switch TokenKind(kind) {
	case TokenText:
		var v Text
		err = json.Unmarshal(raw, &v)
		return v, err
	case TokenBold:
		var v Bold
		err = json.Unmarshal(raw, &v)
		return v, err
	case TokenItalic:
		var v Italic
		err = json.Unmarshal(raw, &v)
		return v, err
	case TokenBoldItalic:
		var v BoldItalic
		err = json.Unmarshal(raw, &v)
		return v, err
	case TokenCode:
		var v Code
		err = json.Unmarshal(raw, &v)
		return v, err
	case TokenLink:
		var v Link
		err = json.Unmarshal(raw, &v)
		return v, err
	case TokenWikiLink:
		var v WikiLink
		err = json.Unmarshal(raw, &v)
		return v, err
	case TokenInlineMath:
		var v InlineMath
		err = json.Unmarshal(raw, &v)
		return v, err
	case TokenSuperscript:
		var v Superscript
		err = json.Unmarshal(raw, &v)
		return v, err
	case TokenSubscript:
		var v Subscript
		err = json.Unmarshal(raw, &v)
		return v, err
	default:
		return nil, fmt.Errorf("unknown token type %q", kind)
	}
}
