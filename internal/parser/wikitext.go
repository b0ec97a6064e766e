package parser

import (
	"fmt"
	"io"

	"github.com/dgallion1/wikidoc/internal/doctree"
	"github.com/dgallion1/wikidoc/internal/source"
)

// WikitextParser handles raw wikitext files.
type WikitextParser struct{}

func (p *WikitextParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	return source.FromString(string(raw)).Tree(titleFromFilename(filename)), nil
}

// Structured payload formats.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// StructuredParser handles JSON and YAML payloads wrapping wikitext, such
// as MediaWiki API responses or flat section mappings.
type StructuredParser struct {
	Format string
}

func (p *StructuredParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	var (
		in  source.Input
		err error
	)
	switch p.Format {
	case FormatYAML:
		in, err = source.DecodeYAML(r)
	default:
		in, err = source.DecodeJSON(r)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	return in.Tree(titleFromFilename(filename)), nil
}
