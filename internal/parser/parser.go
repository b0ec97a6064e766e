package parser

import (
	"fmt"
	"strconv"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/wikidoc/internal/doctree"
)

// Parser converts raw document bytes into a DocTree.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.DocTree, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".wiki":      true,
	".wikitext":  true,
	".mediawiki": true,
	".json":      true,
	".yaml":      true,
	".yml":       true,
	".md":        true,
	".markdown":  true,
	".txt":       true,
	".html":      true,
	".htm":       true,
	".csv":       true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".wiki", ".wikitext", ".mediawiki":
		return &WikitextParser{}, nil
	case ".json":
		return &StructuredParser{Format: FormatJSON}, nil
	case ".yaml", ".yml":
		return &StructuredParser{Format: FormatYAML}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".txt":
		return &TextParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Format names the parser family for a filename, for metrics labels.
func Format(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".wiki", ".wikitext", ".mediawiki":
		return "wikitext"
	case ".yml":
		return "yaml"
	case ".markdown":
		return "md"
	case ".htm":
		return "html"
	case "":
		return "unknown"
	}
	return strings.TrimPrefix(ext, ".")
}

// titleFromFilename drops the directory and extension.
func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// anchorSet hands out heading anchors unique within one document.
type anchorSet map[string]int

func (a anchorSet) add(title string) string {
	slug := doctree.Slugify(title)
	if slug == "" {
		return ""
	}
	n := a[slug]
	a[slug] = n + 1
	if n == 0 {
		return slug
	}
	return slug + "-" + strconv.Itoa(n+1)
}
