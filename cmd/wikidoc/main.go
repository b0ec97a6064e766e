// Command wikidoc converts wikitext into a document and prints it as
// JSON, HTML, or styled terminal text.
//
//	wikidoc [-format json|html|term] [-link-base /wiki/] [-title T] [file]
//
// With no file, raw wikitext is read from stdin.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/dgallion1/wikidoc/internal/doctree"
	"github.com/dgallion1/wikidoc/internal/parser"
	"github.com/dgallion1/wikidoc/internal/render"
	"github.com/dgallion1/wikidoc/internal/source"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found")
	}

	format := flag.String("format", "json", "output format: json, html, or term")
	linkBase := flag.String("link-base", envOr("LINK_BASE", render.DefaultLinkBase), "prefix for wiki link URLs")
	title := flag.String("title", "", "document title (defaults to the file name)")
	width := flag.Int("width", 100, "wrap width for term output; 0 disables wrapping")
	numbering := flag.Bool("math-numbering", false, "number display equations in html output")
	flag.Parse()

	if flag.NArg() > 1 {
		flag.Usage()
		os.Exit(2)
	}

	tree, err := load(flag.Arg(0))
	if err != nil {
		log.Error("failed to read input", "error", err)
		os.Exit(1)
	}
	if *title != "" {
		tree.Title = *title
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	switch *format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(map[string]any{
			"title":    tree.Title,
			"document": tree.Document,
		})
	case "html":
		r := &render.HTML{
			Math:  render.NewMathML(*numbering, nil),
			Links: render.LinkResolver{Base: *linkBase},
		}
		err = r.Render(out, tree.Document)
	case "term":
		r := &render.Terminal{Width: *width}
		err = r.Render(out, tree.Document)
	default:
		log.Error("unknown format", "format", *format)
		os.Exit(2)
	}
	if err != nil {
		log.Error("render failed", "error", err)
		os.Exit(1)
	}
}

// load parses a file through the format registry, or stdin as raw wikitext.
func load(path string) (*doctree.DocTree, error) {
	if path == "" || path == "-" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return source.FromString(string(raw)).Tree(""), nil
	}

	p, err := parser.ForFile(path)
	if err != nil {
		// Unknown extensions are treated as wikitext.
		p = &parser.WikitextParser{}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tree, err := p.Parse(f, filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if tree.Document == nil {
		tree.Document = &doctree.Document{}
	}
	return tree, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
