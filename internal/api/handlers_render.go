package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dgallion1/wikidoc/internal/doctree"
	"github.com/dgallion1/wikidoc/internal/source"
)

const (
	formatJSON = "json"
	formatHTML = "html"
)

// handleRender parses a posted payload synchronously and returns the
// document as JSON or HTML.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	format, ok := outputFormat(w, r)
	if !ok {
		return
	}
	page, ok := pageParams(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxInputBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, fmt.Sprintf("input exceeds max size (%d bytes)", s.cfg.MaxInputBytes), http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	in, err := source.Decode(r.Header.Get("Content-Type"), bytes.NewReader(body))
	if err != nil {
		if errors.Is(err, source.ErrNoContent) {
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		jsonError(w, "invalid payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	start := time.Now()
	doc := in.Parse()
	if s.stats != nil {
		s.stats.Record("render", time.Since(start))
	}

	s.writeDocument(w, format, page, map[string]any{
		"title":  in.Title,
		"source": in.Kind,
	}, doc)
}

// writeDocument writes one page of doc. meta fields are merged into the
// JSON envelope.
func (s *Server) writeDocument(w http.ResponseWriter, format string, page pageRange, meta map[string]any, doc *doctree.Document) {
	total := len(doc.Blocks)
	slice := doc.Slice(page.offset, page.limit)

	if format == formatHTML {
		html, err := s.htmlRenderer().RenderString(slice)
		if err != nil {
			s.log.Error("html render failed", "error", err)
			jsonError(w, "render failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Total-Blocks", fmt.Sprint(total))
		io.WriteString(w, html)
		return
	}

	out := map[string]any{
		"total_blocks": total,
		"offset":       min(page.offset, total),
		"document":     slice,
	}
	for k, v := range meta {
		out[k] = v
	}
	writeJSON(w, http.StatusOK, out)
}

func outputFormat(w http.ResponseWriter, r *http.Request) (string, bool) {
	switch f := r.URL.Query().Get("format"); f {
	case "", formatJSON:
		return formatJSON, true
	case formatHTML:
		return formatHTML, true
	default:
		jsonError(w, fmt.Sprintf("unsupported format %q (want json or html)", f), http.StatusBadRequest)
		return "", false
	}
}
