package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/wikidoc/internal/storage"
)

const (
	defaultListLimit   = 50
	defaultSearchLimit = 20
)

// handleListDocuments lists stored documents, newest first.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	page, ok := pageParams(w, r)
	if !ok {
		return
	}
	if page.limit == 0 {
		page.limit = defaultListLimit
	}

	docs, err := s.store.ListDocuments(r.Context(), page.limit, page.offset)
	if err != nil {
		s.log.Error("list documents failed", "error", err)
		jsonError(w, "failed to list documents", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"limit":     page.limit,
		"offset":    page.offset,
	})
}

// handleGetDocument returns one page of a stored document's blocks.
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	format, ok := outputFormat(w, r)
	if !ok {
		return
	}
	page, ok := pageParams(w, r)
	if !ok {
		return
	}

	docID := chi.URLParam(r, "docID")
	doc, err := s.store.GetDocument(r.Context(), docID)
	if errors.Is(err, storage.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("get document failed", "doc_id", docID, "error", err)
		jsonError(w, "failed to load document", http.StatusInternalServerError)
		return
	}

	s.writeDocument(w, format, page, map[string]any{
		"doc_id":       doc.ID,
		"title":        doc.Title,
		"filename":     doc.Filename,
		"format":       doc.Format,
		"content_hash": doc.ContentHash,
		"chunk_count":  doc.ChunkCount,
		"created_at":   doc.CreatedAt,
	}, doc.Doc)
}

// handleDeleteDocument deletes a document and its chunks.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	err := s.store.DeleteDocument(r.Context(), docID)
	if errors.Is(err, storage.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("delete document failed", "doc_id", docID, "error", err)
		jsonError(w, "failed to delete document", http.StatusInternalServerError)
		return
	}
	s.log.Info("document deleted", "doc_id", docID)
	writeJSON(w, http.StatusOK, map[string]any{"deleted": docID})
}

// handleSearch finds stored chunks containing the query text.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		jsonError(w, "q query parameter is required", http.StatusBadRequest)
		return
	}
	limit, ok := intParam(w, r, "limit", defaultSearchLimit)
	if !ok {
		return
	}
	if limit == 0 || limit > maxPageLimit {
		limit = defaultSearchLimit
	}

	hits, err := s.store.SearchChunks(r.Context(), q, limit)
	if err != nil {
		s.log.Error("search failed", "error", err)
		jsonError(w, "search failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   q,
		"results": hits,
	})
}

// handleRenderStats reports parse latency percentiles and store counts.
func (s *Server) handleRenderStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "render stats unavailable", http.StatusServiceUnavailable)
		return
	}
	out := map[string]any{
		"parse": s.stats.Snapshot(),
	}
	if s.orchestrator != nil {
		out["queue_depth"] = s.orchestrator.QueueDepth()
	}
	if counts, err := s.store.Counts(r.Context()); err == nil {
		out["store"] = counts
	} else {
		s.log.Warn("store counts failed", "error", err)
	}
	writeJSON(w, http.StatusOK, out)
}
