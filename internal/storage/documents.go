package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgallion1/wikidoc/internal/doctree"
)

// Fixed-width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SaveDocument writes doc and replaces its chunks in one transaction.
// An existing row with the same ID is overwritten.
func (s *SQLiteStore) SaveDocument(ctx context.Context, doc Document, chunks []doctree.Chunk) (err error) {
	defer observe("save_document", time.Now(), &err)

	if doc.ID == "" {
		return errors.New("document id is required")
	}
	if doc.Doc == nil {
		doc.Doc = &doctree.Document{}
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	body, err := json.Marshal(doc.Doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, title, filename, format, content_hash, body, block_count, chunk_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			filename = excluded.filename,
			format = excluded.format,
			content_hash = excluded.content_hash,
			body = excluded.body,
			block_count = excluded.block_count,
			chunk_count = excluded.chunk_count,
			created_at = excluded.created_at
	`, doc.ID, doc.Title, doc.Filename, doc.Format, doc.ContentHash, string(body),
		len(doc.Doc.Blocks), len(chunks), doc.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM chunks WHERE doc_id = ?", doc.ID); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO chunks (doc_id, idx, text, breadcrumb, anchor) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range chunks {
		crumbs := c.Breadcrumb
		if crumbs == nil {
			crumbs = []string{}
		}
		bc, err := json.Marshal(crumbs)
		if err != nil {
			return err
		}
		if _, err = stmt.ExecContext(ctx, doc.ID, c.Index, c.Text, string(bc), c.Anchor); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Index, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return err
	}
	s.logger.Debug("document saved", "doc_id", doc.ID, "blocks", len(doc.Doc.Blocks), "chunks", len(chunks))
	return nil
}

// GetDocument loads a document with its block body.
func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (_ *Document, err error) {
	defer observe("get_document", time.Now(), &err)

	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, filename, format, content_hash, block_count, chunk_count, created_at, body
		FROM documents WHERE id = ?
	`, id)

	var d Document
	var created, body string
	err = row.Scan(&d.ID, &d.Title, &d.Filename, &d.Format, &d.ContentHash, &d.BlockCount, &d.ChunkCount, &created, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.CreatedAt, _ = time.Parse(timeLayout, created)

	d.Doc = &doctree.Document{}
	if err := json.Unmarshal([]byte(body), d.Doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	return &d, nil
}

// FindByHash returns the ID of a document with the given content hash,
// or "" when there is none.
func (s *SQLiteStore) FindByHash(ctx context.Context, hash string) (_ string, err error) {
	defer observe("find_by_hash", time.Now(), &err)

	var id string
	err = s.db.QueryRowContext(ctx, "SELECT id FROM documents WHERE content_hash = ? ORDER BY created_at LIMIT 1", hash).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return id, err
}

// ListDocuments returns documents newest first, without bodies.
func (s *SQLiteStore) ListDocuments(ctx context.Context, limit, offset int) (_ []Document, err error) {
	defer observe("list_documents", time.Now(), &err)

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, filename, format, content_hash, block_count, chunk_count, created_at
		FROM documents
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var d Document
		var created string
		if err := rows.Scan(&d.ID, &d.Title, &d.Filename, &d.Format, &d.ContentHash, &d.BlockCount, &d.ChunkCount, &created); err != nil {
			return nil, err
		}
		d.CreatedAt, _ = time.Parse(timeLayout, created)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document and its chunks.
func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) (err error) {
	defer observe("delete_document", time.Now(), &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	if _, err = tx.ExecContext(ctx, "DELETE FROM chunks WHERE doc_id = ?", id); err != nil {
		return err
	}
	return tx.Commit()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchChunks returns chunks whose text contains q, case-insensitively
// for ASCII.
func (s *SQLiteStore) SearchChunks(ctx context.Context, q string, limit int) (_ []ChunkHit, err error) {
	defer observe("search_chunks", time.Now(), &err)

	hits := []ChunkHit{}
	q = strings.TrimSpace(q)
	if q == "" {
		return hits, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.doc_id, d.title, c.idx, c.text, c.breadcrumb, c.anchor
		FROM chunks c
		JOIN documents d ON d.id = c.doc_id
		WHERE c.text LIKE ? ESCAPE '\'
		ORDER BY d.created_at DESC, c.doc_id, c.idx
		LIMIT ?
	`, "%"+likeEscaper.Replace(q)+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var h ChunkHit
		var crumbs string
		if err := rows.Scan(&h.DocID, &h.Title, &h.Index, &h.Text, &crumbs, &h.Anchor); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(crumbs), &h.Breadcrumb); err != nil {
			s.logger.Warn("bad breadcrumb", "doc_id", h.DocID, "idx", h.Index, "error", err)
		}
		if h.Breadcrumb == nil {
			h.Breadcrumb = []string{}
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Counts returns the number of stored documents and chunks.
func (s *SQLiteStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, "SELECT (SELECT COUNT(*) FROM documents), (SELECT COUNT(*) FROM chunks)").Scan(&c.Documents, &c.Chunks)
	return c, err
}
