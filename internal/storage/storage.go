// Package storage keeps parsed documents and their search chunks in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/dgallion1/wikidoc/internal/doctree"
)

// ErrNotFound is returned when a document ID has no row.
var ErrNotFound = errors.New("document not found")

// Document is a stored parse result. Doc is nil in listings.
type Document struct {
	ID          string            `json:"doc_id"`
	Title       string            `json:"title"`
	Filename    string            `json:"filename"`
	Format      string            `json:"format"`
	ContentHash string            `json:"content_hash"`
	BlockCount  int               `json:"block_count"`
	ChunkCount  int               `json:"chunk_count"`
	CreatedAt   time.Time         `json:"created_at"`
	Doc         *doctree.Document `json:"document,omitempty"`
}

// ChunkHit is a chunk returned by SearchChunks.
type ChunkHit struct {
	DocID      string   `json:"doc_id"`
	Title      string   `json:"title"`
	Index      int      `json:"index"`
	Text       string   `json:"text"`
	Breadcrumb []string `json:"breadcrumb"`
	Anchor     string   `json:"anchor,omitempty"`
}

// Counts summarizes the store contents.
type Counts struct {
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(logger *slog.Logger, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// One connection: in-memory databases are per connection, and writers
	// serialize anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	// modernc.org/sqlite ignores the _journal_mode DSN parameter.
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
		logger.Warn("failed to set WAL journal mode", "error", err)
	} else {
		logger.Info("SQLite journal mode set", "mode", journalMode, "path", path)
	}

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		logger.Warn("failed to set busy timeout", "error", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Init() error {
	query := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		filename TEXT NOT NULL DEFAULT '',
		format TEXT NOT NULL DEFAULT '',
		content_hash TEXT NOT NULL,
		body TEXT NOT NULL,
		block_count INTEGER NOT NULL DEFAULT 0,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);
	CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created_at);

	CREATE TABLE IF NOT EXISTS chunks (
		doc_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		text TEXT NOT NULL,
		breadcrumb TEXT NOT NULL DEFAULT '[]',
		anchor TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (doc_id, idx)
	);
	`
	_, err := s.db.Exec(query)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// IsBusy reports whether err is SQLite lock contention worth retrying.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func observe(op string, start time.Time, errp *error) {
	queryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err := *errp; err != nil && !errors.Is(err, ErrNotFound) {
		queryErrorsTotal.WithLabelValues(op).Inc()
	}
}
