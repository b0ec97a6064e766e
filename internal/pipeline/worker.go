package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/wikidoc/internal/chunker"
	"github.com/dgallion1/wikidoc/internal/doctree"
	"github.com/dgallion1/wikidoc/internal/parser"
	"github.com/dgallion1/wikidoc/internal/render"
	"github.com/dgallion1/wikidoc/internal/stats"
	"github.com/dgallion1/wikidoc/internal/storage"
)

// Store is the persistence the pipeline writes to.
type Store interface {
	FindByHash(ctx context.Context, hash string) (string, error)
	SaveDocument(ctx context.Context, doc storage.Document, chunks []doctree.Chunk) error
}

// maxReportedMathIssues caps per-formula job errors.
const maxReportedMathIssues = 10

// Worker processes a single document job.
type Worker struct {
	store    Store
	math     render.MathRenderer
	stats    *stats.Window
	log      *slog.Logger
	chunkCfg chunker.Config
}

// NewWorker builds a worker. math and parseStats may be nil.
func NewWorker(store Store, math render.MathRenderer, parseStats *stats.Window, log *slog.Logger, chunkCfg chunker.Config) *Worker {
	return &Worker{
		store:    store,
		math:     math,
		stats:    parseStats,
		log:      log,
		chunkCfg: chunkCfg,
	}
}

// Process runs the full ingest pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "doc_id", job.DocID, "filename", job.Filename)
	defer job.releaseFileData()

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		w.finish(job, StatusFailed, "parsing")
		return
	}

	format := parser.Format(job.Filename)
	start := time.Now()
	tree, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	elapsed := time.Since(start)
	parseDuration.WithLabelValues(format).Observe(elapsed.Seconds())
	if w.stats != nil {
		w.stats.Record(format, elapsed)
	}
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		w.finish(job, StatusFailed, "parsing")
		return
	}
	if job.Title != "" {
		tree.Title = job.Title
	}

	doc := tree.Document
	if doc == nil {
		doc = &doctree.Document{}
	}
	plain := doc.PlainText()
	job.SetParsed(len(doc.Blocks), ContentHashHex([]byte(plain)))
	log.Info("parsed document", "format", format, "blocks", len(doc.Blocks), "duration_ms", elapsed.Milliseconds())

	// Phase 1.5: Dedup check
	if !job.Force {
		existing, err := w.checkDuplicate(ctx, log, job)
		if err != nil {
			log.Warn("dedup check failed, proceeding", "error", err)
		} else if existing != "" && existing != job.DocID {
			log.Info("duplicate document, skipping", "existing_doc_id", existing)
			job.SetDuplicateOf(existing)
			w.finish(job, StatusDupSkipped, "dedup")
			return
		}
	}

	// Phase 2: Chunk
	job.SetStatus(StatusChunking, "chunking")
	cfg := w.chunkCfg
	if job.ChunkSize > 0 {
		cfg.ChunkSize = job.ChunkSize
	}
	if job.ChunkOverlap > 0 {
		cfg.ChunkOverlap = job.ChunkOverlap
	}
	chunks := chunker.ChunkTree(tree, cfg)
	job.SetTotalChunks(len(chunks))
	log.Info("chunked document", "chunks", len(chunks))

	if len(chunks) == 0 {
		log.Warn("no chunks produced")
		job.AddError("no extractable content")
		w.finish(job, StatusFailed, "chunking")
		return
	}

	// Formulas that will not convert are stored anyway and render as
	// flagged source; the job is marked partial.
	issues := render.CheckMath(w.math, doc)
	job.SetMathIssues(len(issues))
	for i, issue := range issues {
		if i == maxReportedMathIssues {
			job.AddError(fmt.Sprintf("math: %d more formulas failed", len(issues)-i))
			break
		}
		job.AddError(fmt.Sprintf("math %q: %s", issue.Latex, issue.Error))
	}

	// Phase 3: Store
	job.SetStatus(StatusStoring, "storing")
	snap := job.Snapshot()
	record := storage.Document{
		ID:          job.DocID,
		Title:       tree.Title,
		Filename:    job.Filename,
		Format:      format,
		ContentHash: snap.ContentHash,
		CreatedAt:   job.CreatedAt,
		Doc:         doc,
	}
	err = withRetry(ctx, log, "save_document", func() error {
		return w.store.SaveDocument(ctx, record, chunks)
	})
	if err != nil {
		log.Error("store failed", "error", err)
		job.AddError(fmt.Sprintf("store: %s", err))
		w.finish(job, StatusFailed, "storing")
		return
	}
	job.SetStored(len(chunks))
	log.Info("storage complete", "chunks", len(chunks), "math_issues", len(issues))

	if len(issues) > 0 {
		w.finish(job, StatusPartial, "done")
		return
	}
	w.finish(job, StatusCompleted, "done")
}

func (w *Worker) finish(job *Job, status JobStatus, phase string) {
	job.SetStatus(status, phase)
	jobsTotal.WithLabelValues(string(status)).Inc()
}

// checkDuplicate returns the ID of a stored document with the same content.
func (w *Worker) checkDuplicate(ctx context.Context, log *slog.Logger, job *Job) (string, error) {
	var existing string
	err := withRetry(ctx, log, "find_by_hash", func() error {
		var err error
		existing, err = w.store.FindByHash(ctx, job.Snapshot().ContentHash)
		return err
	})
	return existing, err
}
