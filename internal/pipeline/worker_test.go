package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/wikidoc/internal/chunker"
	"github.com/dgallion1/wikidoc/internal/config"
	"github.com/dgallion1/wikidoc/internal/doctree"
	"github.com/dgallion1/wikidoc/internal/render"
	"github.com/dgallion1/wikidoc/internal/stats"
	"github.com/dgallion1/wikidoc/internal/storage"
)

const article = `'''Paris''' is the capital and most populous city of [[France]], with an estimated population.

== History ==
The Parisii, a sub-tribe of the Celtic Senones, inhabited the Paris area from around the middle of the 3rd century BC.

== Geography ==
Paris is located in northern central France, in a north-bending arc of the river Seine. The area is <math>105.4 \text{km}^2</math>.
`

type fakeStore struct {
	mu       sync.Mutex
	docs     map[string]storage.Document
	chunks   map[string][]doctree.Chunk
	byHash   map[string]string
	busyLeft int
	saveErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:   map[string]storage.Document{},
		chunks: map[string][]doctree.Chunk{},
		byHash: map[string]string{},
	}
}

func (s *fakeStore) FindByHash(_ context.Context, hash string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byHash[hash], nil
}

func (s *fakeStore) SaveDocument(_ context.Context, doc storage.Document, chunks []doctree.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busyLeft > 0 {
		s.busyLeft--
		return errors.New("database is locked (5) (SQLITE_BUSY)")
	}
	if s.saveErr != nil {
		return s.saveErr
	}
	s.docs[doc.ID] = doc
	s.chunks[doc.ID] = chunks
	if _, ok := s.byHash[doc.ContentHash]; !ok {
		s.byHash[doc.ContentHash] = doc.ID
	}
	return nil
}

func (s *fakeStore) doc(id string) (storage.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	return d, ok
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestWorker(store Store, math render.MathRenderer) *Worker {
	return NewWorker(store, math, stats.NewWindow(time.Hour), testLogger(), chunker.DefaultConfig())
}

var okMath = render.MathFunc(func(string, bool) (string, error) { return "<math/>", nil })

func TestWorker_ProcessWikitext(t *testing.T) {
	store := newFakeStore()
	w := newTestWorker(store, okMath)

	job := NewJob("Paris.wiki", "", "doc-1", []byte(article))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected status %q, got %q (errors %v)", StatusCompleted, snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.Blocks != 5 {
		t.Errorf("expected 5 blocks, got %d", snap.Progress.Blocks)
	}
	if snap.Progress.TotalChunks != 3 || snap.Progress.ChunksStored != 3 {
		t.Errorf("expected 3 chunks stored, got total=%d stored=%d", snap.Progress.TotalChunks, snap.Progress.ChunksStored)
	}
	if snap.ContentHash == "" {
		t.Error("expected content hash")
	}
	if job.FileData() != nil {
		t.Error("expected file data to be released")
	}

	doc, ok := store.doc("doc-1")
	if !ok {
		t.Fatal("expected document to be stored")
	}
	if doc.Title != "Paris" {
		t.Errorf("expected title from filename, got %q", doc.Title)
	}
	if doc.Format != "wikitext" {
		t.Errorf("expected format wikitext, got %q", doc.Format)
	}
	chunks := store.chunks["doc-1"]
	if chunks[1].Anchor != "history" || chunks[1].Breadcrumb[0] != "History" {
		t.Errorf("expected History chunk, got %+v", chunks[1])
	}
}

func TestWorker_TitleOverride(t *testing.T) {
	store := newFakeStore()
	w := newTestWorker(store, nil)

	job := NewJob("page.wiki", "City of Light", "doc-1", []byte(article))
	w.Process(context.Background(), job)

	doc, _ := store.doc("doc-1")
	if doc.Title != "City of Light" {
		t.Errorf("expected overridden title, got %q", doc.Title)
	}
}

func TestWorker_Dedup(t *testing.T) {
	store := newFakeStore()
	w := newTestWorker(store, nil)

	first := NewJob("a.wiki", "", "doc-1", []byte(article))
	w.Process(context.Background(), first)

	dup := NewJob("b.wiki", "", "doc-2", []byte(article))
	w.Process(context.Background(), dup)
	snap := dup.Snapshot()
	if snap.Status != StatusDupSkipped {
		t.Fatalf("expected status %q, got %q", StatusDupSkipped, snap.Status)
	}
	if snap.DuplicateOf != "doc-1" {
		t.Errorf("expected duplicate of doc-1, got %q", snap.DuplicateOf)
	}
	if _, ok := store.doc("doc-2"); ok {
		t.Error("expected duplicate not to be stored")
	}

	forced := NewJob("b.wiki", "", "doc-2", []byte(article))
	forced.Force = true
	w.Process(context.Background(), forced)
	if got := forced.Snapshot().Status; got != StatusCompleted {
		t.Fatalf("expected forced job to complete, got %q", got)
	}

	// Re-ingesting under the same document ID is an update, not a duplicate.
	again := NewJob("a.wiki", "", "doc-1", []byte(article))
	w.Process(context.Background(), again)
	if got := again.Snapshot().Status; got != StatusCompleted {
		t.Fatalf("expected same-ID re-ingest to complete, got %q", got)
	}
}

func TestWorker_UnsupportedFormat(t *testing.T) {
	w := newTestWorker(newFakeStore(), nil)
	job := NewJob("report.pdf", "", "", []byte("%PDF"))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "parsing" {
		t.Fatalf("expected failed in parsing, got %q/%q", snap.Status, snap.Phase)
	}
	if len(snap.Progress.Errors) != 1 {
		t.Errorf("expected 1 error, got %v", snap.Progress.Errors)
	}
}

func TestWorker_BadStructuredInput(t *testing.T) {
	w := newTestWorker(newFakeStore(), nil)
	job := NewJob("page.json", "", "", []byte(`{"wikitext": `))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Fatalf("expected failed, got %q", snap.Status)
	}
	if !strings.HasPrefix(snap.Progress.Errors[0], "parse:") {
		t.Errorf("expected parse error, got %q", snap.Progress.Errors[0])
	}
}

func TestWorker_EmptyDocument(t *testing.T) {
	w := newTestWorker(newFakeStore(), nil)
	job := NewJob("empty.wiki", "", "", []byte("{{Infobox city | name = Paris}}\n[[File:Paris.jpg|thumb]]\n"))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "chunking" {
		t.Fatalf("expected failed in chunking, got %q/%q", snap.Status, snap.Phase)
	}
}

func TestWorker_MathIssuesMarkPartial(t *testing.T) {
	store := newFakeStore()
	failing := render.MathFunc(func(string, bool) (string, error) { return "", errors.New("unknown command") })
	w := newTestWorker(store, failing)

	job := NewJob("Paris.wiki", "", "doc-1", []byte(article))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusPartial {
		t.Fatalf("expected status %q, got %q", StatusPartial, snap.Status)
	}
	if snap.Progress.MathIssues != 1 {
		t.Errorf("expected 1 math issue, got %d", snap.Progress.MathIssues)
	}
	if _, ok := store.doc("doc-1"); !ok {
		t.Error("expected document to be stored despite math issues")
	}
}

func TestWorker_RetriesBusyStore(t *testing.T) {
	store := newFakeStore()
	store.busyLeft = 2
	w := newTestWorker(store, nil)

	job := NewJob("Paris.wiki", "", "doc-1", []byte(article))
	w.Process(context.Background(), job)

	if got := job.Snapshot().Status; got != StatusCompleted {
		t.Fatalf("expected completion after retries, got %q", got)
	}
}

func TestWorker_StoreFailure(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("disk full")
	w := newTestWorker(store, nil)

	job := NewJob("Paris.wiki", "", "doc-1", []byte(article))
	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "storing" {
		t.Fatalf("expected failed in storing, got %q/%q", snap.Status, snap.Phase)
	}
}

func TestWorker_RecordsParseStats(t *testing.T) {
	window := stats.NewWindow(time.Hour)
	w := NewWorker(newFakeStore(), nil, window, testLogger(), chunker.DefaultConfig())
	w.Process(context.Background(), NewJob("Paris.wiki", "", "", []byte(article)))
	w.Process(context.Background(), NewJob("notes.md", "", "", []byte("# Notes\n\nSome markdown text with enough words to chunk.")))

	sum := window.Snapshot()
	if sum.ByLabel["wikitext"].Count != 1 || sum.ByLabel["md"].Count != 1 {
		t.Errorf("expected one sample per format, got %+v", sum.ByLabel)
	}
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), testLogger(), "test", func() error {
		calls++
		return errors.New("constraint failed")
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected one call and an error, got calls=%d err=%v", calls, err)
	}
}

func TestWithRetry_GivesUp(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), testLogger(), "test", func() error {
		calls++
		return errors.New("database is locked")
	})
	if err == nil || calls != MaxRetries {
		t.Fatalf("expected %d calls and an error, got calls=%d err=%v", MaxRetries, calls, err)
	}
}

func TestWithRetry_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := withRetry(ctx, testLogger(), "test", func() error {
		return errors.New("database is locked")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBackoff(t *testing.T) {
	for attempt := 0; attempt < 8; attempt++ {
		d := Backoff(attempt)
		if d < 100*time.Millisecond || d > 3*time.Second {
			t.Errorf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
}

func TestOrchestrator_SubmitAndProcess(t *testing.T) {
	cfg := config.Default()
	cfg.WorkerCount = 2
	cfg.MaxQueueSize = 4
	store := newFakeStore()
	o := NewOrchestrator(cfg, store, nil, nil, testLogger())
	o.Start(context.Background())

	job := NewJob("Paris.wiki", "", "doc-1", []byte(article))
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !job.CurrentStatus().Terminal() {
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish, status %q", job.CurrentStatus())
		}
		time.Sleep(10 * time.Millisecond)
	}
	o.Stop()

	if got := o.GetJob(job.ID); got != job {
		t.Error("expected job to be tracked")
	}
	if got := job.CurrentStatus(); got != StatusCompleted {
		t.Errorf("expected completed, got %q", got)
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := config.Default()
	cfg.MaxQueueSize = 1
	o := NewOrchestrator(cfg, newFakeStore(), nil, nil, testLogger())
	// Workers are not started, so the queue stays full.

	if err := o.Submit(NewJob("a.wiki", "", "", []byte(article))); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	overflow := NewJob("b.wiki", "", "", []byte(article))
	err := o.Submit(overflow)
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if got := overflow.CurrentStatus(); got != StatusFailed {
		t.Errorf("expected failed status, got %q", got)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}
}
