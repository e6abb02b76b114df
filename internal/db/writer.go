package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/michaelscutari/bigfolders/internal/entry"
	"github.com/michaelscutari/bigfolders/internal/rank"
)

// ErrScanIncomplete means the event stream ended before the scan's Done.
var ErrScanIncomplete = errors.New("event stream closed before the scan finished")

const insertDirSQL = `INSERT OR REPLACE INTO dirs (path, parent, depth, size, accessed, seq) VALUES (?, ?, ?, ?, ?, ?)`
const updateAccessedSQL = `UPDATE dirs SET accessed = ? WHERE path = ?`
const insertErrorSQL = `INSERT INTO scan_errors (path, message) VALUES (?, ?)`
const upsertMetaSQL = `
INSERT OR REPLACE INTO scan_meta
    (id, root_path, mode, start_time, end_time, total_size, dir_count, file_count, error_count, stopped)
VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const maxErrorsSampled = 1000

// DefaultAccessedTop is how many of the biggest folders get a last-access
// time once a scan is recorded.
const DefaultAccessedTop = 1000

// Ingester batches one scan's events and writes them to the database.
type Ingester struct {
	db              *sql.DB
	root            string
	eventCh         <-chan entry.Event
	errorCh         <-chan entry.ScanError
	batchSize       int
	flushIntervalMs int
	maxErrors       int
	onMaxErrors     func()
	accessedTop     int
	lookup          rank.AccessLookup

	dirBatch    []entry.ScanEntry
	errorBatch  []entry.ScanError
	errorCount  int64
	errorCapped bool
	seq         int64
	meta        *entry.ScanMeta

	// Progress tracking (atomic)
	dirCount   int64
	totalBytes int64

	dirStmt   *sql.Stmt
	errorStmt *sql.Stmt

	debug     bool
	logOutput io.Writer
}

// Progress holds current ingestion progress.
type Progress struct {
	Dirs       int64
	Errors     int64
	TotalBytes int64 // Sum of the top-level directories recorded so far
}

// NewIngester creates a new ingester for a scan of root. onMaxErrors, when
// set, is called once maxErrors sampled errors have arrived.
func NewIngester(db *sql.DB, root string, eventCh <-chan entry.Event, errorCh <-chan entry.ScanError, batchSize, flushIntervalMs, maxErrors int, onMaxErrors func()) *Ingester {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if flushIntervalMs <= 0 {
		flushIntervalMs = 1000
	}
	return &Ingester{
		db:              db,
		root:            filepath.Clean(root),
		eventCh:         eventCh,
		errorCh:         errorCh,
		batchSize:       batchSize,
		flushIntervalMs: flushIntervalMs,
		maxErrors:       maxErrors,
		onMaxErrors:     onMaxErrors,
		accessedTop:     DefaultAccessedTop,
		dirBatch:        make([]entry.ScanEntry, 0, batchSize),
		errorBatch:      make([]entry.ScanError, 0, 100),
		logOutput:       os.Stderr,
	}
}

// SetDebug enables [INGESTER] traces on w.
func (ing *Ingester) SetDebug(debug bool, w io.Writer) {
	ing.debug = debug
	if w != nil {
		ing.logOutput = w
	}
}

// SetAccessed controls how many of the biggest folders get their access
// time resolved after Done. Zero disables it; a nil lookup uses the
// filesystem.
func (ing *Ingester) SetAccessed(top int, lookup rank.AccessLookup) {
	ing.accessedTop = top
	ing.lookup = lookup
}

// Run consumes events until the scan's Done event and writes them in
// batches. A Done carrying an error, or a stream that closes first, is
// returned as an error.
func (ing *Ingester) Run(ctx context.Context) error {
	var err error
	ing.dirStmt, err = ing.db.Prepare(insertDirSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare dir statement: %w", err)
	}
	defer ing.dirStmt.Close()

	ing.errorStmt, err = ing.db.Prepare(insertErrorSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare error statement: %w", err)
	}
	defer ing.errorStmt.Close()

	ticker := time.NewTicker(time.Duration(ing.flushIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	ing.logf("[INGESTER] STARTED root=%s batchSize=%d flushInterval=%dms", ing.root, ing.batchSize, ing.flushIntervalMs)

	errorCh := ing.errorCh
	for ing.meta == nil {
		select {
		case <-ctx.Done():
			ing.logf("[INGESTER] CTX-CANCELLED batchLen=%d", len(ing.dirBatch))
			if err := ing.flush(); err != nil {
				return err
			}
			return ctx.Err()

		case ev, ok := <-ing.eventCh:
			if !ok {
				ing.logf("[INGESTER] EVENTS-CLOSED before done")
				if err := ing.flush(); err != nil {
					return err
				}
				return ErrScanIncomplete
			}
			if ev.Kind == entry.EventDone {
				if ev.Err != nil {
					return fmt.Errorf("scan failed: %w", ev.Err)
				}
				meta := ev.Meta
				ing.meta = &meta
				continue
			}
			ing.addDir(ev.Entry)
			if len(ing.dirBatch) >= ing.batchSize {
				if err := ing.flushDirs(); err != nil {
					return err
				}
			}

		case e, ok := <-errorCh:
			if !ok {
				errorCh = nil
				continue
			}
			ing.addError(e)

		case <-ticker.C:
			if err := ing.flush(); err != nil {
				return err
			}
		}
	}

	// Pick up errors that arrived before Done without waiting for more.
	for drained := false; !drained && errorCh != nil; {
		select {
		case e, ok := <-errorCh:
			if !ok {
				drained = true
				continue
			}
			ing.addError(e)
		default:
			drained = true
		}
	}

	if err := ing.flush(); err != nil {
		return err
	}
	if err := ing.resolveAccessed(); err != nil {
		return err
	}
	if err := ing.writeMeta(); err != nil {
		return err
	}
	ing.logf("[INGESTER] DONE dirs=%d errors=%d", atomic.LoadInt64(&ing.dirCount), atomic.LoadInt64(&ing.errorCount))
	return nil
}

func (ing *Ingester) addDir(e entry.ScanEntry) {
	atomic.AddInt64(&ing.dirCount, 1)
	if filepath.Dir(e.Path) == ing.root {
		atomic.AddInt64(&ing.totalBytes, e.Size)
	}
	ing.dirBatch = append(ing.dirBatch, e)
}

func (ing *Ingester) addError(e entry.ScanError) {
	n := atomic.AddInt64(&ing.errorCount, 1)
	if ing.maxErrors > 0 && n == int64(ing.maxErrors) && ing.onMaxErrors != nil {
		ing.logf("[INGESTER] MAX-ERRORS reached=%d", n)
		ing.onMaxErrors()
	}
	// Only sample first N errors to bound memory
	if ing.errorCapped {
		return
	}
	ing.errorBatch = append(ing.errorBatch, e)
	if n >= maxErrorsSampled {
		ing.errorCapped = true
	}
}

func (ing *Ingester) flush() error {
	if err := ing.flushDirs(); err != nil {
		return err
	}
	return ing.flushErrors()
}

func (ing *Ingester) flushDirs() error {
	if len(ing.dirBatch) == 0 {
		return nil
	}

	batchLen := len(ing.dirBatch)
	flushStart := time.Now()

	tx, err := ing.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt := tx.Stmt(ing.dirStmt)
	for _, e := range ing.dirBatch {
		ing.seq++
		var accessed int64
		if e.HasAccessed() {
			accessed = e.Accessed.Unix()
		}
		_, err := stmt.Exec(e.Path, filepath.Dir(e.Path), ing.depth(e.Path), e.Size, accessed, ing.seq)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert dir %q: %w", e.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	ing.logf("[INGESTER] FLUSH dirs=%d took=%v", batchLen, time.Since(flushStart))
	ing.dirBatch = ing.dirBatch[:0]
	return nil
}

func (ing *Ingester) flushErrors() error {
	if len(ing.errorBatch) == 0 {
		return nil
	}

	tx, err := ing.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin error transaction: %w", err)
	}

	stmt := tx.Stmt(ing.errorStmt)
	for _, e := range ing.errorBatch {
		_, err := stmt.Exec(e.Path, e.Message)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert error for %q: %w", e.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit error transaction: %w", err)
	}

	ing.errorBatch = ing.errorBatch[:0]
	return nil
}

// resolveAccessed stamps the biggest recorded folders with their last
// access time. Entries arrive without one, so this runs after everything
// is flushed.
func (ing *Ingester) resolveAccessed() error {
	if ing.accessedTop <= 0 {
		return nil
	}
	rows, err := LoadTop(ing.db, Query{Sort: "size", Limit: ing.accessedTop})
	if err != nil {
		return fmt.Errorf("failed to load biggest dirs: %w", err)
	}
	top := Entries(rows)
	resolved := rank.Enrich(top, len(top), ing.lookup)
	if resolved == 0 {
		return nil
	}

	tx, err := ing.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, e := range top {
		if !e.HasAccessed() {
			continue
		}
		if _, err := tx.Exec(updateAccessedSQL, e.Accessed.Unix(), e.Path); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to update access time of %q: %w", e.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	ing.logf("[INGESTER] ACCESSED resolved=%d of=%d", resolved, len(top))
	return nil
}

func (ing *Ingester) writeMeta() error {
	return WriteScanMeta(ing.db, *ing.meta)
}

// WriteScanMeta records the scan summary.
func WriteScanMeta(db *sql.DB, m entry.ScanMeta) error {
	var endTime int64
	if !m.EndTime.IsZero() {
		endTime = m.EndTime.Unix()
	}
	_, err := db.Exec(upsertMetaSQL,
		m.RootPath, m.Mode, m.StartTime.Unix(), endTime,
		m.TotalSize, m.DirCount, m.FileCount, m.ErrorCount, m.Stopped,
	)
	if err != nil {
		return fmt.Errorf("failed to write scan meta: %w", err)
	}
	return nil
}

// depth counts path components below the scan root; top-level folders are 1.
func (ing *Ingester) depth(path string) int {
	rel, err := filepath.Rel(ing.root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// ErrorCount returns the total number of errors encountered.
func (ing *Ingester) ErrorCount() int64 {
	return atomic.LoadInt64(&ing.errorCount)
}

// Progress returns current ingestion progress (safe for concurrent access).
func (ing *Ingester) Progress() Progress {
	return Progress{
		Dirs:       atomic.LoadInt64(&ing.dirCount),
		Errors:     atomic.LoadInt64(&ing.errorCount),
		TotalBytes: atomic.LoadInt64(&ing.totalBytes),
	}
}

func (ing *Ingester) logf(format string, args ...any) {
	if ing.debug {
		fmt.Fprintf(ing.logOutput, format+"\n", args...)
	}
}
