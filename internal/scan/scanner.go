package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/michaelscutari/bigfolders/internal/entry"
	"github.com/michaelscutari/bigfolders/internal/rollup"
)

// Scanner sizes every top-level directory under a root, one after another.
type Scanner struct {
	opts    *ScanOptions
	errorCh chan entry.ScanError

	current atomic.Pointer[rollup.Aggregator]
	running atomic.Bool
}

// NewScanner creates a new scanner.
func NewScanner(opts *ScanOptions) *Scanner {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Scanner{
		opts:    opts,
		errorCh: make(chan entry.ScanError, max(opts.ErrorBuffer, 1)),
	}
}

// Errors exposes sampled per-path failures. Unread errors are dropped once
// the buffer is full.
func (s *Scanner) Errors() <-chan entry.ScanError {
	return s.errorCh
}

// Scan enumerates root's direct children and aggregates each directory
// among them sequentially, in enumeration order. Files and symlinks at the
// top level are skipped. A stop observed mid-child ends the whole scan.
func (s *Scanner) Scan(ctx context.Context, root string, out chan<- entry.Event, stop <-chan struct{}) (entry.ScanMeta, error) {
	root = filepath.Clean(root)
	meta := entry.ScanMeta{RootPath: root, StartTime: time.Now()}

	agg := rollup.NewAggregator(rollup.Options{
		Exclude: s.opts.excluder(),
		Xdev:    s.opts.Xdev,
		Errors:  s.errorCh,
		Logf:    s.opts.aggregatorLogf(),
	})
	s.current.Store(agg)
	s.running.Store(true)
	defer s.running.Store(false)

	finish := func() entry.ScanMeta {
		p := agg.Progress()
		meta.EndTime = time.Now()
		meta.DirCount = p.Dirs
		meta.FileCount = p.Files
		meta.ErrorCount = p.Errors
		return meta
	}

	children, err := os.ReadDir(root)
	if err != nil {
		s.opts.logf("[SCANNER] ROOT-UNREADABLE root=%s err=%v", root, err)
		return finish(), fmt.Errorf("failed to read root %s: %w", root, err)
	}

	s.opts.logf("[SCANNER] START root=%s children=%d", root, len(children))
	for _, de := range children {
		if !de.IsDir() {
			continue
		}
		path := filepath.Join(root, de.Name())
		if s.opts.ShouldExclude(path) {
			s.opts.logf("[SCANNER] EXCLUDE path=%s", path)
			continue
		}

		res, err := agg.Run(ctx, path, out, stop)
		if err != nil {
			return finish(), fmt.Errorf("failed to aggregate %s: %w", path, err)
		}
		meta.TotalSize += res.Size
		if res.Stopped {
			meta.Stopped = true
			s.opts.logf("[SCANNER] STOPPED root=%s at=%s", root, path)
			break
		}
	}

	meta = finish()
	s.opts.logf("[SCANNER] DONE root=%s dirs=%d files=%d size=%d elapsed=%s",
		root, meta.DirCount, meta.FileCount, meta.TotalSize, meta.Duration())
	return meta, nil
}

// Progress returns counters of the current or most recent scan (safe for
// concurrent access). The boolean reports whether a scan is running.
func (s *Scanner) Progress() (rollup.Progress, bool) {
	agg := s.current.Load()
	if agg == nil {
		return rollup.Progress{}, false
	}
	return agg.Progress(), s.running.Load()
}
