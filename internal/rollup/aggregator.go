package rollup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/michaelscutari/bigfolders/internal/entry"
	"github.com/michaelscutari/bigfolders/internal/probe"
)

// ErrMissingChild means a directory was folded before one of its children
// finished. The stack discipline makes this unreachable; it is reported
// instead of silently under-counting.
var ErrMissingChild = errors.New("child subtree not aggregated before its parent")

// ctxCheckEvery bounds how many stack items are processed between
// context checks.
const ctxCheckEvery = 256

type phase uint8

const (
	phaseDiscover phase = iota
	phaseAggregate
)

type item struct {
	path  string
	phase phase

	// Set on aggregate items only.
	self     int64
	children []string
}

// Options tunes what the aggregator descends into.
type Options struct {
	// Exclude reports whether a path should be left out entirely.
	Exclude func(path string) bool

	// Xdev keeps the walk on the device of the aggregated root.
	Xdev bool

	// Errors receives sampled per-path failures. Sends never block.
	Errors chan<- entry.ScanError

	// Logf receives verbose traces. Nil disables them.
	Logf func(format string, args ...any)
}

// Result is the outcome of one Run.
type Result struct {
	Size    int64
	Stopped bool

	// PeakPartial is the largest number of pending subtree sizes held at
	// once during the run.
	PeakPartial int
}

// Progress holds running counters (safe for concurrent access).
type Progress struct {
	Dirs   int64
	Files  int64
	Bytes  int64
	Errors int64
}

// Aggregator computes the allocated size of every directory under a root
// with an explicit two-phase stack and emits them in post-order.
type Aggregator struct {
	opts Options

	partial map[string]int64
	stack   []item
	rootDev uint64
	peak    int

	dirs   atomic.Int64
	files  atomic.Int64
	bytes  atomic.Int64
	errors atomic.Int64
}

// NewAggregator creates an aggregator. Counters accumulate across runs.
func NewAggregator(opts Options) *Aggregator {
	return &Aggregator{opts: opts}
}

// Progress returns current counters.
func (a *Aggregator) Progress() Progress {
	return Progress{
		Dirs:   a.dirs.Load(),
		Files:  a.files.Load(),
		Bytes:  a.bytes.Load(),
		Errors: a.errors.Load(),
	}
}

// Run walks root and sends one entry per directory to out, children before
// parents. After every send it polls stop without blocking; a pending stop
// abandons the rest of the tree and returns Stopped. A cancelled ctx
// returns ctx.Err().
func (a *Aggregator) Run(ctx context.Context, root string, out chan<- entry.Event, stop <-chan struct{}) (Result, error) {
	root = filepath.Clean(root)
	a.partial = make(map[string]int64)
	a.stack = append(a.stack[:0], item{path: root, phase: phaseDiscover})
	a.peak = 0
	a.rootDev = probe.Stat(root).Dev

	a.logf("[AGGREGATOR] START root=%s", root)

	for n := 0; len(a.stack) > 0; n++ {
		if n%ctxCheckEvery == 0 && ctx.Err() != nil {
			a.reset()
			return Result{}, ctx.Err()
		}

		it := a.stack[len(a.stack)-1]
		a.stack = a.stack[:len(a.stack)-1]

		if it.phase == phaseDiscover {
			a.discover(it.path)
			continue
		}

		size, err := a.aggregate(it)
		if err != nil {
			a.reset()
			return Result{}, err
		}
		a.dirs.Add(1)

		select {
		case out <- entry.EntryEvent(entry.ScanEntry{Path: it.path, Size: size}):
		case <-ctx.Done():
			a.reset()
			return Result{}, ctx.Err()
		}

		select {
		case <-stop:
			a.logf("[AGGREGATOR] STOPPED root=%s after=%s pending=%d", root, it.path, len(a.stack))
			a.reset()
			return Result{Size: size, Stopped: true, PeakPartial: a.peak}, nil
		default:
		}
	}

	size := a.partial[root]
	delete(a.partial, root)
	if len(a.partial) > 0 {
		return Result{}, fmt.Errorf("rollup aggregator incomplete: %d subtrees pending", len(a.partial))
	}

	a.logf("[AGGREGATOR] DONE root=%s size=%d peakPartial=%d", root, size, a.peak)
	return Result{Size: size, PeakPartial: a.peak}, nil
}

func (a *Aggregator) discover(path string) {
	info := probe.Stat(path)
	if !info.OK {
		a.recordError(path, "metadata unreadable")
		a.setPartial(path, 0)
		return
	}

	if info.Kind != entry.KindDir {
		a.files.Add(1)
		a.bytes.Add(info.Allocated)
		a.setPartial(path, info.Allocated)
		return
	}

	if a.opts.Xdev && a.rootDev != 0 && info.Dev != a.rootDev {
		a.logf("[AGGREGATOR] XDEV-SKIP path=%s", path)
		a.setPartial(path, 0)
		return
	}

	dirEntries, err := os.ReadDir(path)
	if err != nil {
		// Keep whatever was read before the failure.
		a.recordError(path, err.Error())
	}

	children := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.Type()&fs.ModeSymlink != 0 {
			continue
		}
		child := filepath.Join(path, de.Name())
		if a.opts.Exclude != nil && a.opts.Exclude(child) {
			continue
		}
		children = append(children, child)
	}

	a.stack = append(a.stack, item{
		path:     path,
		phase:    phaseAggregate,
		self:     info.Allocated,
		children: children,
	})
	for _, child := range children {
		a.stack = append(a.stack, item{path: child, phase: phaseDiscover})
	}
}

// aggregate folds every recorded child into the directory's own size and
// evicts the children from the partial table.
func (a *Aggregator) aggregate(it item) (int64, error) {
	size := it.self
	for _, child := range it.children {
		childSize, ok := a.partial[child]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrMissingChild, child)
		}
		size += childSize
		delete(a.partial, child)
	}
	a.setPartial(it.path, size)
	return size, nil
}

func (a *Aggregator) setPartial(path string, size int64) {
	a.partial[path] = size
	if len(a.partial) > a.peak {
		a.peak = len(a.partial)
	}
}

func (a *Aggregator) recordError(path, message string) {
	a.errors.Add(1)
	a.logf("[AGGREGATOR] ERROR path=%s err=%s", path, message)

	// Non-blocking send - drop error if channel full (errors are sampled anyway)
	select {
	case a.opts.Errors <- entry.ScanError{Path: path, Message: message}:
	default:
	}
}

func (a *Aggregator) reset() {
	a.partial = make(map[string]int64)
	a.stack = a.stack[:0]
}

func (a *Aggregator) logf(format string, args ...any) {
	if a.opts.Logf != nil {
		a.opts.Logf(format, args...)
	}
}
