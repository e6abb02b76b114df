package rollup

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/michaelscutari/bigfolders/internal/entry"
	"github.com/michaelscutari/bigfolders/internal/probe"
)

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte("x"), size), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func mkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}

// buildTree creates:
//
//	root/a/one (5000)
//	root/a/nested/two (12000)
//	root/b/ (empty)
//	root/c/three (1)
//	root/top (300)
func buildTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "one"), 5000)
	writeFile(t, filepath.Join(root, "a", "nested", "two"), 12000)
	mkdir(t, filepath.Join(root, "b"))
	writeFile(t, filepath.Join(root, "c", "three"), 1)
	writeFile(t, filepath.Join(root, "top"), 300)
	return root
}

// walkTotal sums the allocation of everything under root without following
// symlinks, using fastwalk as an independent walker.
func walkTotal(t *testing.T, root string) int64 {
	t.Helper()
	var total atomic.Int64
	err := fastwalk.Walk(&fastwalk.Config{Follow: false}, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == root || d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		total.Add(probe.Allocated(path))
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	return total.Load() + probe.Allocated(root)
}

func runAggregator(t *testing.T, opts Options, root string, stop <-chan struct{}) (Result, []entry.ScanEntry) {
	t.Helper()
	out := make(chan entry.Event, 4096)
	res, err := NewAggregator(opts).Run(context.Background(), root, out, stop)
	if err != nil {
		t.Fatalf("run aggregator: %v", err)
	}
	close(out)

	var entries []entry.ScanEntry
	for ev := range out {
		if ev.Kind != entry.EventEntry {
			t.Fatalf("unexpected event kind %s", ev.Kind)
		}
		entries = append(entries, ev.Entry)
	}
	return res, entries
}

func sizesByPath(entries []entry.ScanEntry) map[string]int64 {
	m := make(map[string]int64, len(entries))
	for _, e := range entries {
		m[e.Path] = e.Size
	}
	return m
}

func TestAggregatorMatchesWalkTotals(t *testing.T) {
	root := buildTree(t)

	res, entries := runAggregator(t, Options{}, root, nil)

	if want := walkTotal(t, root); res.Size != want {
		t.Fatalf("root size %d, want %d", res.Size, want)
	}
	sizes := sizesByPath(entries)
	if sizes[root] != res.Size {
		t.Fatalf("root entry %d disagrees with result %d", sizes[root], res.Size)
	}
	for _, dir := range []string{"a", "b", "c", filepath.Join("a", "nested")} {
		path := filepath.Join(root, dir)
		if want := walkTotal(t, path); sizes[path] != want {
			t.Fatalf("size of %s = %d, want %d", dir, sizes[path], want)
		}
	}
	if sizes[filepath.Join(root, "a")] < 17000 {
		t.Fatalf("expected a to hold at least its file bytes, got %d", sizes[filepath.Join(root, "a")])
	}
}

func TestAggregatorEmitsPostOrder(t *testing.T) {
	root := buildTree(t)

	_, entries := runAggregator(t, Options{}, root, nil)

	if len(entries) != 5 {
		t.Fatalf("expected 5 directory entries, got %d: %+v", len(entries), entries)
	}
	seen := make(map[string]int)
	for i, e := range entries {
		if _, dup := seen[e.Path]; dup {
			t.Fatalf("%s emitted twice", e.Path)
		}
		seen[e.Path] = i
	}
	for i, e := range entries {
		prefix := e.Path + string(filepath.Separator)
		for j, other := range entries {
			if strings.HasPrefix(other.Path, prefix) && j > i {
				t.Fatalf("%s emitted after its ancestor %s", other.Path, e.Path)
			}
		}
	}
	if entries[len(entries)-1].Path != root {
		t.Fatalf("expected root last, got %s", entries[len(entries)-1].Path)
	}
}

func TestAggregatorSkipsSymlinkCycle(t *testing.T) {
	root := buildTree(t)
	if err := os.Symlink(root, filepath.Join(root, "a", "nested", "loop")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if err := os.Symlink(filepath.Join(root, "a", "one"), filepath.Join(root, "c", "alias")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	want := walkTotal(t, root)

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := NewAggregator(Options{}).Run(context.Background(), root, make(chan entry.Event, 64), nil)
		done <- outcome{res, err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			t.Fatalf("run: %v", o.err)
		}
		if o.res.Size != want {
			t.Fatalf("symlinks changed the total: %d, want %d", o.res.Size, want)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("aggregator did not terminate on a symlink cycle")
	}
}

func TestAggregatorStopsAfterEmission(t *testing.T) {
	root := buildTree(t)
	stop := make(chan struct{}, 1)
	stop <- struct{}{}

	res, entries := runAggregator(t, Options{}, root, stop)

	if !res.Stopped {
		t.Fatalf("expected stopped result")
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one entry before stopping, got %d", len(entries))
	}
	if entries[0].Path == root {
		t.Fatalf("root should not complete after an early stop")
	}
}

func TestAggregatorEmptyDirectory(t *testing.T) {
	root := t.TempDir()

	res, entries := runAggregator(t, Options{}, root, nil)

	if len(entries) != 1 || entries[0].Path != root {
		t.Fatalf("expected only the root entry, got %+v", entries)
	}
	if want := probe.Allocated(root); res.Size != want {
		t.Fatalf("empty dir size %d, want its own allocation %d", res.Size, want)
	}
}

func TestAggregatorUnreadableDirectory(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced here")
	}
	root := t.TempDir()
	locked := filepath.Join(root, "locked")
	writeFile(t, filepath.Join(locked, "secret"), 40000)
	if err := os.Chmod(locked, 0); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(locked, 0755) })

	errCh := make(chan entry.ScanError, 4)
	_, entries := runAggregator(t, Options{Errors: errCh}, root, nil)

	sizes := sizesByPath(entries)
	if got, want := sizes[locked], probe.Allocated(locked); got != want {
		t.Fatalf("unreadable dir size %d, want its own allocation %d", got, want)
	}
	select {
	case se := <-errCh:
		if se.Path != locked {
			t.Fatalf("unexpected error path %s", se.Path)
		}
	default:
		t.Fatalf("expected a sampled scan error")
	}
}

func TestAggregatorDeepTreeKeepsPartialTableSmall(t *testing.T) {
	root := t.TempDir()
	path := root
	const depth = 300
	for i := 0; i < depth; i++ {
		path = filepath.Join(path, "d")
	}
	writeFile(t, filepath.Join(path, "leaf"), 10)

	res, entries := runAggregator(t, Options{}, root, nil)

	if len(entries) != depth+1 {
		t.Fatalf("expected %d entries, got %d", depth+1, len(entries))
	}
	if res.PeakPartial > 3 {
		t.Fatalf("partial table grew to %d on a single chain", res.PeakPartial)
	}
}

func TestAggregatorExcludes(t *testing.T) {
	root := buildTree(t)
	skipped := filepath.Join(root, "a")
	opts := Options{Exclude: func(path string) bool { return path == skipped }}

	res, entries := runAggregator(t, opts, root, nil)

	for _, e := range entries {
		if strings.HasPrefix(e.Path, skipped) {
			t.Fatalf("excluded path emitted: %s", e.Path)
		}
	}
	if want := walkTotal(t, root) - walkTotal(t, skipped); res.Size != want {
		t.Fatalf("size %d, want %d", res.Size, want)
	}
}

func TestAggregatorHonoursCancelledContext(t *testing.T) {
	root := buildTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewAggregator(Options{}).Run(ctx, root, make(chan entry.Event, 16), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestAggregatorProgressCounters(t *testing.T) {
	root := buildTree(t)
	agg := NewAggregator(Options{})

	if _, err := agg.Run(context.Background(), root, make(chan entry.Event, 16), nil); err != nil {
		t.Fatalf("run: %v", err)
	}

	p := agg.Progress()
	if p.Dirs != 5 || p.Files != 4 {
		t.Fatalf("unexpected progress: %+v", p)
	}
}
