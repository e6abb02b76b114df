package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/michaelscutari/bigfolders/internal/entry"
)

func TestIngesterRecordsScan(t *testing.T) {
	database := openMemory(t)

	events := make(chan entry.Event, 8)
	errs := make(chan entry.ScanError, 4)
	ing := NewIngester(database, "/data", events, errs, 2, 1000, 0, nil)

	events <- entry.EntryEvent(entry.ScanEntry{Path: "/data/a/x", Size: 10})
	events <- entry.EntryEvent(entry.ScanEntry{Path: "/data/a", Size: 30})
	events <- entry.EntryEvent(entry.ScanEntry{Path: "/data/b", Size: 5})
	errs <- entry.ScanError{Path: "/data/a/locked", Message: "permission denied"}
	events <- entry.DoneEvent(entry.ScanMeta{RootPath: "/data", StartTime: time.Unix(100, 0), TotalSize: 35, DirCount: 3}, nil)

	if err := ing.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	rows, err := LoadTop(database, Query{Sort: "seq"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 3 || rows[0].Path != "/data/a/x" || rows[0].Depth != 2 || rows[1].Depth != 1 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if p := ing.Progress(); p.Dirs != 3 || p.TotalBytes != 35 {
		t.Fatalf("unexpected progress: %+v", p)
	}

	meta, err := GetScanMeta(database)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.TotalSize != 35 || meta.DirCount != 3 {
		t.Fatalf("unexpected meta: %+v", meta)
	}

	sampled, err := LoadErrors(database, 10)
	if err != nil {
		t.Fatalf("errors: %v", err)
	}
	if len(sampled) != 1 || sampled[0].Path != "/data/a/locked" {
		t.Fatalf("unexpected errors: %+v", sampled)
	}
}

func TestIngesterStampsBiggestFoldersWithAccessTime(t *testing.T) {
	database := openMemory(t)

	events := make(chan entry.Event, 8)
	ing := NewIngester(database, "/data", events, nil, 10, 1000, 0, nil)
	at := time.Unix(1700000000, 0)
	var looked []string
	ing.SetAccessed(2, func(path string) (time.Time, bool) {
		looked = append(looked, path)
		return at, true
	})

	events <- entry.EntryEvent(entry.ScanEntry{Path: "/data/a", Size: 30})
	events <- entry.EntryEvent(entry.ScanEntry{Path: "/data/b", Size: 5})
	events <- entry.EntryEvent(entry.ScanEntry{Path: "/data/c", Size: 20})
	events <- entry.DoneEvent(entry.ScanMeta{RootPath: "/data", TotalSize: 55, DirCount: 3}, nil)

	if err := ing.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(looked) != 2 || looked[0] != "/data/a" || looked[1] != "/data/c" {
		t.Fatalf("expected lookups for the two biggest folders, got %v", looked)
	}

	rows, err := LoadTop(database, Query{Sort: "path"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if !rows[0].Accessed.Equal(at) || !rows[1].Accessed.IsZero() || !rows[2].Accessed.Equal(at) {
		t.Fatalf("unexpected access times: %+v", rows)
	}

	oldest, err := LoadTop(database, Query{Sort: "accessed", Limit: 1})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(oldest) != 1 || oldest[0].Accessed.IsZero() {
		t.Fatalf("accessed sort should put resolved rows first: %+v", oldest)
	}
}

func TestIngesterStopsOnMaxErrors(t *testing.T) {
	database := openMemory(t)

	events := make(chan entry.Event, 1)
	errs := make(chan entry.ScanError, 1)
	stopped := make(chan struct{})
	ing := NewIngester(database, "/", events, errs, 10, 10, 1, func() { close(stopped) })

	done := make(chan error, 1)
	go func() {
		done <- ing.Run(context.Background())
	}()

	errs <- entry.ScanError{Path: "/bad", Message: "boom"}

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected the max-errors callback")
	}

	events <- entry.DoneEvent(entry.ScanMeta{RootPath: "/", Stopped: true}, nil)
	if err := <-done; err != nil {
		t.Fatalf("ingester error: %v", err)
	}
	if ing.ErrorCount() != 1 {
		t.Fatalf("expected error count 1, got %d", ing.ErrorCount())
	}
}

func TestIngesterReportsIncompleteStream(t *testing.T) {
	database := openMemory(t)

	events := make(chan entry.Event, 1)
	events <- entry.EntryEvent(entry.ScanEntry{Path: "/x/y", Size: 1})
	close(events)

	err := NewIngester(database, "/x", events, nil, 10, 1000, 0, nil).Run(context.Background())
	if !errors.Is(err, ErrScanIncomplete) {
		t.Fatalf("expected ErrScanIncomplete, got %v", err)
	}
}

func TestIngesterPropagatesScanFailure(t *testing.T) {
	database := openMemory(t)

	events := make(chan entry.Event, 1)
	boom := errors.New("root unreadable")
	events <- entry.DoneEvent(entry.ScanMeta{}, boom)

	err := NewIngester(database, "/x", events, nil, 10, 1000, 0, nil).Run(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected scan failure, got %v", err)
	}
}
