package session

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/michaelscutari/bigfolders/internal/entry"
)

func fixedLookup(calls *int) func(string) (time.Time, bool) {
	return func(string) (time.Time, bool) {
		*calls++
		return time.Unix(1700000000, 0), true
	}
}

func TestSessionRanksEveryN(t *testing.T) {
	var calls int
	s := New(Settings{Visible: 2, ShowAccessed: true, RankEvery: 3, Lookup: fixedLookup(&calls)})
	if err := s.Begin("/data"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	if s.Append(entry.ScanEntry{Path: "/data/a", Size: 1}) {
		t.Fatalf("ranked too early")
	}
	s.Append(entry.ScanEntry{Path: "/data/b", Size: 5})
	if !s.Append(entry.ScanEntry{Path: "/data/c", Size: 3}) {
		t.Fatalf("expected a re-rank on the third entry")
	}

	top := s.Top()
	if len(top) != 2 || top[0].Path != "/data/b" || top[1].Path != "/data/c" {
		t.Fatalf("unexpected top: %+v", top)
	}
	if calls != 2 || !top[0].HasAccessed() {
		t.Fatalf("expected access times for the visible entries only, got %d lookups", calls)
	}
	if s.Entries()[2].HasAccessed() {
		t.Fatalf("hidden entry was enriched")
	}
}

func TestSessionFinishRanksUnconditionally(t *testing.T) {
	s := New(Settings{Visible: 5, RankEvery: 1000})
	s.Begin("/")
	s.Apply(entry.EntryEvent(entry.ScanEntry{Path: "/a", Size: 1}))
	s.Apply(entry.EntryEvent(entry.ScanEntry{Path: "/b", Size: 2}))

	s.Apply(entry.DoneEvent(entry.ScanMeta{RootPath: "/", DirCount: 2}, nil))

	if s.Scanning() {
		t.Fatalf("session still scanning after done")
	}
	if s.Top()[0].Path != "/b" {
		t.Fatalf("expected /b first after done, got %+v", s.Top())
	}
	if s.Meta().DirCount != 2 {
		t.Fatalf("meta not recorded: %+v", s.Meta())
	}
}

func TestSessionRejectsConcurrentScan(t *testing.T) {
	s := New(DefaultSettings())
	if err := s.Begin("/home"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := s.Begin("/tmp"); !errors.Is(err, ErrScanInProgress) {
		t.Fatalf("expected ErrScanInProgress, got %v", err)
	}
	s.Finish(entry.ScanMeta{}, nil)
	if err := s.Begin("/tmp"); err != nil {
		t.Fatalf("begin after finish: %v", err)
	}
}

func TestSessionBeginClearsResults(t *testing.T) {
	s := New(Settings{ShowAccessed: false})
	s.Begin("/one")
	s.Append(entry.ScanEntry{Path: "/one/x", Size: 9})
	s.Finish(entry.ScanMeta{}, errors.New("boom"))

	s.Begin("/two")
	if s.Len() != 0 || s.Err() != nil || s.Label() != "/two" {
		t.Fatalf("expected a clean session, got len=%d err=%v label=%s", s.Len(), s.Err(), s.Label())
	}
}

func TestSessionStatus(t *testing.T) {
	s := New(Settings{Visible: 20, ShowAccessed: false})
	s.Begin("/")
	for i := 0; i < 25; i++ {
		s.Append(entry.ScanEntry{Path: fmt.Sprintf("/d%d", i), Size: int64(i)})
	}
	s.Finish(entry.ScanMeta{}, nil)

	if got, want := s.Status(), "Scanned 25 folders, showing the 20 biggest ones"; got != want {
		t.Fatalf("status %q, want %q", got, want)
	}
}

func TestSessionSetVisibleEnrichesNewRows(t *testing.T) {
	var calls int
	s := New(Settings{Visible: 1, ShowAccessed: true, Lookup: fixedLookup(&calls)})
	s.Begin("/")
	s.Append(entry.ScanEntry{Path: "/a", Size: 2})
	s.Append(entry.ScanEntry{Path: "/b", Size: 1})
	s.Finish(entry.ScanMeta{}, nil)
	if calls != 1 {
		t.Fatalf("expected one lookup, got %d", calls)
	}

	s.SetVisible(2)
	if calls != 2 || !s.Top()[1].HasAccessed() {
		t.Fatalf("expected the newly visible row to be enriched")
	}
}
