// Package session holds the consumer side of a scan: the accumulated
// results and when to re-rank them.
package session

import (
	"errors"
	"fmt"

	"github.com/michaelscutari/bigfolders/internal/entry"
	"github.com/michaelscutari/bigfolders/internal/rank"
)

// ErrScanInProgress is returned when a scan is started while another one
// has not finished.
var ErrScanInProgress = errors.New("a scan is already in progress, please wait")

// Settings control what a session keeps visible.
type Settings struct {
	// Visible is how many of the biggest entries are shown.
	Visible int

	// ShowAccessed resolves access times for the visible entries.
	ShowAccessed bool

	// RankEvery re-ranks after this many appended entries.
	RankEvery int

	// Lookup resolves access times. Nil uses the filesystem.
	Lookup rank.AccessLookup
}

// DefaultSettings returns the defaults used by the CLI and TUI.
func DefaultSettings() Settings {
	return Settings{Visible: 20, ShowAccessed: true, RankEvery: 1000}
}

// Session accumulates the results of one scan. It is not safe for
// concurrent use; it belongs to the goroutine consuming events.
type Session struct {
	settings Settings
	label    string
	entries  []entry.ScanEntry
	pending  int
	scanning bool
	meta     entry.ScanMeta
	err      error
}

// New creates an idle session.
func New(settings Settings) *Session {
	if settings.Visible <= 0 {
		settings.Visible = 20
	}
	if settings.RankEvery <= 0 {
		settings.RankEvery = 1000
	}
	return &Session{settings: settings}
}

// Begin clears previous results and marks a scan as running.
func (s *Session) Begin(label string) error {
	if s.scanning {
		return ErrScanInProgress
	}
	s.label = label
	s.entries = s.entries[:0]
	s.pending = 0
	s.meta = entry.ScanMeta{}
	s.err = nil
	s.scanning = true
	return nil
}

// Append adds one result and reports whether the list was re-ranked.
func (s *Session) Append(e entry.ScanEntry) bool {
	s.entries = append(s.entries, e)
	s.pending++
	if s.pending < s.settings.RankEvery {
		return false
	}
	s.rerank()
	return true
}

// Finish ends the scan with its summary and ranks unconditionally.
func (s *Session) Finish(meta entry.ScanMeta, err error) {
	s.meta = meta
	s.err = err
	s.scanning = false
	s.rerank()
}

// Apply routes an engine event and reports whether the ranking changed.
func (s *Session) Apply(ev entry.Event) bool {
	if ev.Kind == entry.EventDone {
		s.Finish(ev.Meta, ev.Err)
		return true
	}
	return s.Append(ev.Entry)
}

func (s *Session) rerank() {
	s.pending = 0
	rank.Rerank(s.entries)
	if s.settings.ShowAccessed {
		rank.Enrich(s.entries, s.settings.Visible, s.settings.Lookup)
	}
}

// Top returns the visible slice of the ranking as of the last re-rank.
func (s *Session) Top() []entry.ScanEntry {
	return s.entries[:min(s.settings.Visible, len(s.entries))]
}

// Entries returns every result in current order.
func (s *Session) Entries() []entry.ScanEntry {
	return s.entries
}

// Len returns the number of results so far.
func (s *Session) Len() int { return len(s.entries) }

// Scanning reports whether a scan is running.
func (s *Session) Scanning() bool { return s.scanning }

// Label names the root of the current or last scan.
func (s *Session) Label() string { return s.label }

// Meta returns the summary of the last finished scan.
func (s *Session) Meta() entry.ScanMeta { return s.meta }

// Err returns the failure of the last finished scan, if any.
func (s *Session) Err() error { return s.err }

// Settings returns the current display settings.
func (s *Session) Settings() Settings { return s.settings }

// SetVisible changes how many entries are shown. Newly visible entries
// get their access times on the next re-rank.
func (s *Session) SetVisible(n int) {
	if n > 0 {
		s.settings.Visible = n
	}
	if !s.scanning && s.settings.ShowAccessed {
		rank.Enrich(s.entries, s.settings.Visible, s.settings.Lookup)
	}
}

// SetShowAccessed toggles access time resolution.
func (s *Session) SetShowAccessed(show bool) {
	s.settings.ShowAccessed = show
	if show && !s.scanning {
		rank.Enrich(s.entries, s.settings.Visible, s.settings.Lookup)
	}
}

// Status is the one-line summary shown under the results.
func (s *Session) Status() string {
	return fmt.Sprintf("Scanned %d folders, showing the %d biggest ones", len(s.entries), len(s.Top()))
}
