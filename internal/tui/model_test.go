package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/michaelscutari/bigfolders/internal/entry"
	"github.com/michaelscutari/bigfolders/internal/scan"
	"github.com/michaelscutari/bigfolders/internal/session"
)

type fakeControls struct {
	sent    []scan.Command
	stops   int
	sendErr error
}

func (f *fakeControls) Send(cmd scan.Command) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeControls) Stop() { f.stops++ }

func newTestModel(t *testing.T) (*Model, *fakeControls) {
	t.Helper()
	controls := &fakeControls{}
	settings := session.Settings{Visible: 2, RankEvery: 1000}
	m := NewModel(controls, nil, make(chan entry.Event), Options{
		Settings: settings,
		Home:     "/home/alice",
		CopyPath: func(string) error { return nil },
	})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return m, controls
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModelStartsScanAndRanksOnDone(t *testing.T) {
	m, controls := newTestModel(t)

	m.Update(key("c"))
	if len(controls.sent) != 1 || controls.sent[0].Mode != scan.ModeCurrentUser {
		t.Fatalf("expected a current-user command, got %+v", controls.sent)
	}
	if !m.Session().Scanning() {
		t.Fatalf("session should be scanning")
	}

	m.Update(eventsMsg{events: []entry.Event{
		entry.EntryEvent(entry.ScanEntry{Path: "/home/alice/small", Size: 10}),
		entry.EntryEvent(entry.ScanEntry{Path: "/home/alice/big", Size: 5000}),
		entry.EntryEvent(entry.ScanEntry{Path: "/home/alice/mid", Size: 300}),
		entry.DoneEvent(entry.ScanMeta{RootPath: "/home/alice", TotalSize: 5310}, nil),
	}})

	if m.Session().Scanning() {
		t.Fatalf("session should be finished")
	}
	if len(m.view) != 2 || m.view[0].Path != "/home/alice/big" || m.view[1].Path != "/home/alice/mid" {
		t.Fatalf("unexpected rows: %+v", m.view)
	}
	out := m.View()
	if !strings.Contains(out, "~/big") {
		t.Fatalf("expected home-relative paths in view:\n%s", out)
	}
	if !strings.Contains(out, "Scanned 3 folders, showing the 2 biggest ones") {
		t.Fatalf("missing status line:\n%s", out)
	}
}

func TestModelRejectsSecondScanWhileRunning(t *testing.T) {
	m, controls := newTestModel(t)

	m.Update(key("a"))
	m.Update(key("c"))

	if len(controls.sent) != 1 {
		t.Fatalf("second scan should not be sent while the first runs, got %+v", controls.sent)
	}
	if !strings.Contains(m.flash, "already running") {
		t.Fatalf("expected a please-wait message, got %q", m.flash)
	}
}

func TestModelStopKey(t *testing.T) {
	m, controls := newTestModel(t)

	m.Update(key("s"))
	if controls.stops != 0 {
		t.Fatalf("stop sent while idle")
	}

	m.Update(key("a"))
	m.Update(key("s"))
	if controls.stops != 1 {
		t.Fatalf("expected one stop, got %d", controls.stops)
	}
}

func TestModelFolderInput(t *testing.T) {
	m, controls := newTestModel(t)

	m.Update(key("o"))
	if !m.inputActive {
		t.Fatalf("expected folder input to open")
	}
	m.Update(key("~/projects"))
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if len(controls.sent) != 1 {
		t.Fatalf("expected one command, got %+v", controls.sent)
	}
	got := controls.sent[0]
	if got.Mode != scan.ModeFolder || got.Path != "/home/alice/projects" {
		t.Fatalf("unexpected command %+v", got)
	}
}

func TestModelSendFailureEndsSession(t *testing.T) {
	m, controls := newTestModel(t)
	controls.sendErr = scan.ErrCommandQueueFull

	m.Update(key("c"))

	if m.Session().Scanning() {
		t.Fatalf("session should not stay open when the command was rejected")
	}
	if !strings.Contains(m.flash, "queue is full") {
		t.Fatalf("unexpected flash %q", m.flash)
	}
}

func TestModelFocusAndCopy(t *testing.T) {
	m, _ := newTestModel(t)
	var copied string
	m.opts.CopyPath = func(s string) error { copied = s; return nil }

	m.Update(key("c"))
	m.Update(eventsMsg{events: []entry.Event{
		entry.EntryEvent(entry.ScanEntry{Path: "/home/alice/a/x", Size: 40}),
		entry.EntryEvent(entry.ScanEntry{Path: "/home/alice/a", Size: 100}),
		entry.EntryEvent(entry.ScanEntry{Path: "/home/alice/b", Size: 60}),
		entry.DoneEvent(entry.ScanMeta{RootPath: "/home/alice", TotalSize: 160}, nil),
	}})

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.focus != "/home/alice/a" || len(m.view) != 1 || m.view[0].Path != "/home/alice/a/x" {
		t.Fatalf("unexpected focus %q rows %+v", m.focus, m.view)
	}

	m.Update(key("y"))
	if copied != "/home/alice/a/x" {
		t.Fatalf("copied %q", copied)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	if m.focus != "" || len(m.view) != 2 {
		t.Fatalf("focus not cleared: %q %+v", m.focus, m.view)
	}
}

func TestModelFocusRanksUnsortedTailWhileScanning(t *testing.T) {
	m, _ := newTestModel(t)
	m.Update(key("c"))
	m.focus = "/home/alice/a"

	m.Update(eventsMsg{events: []entry.Event{
		entry.EntryEvent(entry.ScanEntry{Path: "/home/alice/a/x", Size: 10}),
		entry.EntryEvent(entry.ScanEntry{Path: "/home/alice/a/y", Size: 50}),
		entry.EntryEvent(entry.ScanEntry{Path: "/home/alice/b", Size: 90}),
		entry.EntryEvent(entry.ScanEntry{Path: "/home/alice/a/z", Size: 30}),
	}})

	if !m.Session().Scanning() {
		t.Fatalf("session should still be scanning")
	}
	if len(m.view) != 2 || m.view[0].Path != "/home/alice/a/y" || m.view[1].Path != "/home/alice/a/z" {
		t.Fatalf("expected the two biggest under the focus, got %+v", m.view)
	}
}

func TestModelShowsScanError(t *testing.T) {
	m, _ := newTestModel(t)
	m.Update(key("c"))
	m.Update(eventsMsg{events: []entry.Event{entry.DoneEvent(entry.ScanMeta{}, errors.New("home directory unavailable"))}})

	if !strings.Contains(m.View(), "home directory unavailable") {
		t.Fatalf("error not rendered")
	}
}

func TestWaitForEventsBatches(t *testing.T) {
	events := make(chan entry.Event, 4)
	events <- entry.EntryEvent(entry.ScanEntry{Path: "/a"})
	events <- entry.EntryEvent(entry.ScanEntry{Path: "/b"})
	events <- entry.DoneEvent(entry.ScanMeta{}, nil)
	events <- entry.EntryEvent(entry.ScanEntry{Path: "/next-scan"})

	m := NewModel(&fakeControls{}, nil, events, Options{})
	done := make(chan tea.Msg, 1)
	go func() { done <- m.waitForEvents()() }()

	select {
	case msg := <-done:
		batch := msg.(eventsMsg)
		if len(batch.events) != 3 || batch.events[2].Kind != entry.EventDone {
			t.Fatalf("batch should end at done, got %+v", batch.events)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("waitForEvents blocked")
	}
}
