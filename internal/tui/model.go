package tui

import (
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/michaelscutari/bigfolders/internal/entry"
	"github.com/michaelscutari/bigfolders/internal/export"
	"github.com/michaelscutari/bigfolders/internal/pathutil"
	"github.com/michaelscutari/bigfolders/internal/probe"
	"github.com/michaelscutari/bigfolders/internal/rank"
	"github.com/michaelscutari/bigfolders/internal/rollup"
	"github.com/michaelscutari/bigfolders/internal/scan"
	"github.com/michaelscutari/bigfolders/internal/session"
)

// maxEventsPerBatch bounds how many queued events one update consumes.
const maxEventsPerBatch = 512

// Controller sends commands to a running scan engine.
type Controller interface {
	Send(cmd scan.Command) error
	Stop()
}

// ProgressSource reports live scan counters.
type ProgressSource interface {
	Progress() (rollup.Progress, bool)
}

// Options configure the live view.
type Options struct {
	Settings session.Settings

	// Initial, when set, is sent as soon as the program starts.
	Initial *scan.Command

	// Home shortens displayed paths to ~. Empty disables it.
	Home string

	// ExportDir receives CSV exports. Defaults to the working directory.
	ExportDir  string
	SizeFormat export.SizeFormat

	// CopyPath puts text on the clipboard. Defaults to the system clipboard.
	CopyPath func(string) error
}

// Model holds the TUI state.
type Model struct {
	controls Controller
	progress ProgressSource
	events   <-chan entry.Event
	session  *session.Session
	opts     Options

	cursor  int
	width   int
	height  int
	focus   string // Show only entries under this path
	view    []entry.ScanEntry
	live    rollup.Progress
	volume  *probe.VolumeUsage
	flash   string
	err     error
	closed  bool
	spinner spinner.Model

	input       textinput.Model
	inputActive bool
}

// NewModel creates a new TUI model reading from a started engine.
func NewModel(controls Controller, progress ProgressSource, events <-chan entry.Event, opts Options) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	ti := textinput.New()
	ti.Placeholder = "/path/to/folder"
	ti.Prompt = "Folder: "
	ti.CharLimit = 4096

	if opts.CopyPath == nil {
		opts.CopyPath = copyToClipboard
	}

	return &Model{
		controls: controls,
		progress: progress,
		events:   events,
		session:  session.New(opts.Settings),
		opts:     opts,
		spinner:  s,
		input:    ti,
	}
}

// Session exposes the accumulated results.
func (m *Model) Session() *session.Session {
	return m.session
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitForEvents(), m.spinner.Tick, tickProgress()}
	if m.opts.Initial != nil {
		cmds = append(cmds, func() tea.Msg { return startMsg{cmd: *m.opts.Initial} })
	}
	return tea.Batch(cmds...)
}

type startMsg struct {
	cmd scan.Command
}

type eventsMsg struct {
	events []entry.Event
	closed bool
}

type progressTickMsg time.Time

type volumeMsg struct {
	usage probe.VolumeUsage
	err   error
}

type exportedMsg struct {
	path string
	rows int
	err  error
}

// waitForEvents blocks for one event and then takes whatever else is
// already queued, so a fast scan does not cost one redraw per folder.
func (m *Model) waitForEvents() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsMsg{closed: true}
		}
		batch := []entry.Event{ev}
		for len(batch) < maxEventsPerBatch {
			select {
			case ev, ok := <-events:
				if !ok {
					return eventsMsg{events: batch, closed: true}
				}
				batch = append(batch, ev)
				if ev.Kind == entry.EventDone {
					return eventsMsg{events: batch}
				}
			default:
				return eventsMsg{events: batch}
			}
		}
		return eventsMsg{events: batch}
	}
}

func tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return progressTickMsg(t)
	})
}

func loadVolume(path string) tea.Cmd {
	return func() tea.Msg {
		usage, err := probe.Volume(path)
		return volumeMsg{usage: usage, err: err}
	}
}

func (m *Model) exportCSV() tea.Cmd {
	entries := append([]entry.ScanEntry(nil), m.session.Entries()...)
	dir := m.opts.ExportDir
	format := m.opts.SizeFormat
	return func() tea.Msg {
		path := filepath.Join(dir, export.DefaultFilename(time.Now()))
		rows, err := export.WriteFile(path, entries, format)
		return exportedMsg{path: path, rows: rows, err: err}
	}
}

func (m *Model) helpLine() string {
	if m.inputActive {
		return "Enter: scan folder | Esc: cancel"
	}
	return "c: current user | a: all users | o: folder | s: stop | e: export | y: copy path | t: access times | +/-: rows | enter/⌫: focus | q: quit"
}

// refreshView rebuilds the visible rows from the session and the focus.
func (m *Model) refreshView() {
	if m.focus == "" {
		m.view = m.session.Top()
	} else {
		settings := m.session.Settings()
		m.view = m.view[:0:0]
		for _, e := range m.session.Entries() {
			if e.Path != m.focus && pathutil.Within(e.Path, m.focus) {
				m.view = append(m.view, e)
			}
		}
		// Entries since the last rerank sit unsorted at the tail.
		m.view = rank.Rerank(m.view)
		if settings.Visible > 0 && len(m.view) > settings.Visible {
			m.view = m.view[:settings.Visible]
		}
		if settings.ShowAccessed && !m.session.Scanning() {
			rank.Enrich(m.view, len(m.view), settings.Lookup)
		}
	}
	if m.cursor >= len(m.view) {
		m.cursor = max(len(m.view)-1, 0)
	}
}
