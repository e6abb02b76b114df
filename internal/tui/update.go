package tui

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/michaelscutari/bigfolders/internal/entry"
	"github.com/michaelscutari/bigfolders/internal/scan"
	"github.com/michaelscutari/bigfolders/internal/session"
)

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.inputActive {
			return m.handleInputKey(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-12, 20)
		return m, nil

	case startMsg:
		return m, m.start(msg.cmd)

	case eventsMsg:
		var cmd tea.Cmd
		for _, ev := range msg.events {
			m.session.Apply(ev)
			if ev.Kind == entry.EventDone {
				cmd = m.finished(ev)
			}
		}
		m.refreshView()
		if msg.closed {
			m.closed = true
			return m, cmd
		}
		return m, tea.Batch(cmd, m.waitForEvents())

	case progressTickMsg:
		if m.progress != nil {
			m.live, _ = m.progress.Progress()
		}
		if m.closed {
			return m, nil
		}
		return m, tickProgress()

	case volumeMsg:
		if msg.err == nil {
			usage := msg.usage
			m.volume = &usage
		}
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.flash = fmt.Sprintf("Export failed: %v", msg.err)
		} else {
			m.flash = fmt.Sprintf("Exported %d folders to %s", msg.rows, msg.path)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// start clears the session and asks the engine for a new scan.
func (m *Model) start(cmd scan.Command) tea.Cmd {
	label := cmd.Mode.String()
	if cmd.Mode == scan.ModeFolder {
		label = cmd.Path
	}
	if err := m.session.Begin(label); err != nil {
		if errors.Is(err, session.ErrScanInProgress) {
			m.flash = "A scan is already running. Press s to stop it first."
		} else {
			m.flash = err.Error()
		}
		return nil
	}
	if err := m.controls.Send(cmd); err != nil {
		m.session.Finish(entry.ScanMeta{}, err)
		m.flash = fmt.Sprintf("Could not start scan: %v", err)
		return nil
	}
	m.focus = ""
	m.cursor = 0
	m.flash = ""
	m.err = nil
	m.volume = nil
	m.refreshView()
	return nil
}

func (m *Model) finished(ev entry.Event) tea.Cmd {
	if ev.Err != nil {
		m.err = ev.Err
		return nil
	}
	if ev.Meta.Stopped {
		m.flash = "Scan stopped"
	}
	if ev.Meta.RootPath == "" {
		return nil
	}
	return loadVolume(ev.Meta.RootPath)
}

func (m *Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.controls.Stop()
		return m, tea.Quit

	case "esc":
		m.inputActive = false
		m.input.Blur()
		m.input.SetValue("")
		return m, nil

	case "enter":
		path := strings.TrimSpace(m.input.Value())
		m.inputActive = false
		m.input.Blur()
		m.input.SetValue("")
		if path == "" {
			return m, nil
		}
		if abs, err := filepath.Abs(expandHome(path, m.opts.Home)); err == nil {
			path = abs
		}
		return m, m.start(scan.FolderSelected(path))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.Stop()
		return m, tea.Quit

	case "c":
		return m, m.start(scan.CurrentUser())

	case "a":
		return m, m.start(scan.AllUsers())

	case "o":
		m.inputActive = true
		return m, m.input.Focus()

	case "s", "esc":
		if m.session.Scanning() {
			m.controls.Stop()
			m.flash = "Stopping..."
		}
		return m, nil

	case "e":
		if m.session.Len() == 0 {
			m.flash = "Nothing to export yet"
			return m, nil
		}
		return m, m.exportCSV()

	case "y":
		if sel, ok := m.selected(); ok {
			if err := m.opts.CopyPath(sel.Path); err != nil {
				m.flash = err.Error()
			} else {
				m.flash = "Copied " + sel.Path
			}
		}
		return m, nil

	case "t":
		m.session.SetShowAccessed(!m.session.Settings().ShowAccessed)
		m.refreshView()
		return m, nil

	case "+", "=":
		m.session.SetVisible(m.session.Settings().Visible + 5)
		m.refreshView()
		return m, nil

	case "-":
		m.session.SetVisible(max(m.session.Settings().Visible-5, 5))
		m.refreshView()
		return m, nil

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case "down", "j":
		if m.cursor < len(m.view)-1 {
			m.cursor++
		}
		return m, nil

	case "enter", "l", "right":
		if sel, ok := m.selected(); ok {
			m.focus = sel.Path
			m.cursor = 0
			m.refreshView()
		}
		return m, nil

	case "backspace", "h", "left":
		if m.focus != "" {
			m.focus = ""
			m.cursor = 0
			m.refreshView()
		}
		return m, nil

	case "home", "g":
		m.cursor = 0
		return m, nil

	case "end", "G":
		if len(m.view) > 0 {
			m.cursor = len(m.view) - 1
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) selected() (entry.ScanEntry, bool) {
	if m.cursor < 0 || m.cursor >= len(m.view) {
		return entry.ScanEntry{}, false
	}
	return m.view[m.cursor], true
}

func expandHome(path, home string) string {
	if home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	if after, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(home, after)
	}
	return path
}
