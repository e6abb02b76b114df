package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/michaelscutari/bigfolders/internal/scan"
	"github.com/michaelscutari/bigfolders/internal/session"
	"github.com/michaelscutari/bigfolders/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Watch the biggest folders update live",
	Long: `Open an interactive view that ranks folders while they are scanned.
Start scans from inside the view, stop them, copy paths and export CSV.`,
	RunE: runTUI,
}

var (
	tuiRoots     tuiFlags
	tuiRankEvery int
	tuiExportDir string
	tuiLogFile   string
)

// tuiFlags adds the choice of scanning immediately.
type tuiFlags struct {
	rootFlags
	idle bool
}

func init() {
	tuiCmd.Flags().BoolVar(&tuiRoots.allUsers, "all-users", false, "Start by scanning every home directory next to yours")
	tuiCmd.Flags().StringVarP(&tuiRoots.path, "path", "p", "", "Start by scanning this folder")
	tuiCmd.Flags().BoolVar(&tuiRoots.idle, "idle", false, "Don't start a scan until asked")
	tuiCmd.Flags().StringSliceVarP(&tuiRoots.exclude, "exclude", "e", nil, "Regex patterns to exclude (can be repeated)")
	tuiCmd.Flags().BoolVar(&tuiRoots.xdev, "xdev", false, "Don't cross filesystem boundaries")
	tuiCmd.Flags().BoolVarP(&tuiRoots.verbose, "verbose", "v", false, "Write scan traces to the log file")
	tuiCmd.Flags().IntVarP(&tuiRoots.top, "top", "n", 20, "Number of folders to show")
	tuiCmd.Flags().BoolVar(&tuiRoots.accessed, "accessed", true, "Show last access times")
	tuiCmd.Flags().BoolVar(&tuiRoots.rawSizes, "raw-sizes", false, "Export sizes in bytes")
	tuiCmd.Flags().IntVar(&tuiRankEvery, "rank-every", 1000, "Re-rank after this many folders")
	tuiCmd.Flags().StringVar(&tuiExportDir, "export-dir", ".", "Directory for CSV exports")
	tuiCmd.Flags().StringVar(&tuiLogFile, "log-file", "", "Trace file for --verbose (default: a temp file)")
}

func runTUI(cmd *cobra.Command, args []string) error {
	var initial *scan.Command
	if !tuiRoots.idle {
		c, err := tuiRoots.command()
		if err != nil {
			return err
		}
		initial = &c
	}

	// Traces would corrupt the screen, so they go to a file.
	logOutput := os.Stderr
	if tuiRoots.verbose {
		f, err := openTraceFile(tuiLogFile)
		if err != nil {
			return err
		}
		defer f.Close()
		logOutput = f
		fmt.Fprintf(os.Stderr, "Writing scan traces to %s\n", f.Name())
	}

	opts, err := tuiRoots.options(logOutput)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := scan.NewEngine(opts)
	controls, events := engine.Start(ctx)

	model := tui.NewModel(controls, engine, events, tui.Options{
		Settings: session.Settings{
			Visible:      tuiRoots.top,
			ShowAccessed: tuiRoots.accessed,
			RankEvery:    tuiRankEvery,
		},
		Initial:    initial,
		Home:       userHome(),
		ExportDir:  tuiExportDir,
		SizeFormat: tuiRoots.sizeFormat(),
	})
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

func openTraceFile(path string) (*os.File, error) {
	if path == "" {
		f, err := os.CreateTemp("", "bigfolders-*.log")
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		return f, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}
