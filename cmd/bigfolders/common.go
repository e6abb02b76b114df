package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/mattn/go-isatty"

	"github.com/michaelscutari/bigfolders/internal/entry"
	"github.com/michaelscutari/bigfolders/internal/export"
	"github.com/michaelscutari/bigfolders/internal/pathutil"
	"github.com/michaelscutari/bigfolders/internal/scan"
)

// rootFlags are shared by the commands that start scans.
type rootFlags struct {
	allUsers bool
	path     string
	exclude  []string
	xdev     bool
	verbose  bool
	top      int
	accessed bool
	rawSizes bool
}

func (f *rootFlags) command() (scan.Command, error) {
	switch {
	case f.allUsers && f.path != "":
		return scan.Command{}, fmt.Errorf("--all-users and --path are mutually exclusive")
	case f.allUsers:
		return scan.AllUsers(), nil
	case f.path != "":
		abs, err := filepath.Abs(f.path)
		if err != nil {
			return scan.Command{}, fmt.Errorf("failed to resolve path: %w", err)
		}
		return scan.FolderSelected(pathutil.Normalize(abs)), nil
	default:
		return scan.CurrentUser(), nil
	}
}

func (f *rootFlags) options(logOutput io.Writer) (*scan.ScanOptions, error) {
	opts := scan.DefaultOptions().
		WithXdev(f.xdev).
		WithVerbose(f.verbose).
		WithLogOutput(logOutput)

	for _, pattern := range f.exclude {
		if err := opts.AddExcludePattern(pattern); err != nil {
			return nil, err
		}
	}
	return opts, nil
}

func (f *rootFlags) sizeFormat() export.SizeFormat {
	if f.rawSizes {
		return export.SizeBytes
	}
	return export.SizeHuman
}

func isTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func userHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

// printEntries writes a ranked table of entries.
func printEntries(w io.Writer, entries []entry.ScanEntry, showAccessed bool, format export.SizeFormat, home string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if showAccessed {
		fmt.Fprintf(tw, "#\tSIZE\tACCESSED\tFOLDER\n")
	} else {
		fmt.Fprintf(tw, "#\tSIZE\tFOLDER\n")
	}
	for i, e := range entries {
		size := export.FormatSize(e.Size, format)
		path := pathutil.Tilde(e.Path, home)
		if !showAccessed {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, size, path)
			continue
		}
		accessed := "-"
		if e.HasAccessed() {
			accessed = e.Accessed.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, size, accessed, path)
	}
	tw.Flush()
}
