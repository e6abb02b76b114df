package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/michaelscutari/bigfolders/internal/entry"
	"github.com/michaelscutari/bigfolders/internal/export"
	"github.com/michaelscutari/bigfolders/internal/probe"
	"github.com/michaelscutari/bigfolders/internal/scan"
	"github.com/michaelscutari/bigfolders/internal/session"
	"github.com/michaelscutari/bigfolders/internal/snapshot"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan and print the biggest folders",
	Long: `Scan a root, print the biggest folders once the scan finishes and
optionally export them to CSV or record them into a SQLite snapshot.
Press Ctrl+C once to stop early and keep the partial ranking.`,
	RunE: runScan,
}

var (
	scanRoots     rootFlags
	scanRankEvery int
	scanOut       string
	scanRetention int
	scanCSV       string
	scanMaxErrors int
	scanProgress  time.Duration
	scanIndexMode string
	scanSQLiteTmp string
)

func init() {
	scanCmd.Flags().BoolVar(&scanRoots.allUsers, "all-users", false, "Scan every home directory next to yours")
	scanCmd.Flags().StringVarP(&scanRoots.path, "path", "p", "", "Scan this folder instead of your home")
	scanCmd.Flags().StringSliceVarP(&scanRoots.exclude, "exclude", "e", nil, "Regex patterns to exclude (can be repeated)")
	scanCmd.Flags().BoolVar(&scanRoots.xdev, "xdev", false, "Don't cross filesystem boundaries")
	scanCmd.Flags().BoolVarP(&scanRoots.verbose, "verbose", "v", false, "Enable verbose scan logging")
	scanCmd.Flags().IntVarP(&scanRoots.top, "top", "n", 20, "Number of folders to show")
	scanCmd.Flags().BoolVar(&scanRoots.accessed, "accessed", true, "Show last access times of the listed folders")
	scanCmd.Flags().BoolVar(&scanRoots.rawSizes, "raw-sizes", false, "Print sizes in bytes")
	scanCmd.Flags().IntVar(&scanRankEvery, "rank-every", 1000, "Re-rank after this many folders")
	scanCmd.Flags().StringVarP(&scanOut, "out", "o", "", "Record a snapshot into this directory")
	scanCmd.Flags().IntVar(&scanRetention, "retention", 5, "Number of snapshots to retain (0 = unlimited)")
	scanCmd.Flags().StringVar(&scanCSV, "csv", "", "Export all folders to this CSV file (\"auto\" picks a timestamped name)")
	scanCmd.Flags().IntVar(&scanMaxErrors, "max-errors", 0, "Stop after N errors (0 = unlimited)")
	scanCmd.Flags().DurationVar(&scanProgress, "progress-interval", 30*time.Second, "Emit progress lines to stderr at this interval when not a TTY (0 to disable)")
	scanCmd.Flags().StringVar(&scanIndexMode, "index-mode", "memory", "Snapshot index build mode: memory|disk|skip")
	scanCmd.Flags().StringVar(&scanSQLiteTmp, "sqlite-tmp-dir", "", "Directory for SQLite temp files during index build")
}

func runScan(cmd *cobra.Command, args []string) error {
	command, err := scanRoots.command()
	if err != nil {
		return err
	}
	opts, err := scanRoots.options(os.Stderr)
	if err != nil {
		return err
	}
	switch scanIndexMode {
	case "memory", "disk", "skip":
	default:
		return fmt.Errorf("invalid index mode %q (expected memory|disk|skip)", scanIndexMode)
	}

	root, err := scan.NewResolver().Resolve(command)
	if err != nil {
		return fmt.Errorf("failed to resolve scan root: %w", err)
	}
	fmt.Printf("Scanning %s...\n", root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := scan.NewEngine(opts)
	controls, events := engine.Start(ctx)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nStopping... (press Ctrl+C again to force)")
		controls.Stop()
		<-sigCh
		os.Exit(130)
	}()

	sess := session.New(session.Settings{
		Visible:      scanRoots.top,
		ShowAccessed: scanRoots.accessed,
		RankEvery:    scanRankEvery,
	})
	if err := sess.Begin(root); err != nil {
		return err
	}
	if err := controls.Send(command); err != nil {
		return fmt.Errorf("failed to start scan: %w", err)
	}

	startTime := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	var recordCh chan entry.Event
	var recorded *recordProgress
	var dbPath string
	var stage atomic.Value
	stage.Store("scan")
	if scanOut != "" {
		outDir, err := filepath.Abs(scanOut)
		if err != nil {
			return fmt.Errorf("failed to resolve output path: %w", err)
		}
		mgr := snapshot.NewManager(outDir, scanRetention)
		mgr.SetIndexMode(scanIndexMode)
		mgr.SetLog(scanRoots.verbose, os.Stderr)
		if scanSQLiteTmp != "" {
			mgr.SetSQLiteTmpDir(scanSQLiteTmp)
		}
		if scanMaxErrors > 0 {
			mgr.SetMaxErrors(scanMaxErrors, controls.Stop)
		}
		if !scanRoots.accessed {
			mgr.SetAccessedTop(0)
		}
		recorded = &recordProgress{}
		mgr.SetProgressFunc(func(dirs, _, totalBytes int64) {
			recorded.dirs.Store(dirs)
			recorded.bytes.Store(totalBytes)
		})
		mgr.SetStageFunc(func(s string) {
			if s != "" {
				stage.Store(s)
			}
		})

		recordCh = make(chan entry.Event, 1024)
		g.Go(func() error {
			path, err := mgr.Record(gctx, root, recordCh, engine.Errors())
			dbPath = path
			return err
		})
	}

	g.Go(func() error {
		if recordCh != nil {
			defer close(recordCh)
		}
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case ev, ok := <-events:
				if !ok {
					return errors.New("scan engine exited early")
				}
				sess.Apply(ev)
				if recordCh != nil {
					select {
					case recordCh <- ev:
					case <-gctx.Done():
						return gctx.Err()
					}
				}
				if ev.Kind == entry.EventDone {
					return ev.Err
				}
			}
		}
	})

	isTTY := isTerminal()
	progressDone := make(chan struct{})
	progressExited := make(chan struct{})
	go func() {
		defer close(progressExited)
		reportProgress(progressDone, engine, controls, &stage, recorded, startTime, isTTY)
	}()

	err = g.Wait()
	close(progressDone)
	<-progressExited
	if isTTY {
		fmt.Fprintf(os.Stderr, "\r\033[K")
	}
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	meta := sess.Meta()
	home := userHome()
	fmt.Println()
	printEntries(os.Stdout, sess.Top(), scanRoots.accessed, scanRoots.sizeFormat(), home)
	fmt.Println()
	fmt.Println(sess.Status())
	if meta.Stopped {
		fmt.Println("Scan stopped early; sizes above cover what was scanned.")
	}

	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Root: %s (%s)\n", meta.RootPath, meta.Mode)
	fmt.Printf("  Folders: %s\n", humanize.Comma(meta.DirCount))
	fmt.Printf("  Files: %s\n", humanize.Comma(meta.FileCount))
	fmt.Printf("  Disk usage: %s\n", humanize.IBytes(uint64(meta.TotalSize)))
	if meta.ErrorCount > 0 {
		fmt.Printf("  Errors: %s\n", humanize.Comma(meta.ErrorCount))
	}
	if vol, err := probe.Volume(meta.RootPath); err == nil {
		fmt.Printf("  Volume: %s used of %s (%.0f%%)\n",
			humanize.IBytes(vol.Used), humanize.IBytes(vol.Total), vol.UsedPercent)
	}
	fmt.Printf("  Completed in %s\n", time.Since(startTime).Round(time.Millisecond))

	if dbPath != "" {
		fmt.Printf("\nDatabase: %s\n", dbPath)
	}

	if scanCSV != "" {
		path := scanCSV
		if path == "auto" {
			path = export.DefaultFilename(time.Now())
		}
		rows, err := export.WriteFile(path, sess.Entries(), scanRoots.sizeFormat())
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d folders to %s\n", rows, path)
	}

	return nil
}

// recordProgress mirrors the snapshot recorder's counters.
type recordProgress struct {
	dirs  atomic.Int64
	bytes atomic.Int64
}

func (r *recordProgress) String() string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("%d recorded (%s)", r.dirs.Load(), humanize.IBytes(uint64(r.bytes.Load())))
}

// reportProgress draws a spinner line on a terminal and periodic PROGRESS
// lines otherwise, until done is closed. recorded is nil when no snapshot
// is being written.
func reportProgress(done <-chan struct{}, engine *scan.Engine, controls scan.Controls, stage *atomic.Value, recorded *recordProgress, startTime time.Time, isTTY bool) {
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()
	lastNonTTY := time.Now()
	var spinnerIdx int
	stopped := false

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		p, _ := engine.Progress()
		if scanOut == "" && scanMaxErrors > 0 && !stopped && p.Errors >= int64(scanMaxErrors) {
			controls.Stop()
			stopped = true
		}

		elapsed := time.Since(startTime).Round(time.Millisecond)
		stageStr, _ := stage.Load().(string)
		rate := float64(0)
		if elapsed.Seconds() > 0 {
			rate = float64(p.Files+p.Dirs) / elapsed.Seconds()
		}

		if isTTY {
			spinner := spinnerFrames[spinnerIdx%len(spinnerFrames)]
			spinnerIdx++
			if stageStr != "" && stageStr != "scan" && stageStr != "record" {
				fmt.Fprintf(os.Stderr, "\r\033[K%s %s... | %s | %s", spinner, stageStr, recorded, elapsed)
				continue
			}
			errStr := ""
			if p.Errors > 0 {
				errStr = fmt.Sprintf(" | %d errors", p.Errors)
			}
			if recorded != nil {
				errStr += " | " + recorded.String()
			}
			fmt.Fprintf(os.Stderr, "\r\033[K%s Scanning... %d files | %d folders | %s | %.0f/sec | %s%s",
				spinner, p.Files, p.Dirs, humanize.IBytes(uint64(p.Bytes)), rate, elapsed, errStr)
		} else if scanProgress > 0 && time.Since(lastNonTTY) >= scanProgress {
			var recordedDirs int64
			if recorded != nil {
				recordedDirs = recorded.dirs.Load()
			}
			fmt.Fprintf(os.Stderr, "PROGRESS stage=%s files=%d dirs=%d bytes=%s rate=%.0f/sec elapsed=%s errors=%d recorded=%d\n",
				stageStr, p.Files, p.Dirs, humanize.IBytes(uint64(p.Bytes)), rate, elapsed, p.Errors, recordedDirs)
			lastNonTTY = time.Now()
		}
	}
}
