package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/michaelscutari/bigfolders/internal/db"
	"github.com/michaelscutari/bigfolders/internal/entry"

	_ "modernc.org/sqlite"
)

// ErrLocked is returned when another process is recording into the same
// output directory.
var ErrLocked = errors.New("another scan is being recorded")

const (
	snapshotPrefix = "bigfolders-"
	snapshotSuffix = ".db"
	latestName     = "latest.db"
	lockName       = ".bigfolders.lock"
)

// ProgressFunc is called periodically with current ingestion progress.
type ProgressFunc func(dirs, errors, totalBytes int64)

// StageFunc is called when the recording stage changes.
type StageFunc func(stage string)

// Manager handles the snapshot lifecycle including locking and retention.
type Manager struct {
	outputDir    string
	retention    int
	lockFile     *os.File
	progressFunc ProgressFunc
	stageFunc    StageFunc
	indexMode    string
	sqliteTmpDir string
	batchSize    int
	maxErrors    int
	onMaxErrors  func()
	accessedTop  int
	logOutput    io.Writer
	verbose      bool
	now          func() time.Time
}

// NewManager creates a new snapshot manager.
func NewManager(outputDir string, retention int) *Manager {
	return &Manager{
		outputDir:   outputDir,
		retention:   retention,
		batchSize:   1000,
		accessedTop: db.DefaultAccessedTop,
		logOutput:   os.Stderr,
		now:         time.Now,
	}
}

// SetProgressFunc sets a callback for progress updates while recording.
func (m *Manager) SetProgressFunc(f ProgressFunc) {
	m.progressFunc = f
}

// SetStageFunc sets a callback for stage updates.
func (m *Manager) SetStageFunc(f StageFunc) {
	m.stageFunc = f
}

// SetIndexMode sets the index build mode: memory|disk|skip.
func (m *Manager) SetIndexMode(mode string) {
	m.indexMode = mode
}

// SetSQLiteTmpDir sets the temp directory for SQLite during index build.
func (m *Manager) SetSQLiteTmpDir(dir string) {
	m.sqliteTmpDir = dir
}

// SetMaxErrors calls stop once n scan errors have been recorded.
func (m *Manager) SetMaxErrors(n int, stop func()) {
	m.maxErrors = n
	m.onMaxErrors = stop
}

// SetAccessedTop sets how many of the biggest folders are stamped with
// their last access time. Zero skips it.
func (m *Manager) SetAccessedTop(n int) {
	m.accessedTop = n
}

// SetLog enables [INGESTER] traces and redirects warnings to w.
func (m *Manager) SetLog(verbose bool, w io.Writer) {
	m.verbose = verbose
	if w != nil {
		m.logOutput = w
	}
}

// Record writes one scan's event stream into a new snapshot and returns
// its path. It consumes events up to and including the scan's Done.
func (m *Manager) Record(ctx context.Context, root string, events <-chan entry.Event, errs <-chan entry.ScanError) (string, error) {
	if err := os.MkdirAll(m.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := m.acquireLock(); err != nil {
		return "", fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer m.releaseLock()

	tempPath := filepath.Join(m.outputDir, fmt.Sprintf(".bigfolders-temp-%d.db", time.Now().UnixNano()))
	database, err := sql.Open("sqlite", tempPath)
	if err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to create database: %w", err)
	}
	fail := func(format string, err error) (string, error) {
		database.Close()
		os.Remove(tempPath)
		os.Remove(tempPath + "-wal")
		os.Remove(tempPath + "-shm")
		return "", fmt.Errorf(format, err)
	}

	if err := db.InitSchema(database); err != nil {
		return fail("failed to initialize schema: %w", err)
	}
	if err := db.ApplyWritePragmas(database); err != nil {
		return fail("failed to apply pragmas: %w", err)
	}

	ing := db.NewIngester(database, root, events, errs, m.batchSize, 1000, m.maxErrors, m.onMaxErrors)
	ing.SetDebug(m.verbose, m.logOutput)
	ing.SetAccessed(m.accessedTop, nil)
	m.stage("record")

	progressDone := make(chan struct{})
	if m.progressFunc != nil {
		go func() {
			ticker := time.NewTicker(100 * time.Millisecond)
			defer ticker.Stop()
			for {
				select {
				case <-progressDone:
					return
				case <-ticker.C:
					p := ing.Progress()
					m.progressFunc(p.Dirs, p.Errors, p.TotalBytes)
				}
			}
		}()
	}

	runErr := ing.Run(ctx)
	close(progressDone)
	if m.progressFunc != nil {
		p := ing.Progress()
		m.progressFunc(p.Dirs, p.Errors, p.TotalBytes)
	}
	if runErr != nil {
		return fail("recording failed: %w", runErr)
	}

	if m.indexMode == "" {
		m.indexMode = "memory"
	}
	if m.indexMode != "skip" {
		m.stage("indexes")
		if err := db.ApplyIndexPragmas(database, m.indexMode == "disk", m.sqliteTmpDir); err != nil {
			return fail("failed to apply index pragmas: %w", err)
		}
		if err := db.BuildIndexes(database); err != nil {
			return fail("failed to build indexes: %w", err)
		}
	}

	m.stage("finalize")
	if err := db.Finalize(database); err != nil {
		return fail("failed to finalize database: %w", err)
	}
	database.Close()

	finalName := snapshotPrefix + m.now().Format("20060102-150405") + snapshotSuffix
	finalPath := filepath.Join(m.outputDir, finalName)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to rename database: %w", err)
	}

	// Swap latest.db through a temp link so readers never see it missing
	latestPath := filepath.Join(m.outputDir, latestName)
	tempLink := filepath.Join(m.outputDir, ".latest.db.tmp")
	os.Remove(tempLink)
	if err := os.Symlink(finalName, tempLink); err == nil {
		if err := os.Rename(tempLink, latestPath); err != nil {
			os.Remove(tempLink)
			fmt.Fprintf(m.logOutput, "warning: failed to update latest.db symlink: %v\n", err)
		}
	} else {
		fmt.Fprintf(m.logOutput, "warning: failed to create latest.db symlink: %v\n", err)
	}

	if err := m.pruneOldSnapshots(); err != nil {
		fmt.Fprintf(m.logOutput, "warning: failed to prune old snapshots: %v\n", err)
	}

	return finalPath, nil
}

func (m *Manager) stage(name string) {
	if m.stageFunc != nil {
		m.stageFunc(name)
	}
}

func (m *Manager) acquireLock() error {
	lockPath := filepath.Join(m.outputDir, lockName)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}

	if err := lockFile(f); err != nil {
		f.Close()
		return ErrLocked
	}

	m.lockFile = f
	return nil
}

func (m *Manager) releaseLock() {
	if m.lockFile != nil {
		unlockFile(m.lockFile)
		m.lockFile.Close()
		m.lockFile = nil
	}
}

func (m *Manager) pruneOldSnapshots() error {
	if m.retention <= 0 {
		return nil
	}

	snapshots, err := m.ListSnapshots()
	if err != nil {
		return err
	}

	// Names embed the timestamp, so lexical order is chronological
	for len(snapshots) > m.retention {
		if err := os.Remove(snapshots[0]); err != nil {
			return fmt.Errorf("failed to remove %s: %w", snapshots[0], err)
		}
		snapshots = snapshots[1:]
	}

	return nil
}

// GetLatest returns the path to the latest snapshot.
func (m *Manager) GetLatest() (string, error) {
	latestPath := filepath.Join(m.outputDir, latestName)
	resolved, err := filepath.EvalSymlinks(latestPath)
	if err == nil {
		return resolved, nil
	}

	// Without symlink support fall back to the newest file
	snapshots, listErr := m.ListSnapshots()
	if listErr != nil || len(snapshots) == 0 {
		return "", fmt.Errorf("no latest snapshot found: %w", err)
	}
	return snapshots[len(snapshots)-1], nil
}

// ListSnapshots returns all available snapshots sorted by date.
func (m *Manager) ListSnapshots() ([]string, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return nil, err
	}

	var snapshots []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), snapshotPrefix) && strings.HasSuffix(e.Name(), snapshotSuffix) {
			snapshots = append(snapshots, filepath.Join(m.outputDir, e.Name()))
		}
	}

	sort.Strings(snapshots)
	return snapshots, nil
}
