package entry

import (
	"os"
	"time"
)

// Kind represents the type of filesystem entry.
type Kind uint8

const (
	KindFile    Kind = 0
	KindDir     Kind = 1
	KindSymlink Kind = 2
	KindOther   Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// KindFromMode derives the Kind from an os.FileMode.
func KindFromMode(mode os.FileMode) Kind {
	switch {
	case mode.IsRegular():
		return KindFile
	case mode.IsDir():
		return KindDir
	case mode&os.ModeSymlink != 0:
		return KindSymlink
	default:
		return KindOther
	}
}

// ScanEntry is the computed size of one directory subtree.
type ScanEntry struct {
	Path string
	Size int64 // Allocated bytes of the whole subtree

	// Accessed is filled lazily for displayed entries only.
	// The zero value means it has not been resolved.
	Accessed time.Time
}

// HasAccessed reports whether the last-access time has been resolved.
func (e ScanEntry) HasAccessed() bool {
	return !e.Accessed.IsZero()
}

// ScanError represents an error encountered during scanning.
type ScanError struct {
	Path    string
	Message string
}

// ScanMeta holds metadata about a scan.
type ScanMeta struct {
	RootPath   string
	Mode       string // current-user, all-users or folder
	StartTime  time.Time
	EndTime    time.Time
	TotalSize  int64 // Sum of the top-level directory sizes
	DirCount   int64
	FileCount  int64
	ErrorCount int64
	Stopped    bool
}

// Duration returns how long the scan ran.
func (m ScanMeta) Duration() time.Duration {
	if m.EndTime.IsZero() {
		return 0
	}
	return m.EndTime.Sub(m.StartTime)
}
