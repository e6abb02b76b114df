//go:build !windows

package probe

import (
	"github.com/michaelscutari/bigfolders/internal/entry"
	"golang.org/x/sys/unix"
)

// Stat lstats path. Symlinks are reported as KindSymlink and never followed.
func Stat(path string) Info {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return Info{}
	}

	return Info{
		Kind:      kindFromMode(uint32(st.Mode)),
		Allocated: int64(st.Blocks) * 512, // st_blocks is in 512-byte units
		Apparent:  int64(st.Size),
		Dev:       uint64(st.Dev),
		OK:        true,
	}
}

func kindFromMode(mode uint32) entry.Kind {
	switch mode & unix.S_IFMT {
	case unix.S_IFREG:
		return entry.KindFile
	case unix.S_IFDIR:
		return entry.KindDir
	case unix.S_IFLNK:
		return entry.KindSymlink
	default:
		return entry.KindOther
	}
}
