//go:build windows

package probe

import (
	"os"
	"syscall"
	"time"
)

// Accessed returns the last access time of path.
func Accessed(path string) (time.Time, bool) {
	info, err := os.Lstat(path)
	if err != nil {
		return time.Time{}, false
	}
	attrs, ok := info.Sys().(*syscall.Win32FileAttributeData)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(0, attrs.LastAccessTime.Nanoseconds()), true
}
