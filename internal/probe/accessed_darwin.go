//go:build darwin

package probe

import (
	"time"

	"golang.org/x/sys/unix"
)

// Accessed returns the last access time of path.
func Accessed(path string) (time.Time, bool) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return time.Time{}, false
	}
	return time.Unix(st.Atimespec.Unix()), true
}
