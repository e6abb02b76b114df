//go:build !linux && !darwin && !windows

package probe

import "time"

// Accessed is not supported on this platform.
func Accessed(path string) (time.Time, bool) {
	return time.Time{}, false
}
