//go:build windows

package probe

import (
	"os"

	"github.com/michaelscutari/bigfolders/internal/entry"
)

// Stat lstats path. Windows has no block count, so the reported size is
// used as the allocation.
func Stat(path string) Info {
	info, err := os.Lstat(path)
	if err != nil {
		return Info{}
	}

	kind := entry.KindFromMode(info.Mode())
	var size int64
	if kind != entry.KindDir {
		size = info.Size()
	}

	return Info{
		Kind:      kind,
		Allocated: size,
		Apparent:  size,
		OK:        true,
	}
}
