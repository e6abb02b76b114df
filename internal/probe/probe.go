// Package probe reads the space usage of single filesystem entries.
//
// Every function here absorbs failures: a path that cannot be read
// reports zero bytes instead of an error so a scan never aborts on a
// permission problem or a file that vanished mid-walk.
package probe

import (
	"fmt"

	"github.com/michaelscutari/bigfolders/internal/entry"
	"github.com/shirou/gopsutil/v3/disk"
)

// Info is the metadata the scanner needs from one lstat call.
type Info struct {
	Kind entry.Kind

	// Allocated is the space reserved on disk (st_blocks * 512 on unix,
	// the reported size on windows).
	Allocated int64

	// Apparent is the logical length (st_size).
	Apparent int64

	Dev uint64
	OK  bool
}

// Allocated returns the allocated size of path, or zero if it cannot be read.
func Allocated(path string) int64 {
	return Stat(path).Allocated
}

// VolumeUsage describes the filesystem holding a path.
type VolumeUsage struct {
	Path        string
	Total       uint64
	Used        uint64
	Free        uint64
	UsedPercent float64
}

// Volume reports the usage of the filesystem that holds path.
func Volume(path string) (VolumeUsage, error) {
	u, err := disk.Usage(path)
	if err != nil {
		return VolumeUsage{}, fmt.Errorf("failed to read volume usage for %s: %w", path, err)
	}
	return VolumeUsage{
		Path:        u.Path,
		Total:       u.Total,
		Used:        u.Used,
		Free:        u.Free,
		UsedPercent: u.UsedPercent,
	}, nil
}
