// Package export writes scan results to CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/michaelscutari/bigfolders/internal/entry"
)

// SizeFormat selects how sizes are written.
type SizeFormat uint8

const (
	// SizeHuman writes IEC units such as "1.0 MiB".
	SizeHuman SizeFormat = iota
	// SizeBytes writes the raw byte count.
	SizeBytes
)

// DefaultFilename names an export taken at now.
func DefaultFilename(now time.Time) string {
	return "bigfolders_" + now.Format("2006-01-02_15-04-05") + ".csv"
}

// WriteCSV writes a File,Size header and one row per entry with a
// non-zero size. It returns the number of data rows written.
func WriteCSV(w io.Writer, entries []entry.ScanEntry, format SizeFormat) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"File", "Size"}); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	rows := 0
	for _, e := range entries {
		if e.Size <= 0 {
			continue
		}
		if err := cw.Write([]string{e.Path, FormatSize(e.Size, format)}); err != nil {
			return rows, fmt.Errorf("failed to write row for %s: %w", e.Path, err)
		}
		rows++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return rows, fmt.Errorf("failed to flush csv: %w", err)
	}
	return rows, nil
}

// WriteFile exports entries to path.
func WriteFile(path string, entries []entry.ScanEntry, format SizeFormat) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}
	rows, err := WriteCSV(f, entries, format)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close %s: %w", path, cerr)
	}
	return rows, err
}

// FormatSize renders a byte count in the given format.
func FormatSize(size int64, format SizeFormat) string {
	if format == SizeBytes {
		return strconv.FormatInt(size, 10)
	}
	return humanize.IBytes(uint64(size))
}
