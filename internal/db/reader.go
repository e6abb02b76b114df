package db

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/michaelscutari/bigfolders/internal/entry"
	"github.com/michaelscutari/bigfolders/internal/pathutil"
)

// DirRow is one recorded directory.
type DirRow struct {
	Path     string
	Depth    int
	Size     int64
	Accessed time.Time // Zero when it was not resolved
	Seq      int64     // Emission order within the scan
}

// Entry converts the row for consumers of live results.
func (r DirRow) Entry() entry.ScanEntry {
	return entry.ScanEntry{Path: r.Path, Size: r.Size, Accessed: r.Accessed}
}

// Query selects directories from a snapshot.
type Query struct {
	// Under restricts results to this directory and its descendants.
	Under string

	// MaxDepth drops rows deeper than this below the scan root. Zero means
	// no limit.
	MaxDepth int

	// Sort is one of size, path, accessed or seq. Default size.
	Sort string

	Limit   int
	MinSize int64
}

func orderClause(sortBy string) string {
	switch sortBy {
	case "path", "name":
		return "path ASC"
	case "accessed":
		// Oldest first; unresolved rows last
		return "accessed = 0, accessed ASC"
	case "seq":
		return "seq ASC"
	default:
		return "size DESC, seq ASC"
	}
}

// LoadTop returns the biggest directories matching q.
func LoadTop(db *sql.DB, q Query) ([]DirRow, error) {
	var where []string
	var args []any

	if q.Under != "" {
		under := pathutil.Normalize(q.Under)
		prefix := strings.TrimSuffix(under, string(filepath.Separator)) + string(filepath.Separator)
		where = append(where, "(path = ? OR substr(path, 1, ?) = ?)")
		args = append(args, under, len(prefix), prefix)
	}
	if q.MaxDepth > 0 {
		where = append(where, "depth <= ?")
		args = append(args, q.MaxDepth)
	}
	if q.MinSize > 0 {
		where = append(where, "size >= ?")
		args = append(args, q.MinSize)
	}

	query := `SELECT path, depth, size, accessed, seq FROM dirs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + orderClause(q.Sort)
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	return queryDirs(db, query, args...)
}

// LoadChildren loads the direct subdirectories of parent.
func LoadChildren(db *sql.DB, parent, sortBy string, limit int) ([]DirRow, error) {
	parent = pathutil.Normalize(parent)
	query := fmt.Sprintf(`SELECT path, depth, size, accessed, seq FROM dirs WHERE parent = ? ORDER BY %s LIMIT ?`, orderClause(sortBy))
	if limit <= 0 {
		limit = -1
	}
	return queryDirs(db, query, parent, limit)
}

func queryDirs(db *sql.DB, query string, args ...any) ([]DirRow, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var result []DirRow
	for rows.Next() {
		var r DirRow
		var accessed int64
		if err := rows.Scan(&r.Path, &r.Depth, &r.Size, &accessed, &r.Seq); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if accessed > 0 {
			r.Accessed = time.Unix(accessed, 0)
		}
		result = append(result, r)
	}

	return result, rows.Err()
}

// Entries converts rows for the CSV exporter and the live views.
func Entries(rows []DirRow) []entry.ScanEntry {
	out := make([]entry.ScanEntry, len(rows))
	for i, r := range rows {
		out[i] = r.Entry()
	}
	return out
}

// GetScanMeta retrieves scan metadata.
func GetScanMeta(db *sql.DB) (*entry.ScanMeta, error) {
	var m entry.ScanMeta
	var startTime, endTime int64

	err := db.QueryRow(`
		SELECT root_path, mode, start_time, COALESCE(end_time, 0), total_size, dir_count, file_count, error_count, stopped
		FROM scan_meta WHERE id = 1
	`).Scan(&m.RootPath, &m.Mode, &startTime, &endTime, &m.TotalSize, &m.DirCount, &m.FileCount, &m.ErrorCount, &m.Stopped)

	if err != nil {
		return nil, err
	}

	m.StartTime = time.Unix(startTime, 0)
	if endTime > 0 {
		m.EndTime = time.Unix(endTime, 0)
	}

	return &m, nil
}

// LoadErrors returns up to limit sampled scan errors.
func LoadErrors(db *sql.DB, limit int) ([]entry.ScanError, error) {
	rows, err := db.Query(`SELECT path, message FROM scan_errors ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var errs []entry.ScanError
	for rows.Next() {
		var e entry.ScanError
		if err := rows.Scan(&e.Path, &e.Message); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		errs = append(errs, e)
	}
	return errs, rows.Err()
}
