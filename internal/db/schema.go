package db

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

const dirsTableDDL = `
CREATE TABLE IF NOT EXISTS dirs (
    id INTEGER PRIMARY KEY,
    path TEXT UNIQUE NOT NULL,
    parent TEXT NOT NULL,
    depth INTEGER NOT NULL,
    size INTEGER NOT NULL,
    accessed INTEGER NOT NULL DEFAULT 0,
    seq INTEGER NOT NULL
);
`

const scanMetaTableDDL = `
CREATE TABLE IF NOT EXISTS scan_meta (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    root_path TEXT NOT NULL,
    mode TEXT NOT NULL DEFAULT '',
    start_time INTEGER NOT NULL,
    end_time INTEGER,
    total_size INTEGER DEFAULT 0,
    dir_count INTEGER DEFAULT 0,
    file_count INTEGER DEFAULT 0,
    error_count INTEGER DEFAULT 0,
    stopped INTEGER DEFAULT 0
);
`

const scanErrorsTableDDL = `
CREATE TABLE IF NOT EXISTS scan_errors (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL,
    message TEXT NOT NULL
);
`

const dirsSizeIndexDDL = `CREATE INDEX IF NOT EXISTS idx_dirs_size ON dirs(size DESC);`
const dirsParentSizeIndexDDL = `CREATE INDEX IF NOT EXISTS idx_dirs_parent_size ON dirs(parent, size DESC);`
const dirsAccessedIndexDDL = `CREATE INDEX IF NOT EXISTS idx_dirs_accessed ON dirs(accessed);`

// InitSchema creates all tables in the database.
func InitSchema(db *sql.DB) error {
	ddls := []string{
		dirsTableDDL,
		scanMetaTableDDL,
		scanErrorsTableDDL,
	}

	for _, ddl := range ddls {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to execute DDL: %w", err)
		}
	}

	return nil
}

// ApplyWritePragmas configures SQLite for optimal write performance during ingestion.
func ApplyWritePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply pragma %q: %w", pragma, err)
		}
	}

	return nil
}

// ApplyReadPragmas configures SQLite for read-only browsing.
func ApplyReadPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA cache_size = -16000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA query_only = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply pragma %q: %w", pragma, err)
		}
	}

	return nil
}

// ApplyIndexPragmas configures SQLite for index builds.
// When diskTemp is true, temp files are stored on disk to reduce RAM usage.
func ApplyIndexPragmas(db *sql.DB, diskTemp bool, tmpDir string) error {
	if tmpDir != "" {
		if err := os.MkdirAll(tmpDir, 0755); err != nil {
			return fmt.Errorf("failed to create sqlite temp dir: %w", err)
		}
		if err := os.Setenv("SQLITE_TMPDIR", tmpDir); err != nil {
			return fmt.Errorf("failed to set SQLITE_TMPDIR: %w", err)
		}
	}

	pragma := "PRAGMA temp_store = MEMORY"
	if diskTemp {
		pragma = "PRAGMA temp_store = FILE"
	}
	if _, err := db.Exec(pragma); err != nil {
		return fmt.Errorf("failed to set temp_store: %w", err)
	}

	return nil
}

// BuildIndexes creates indexes after the initial data load.
func BuildIndexes(db *sql.DB) error {
	indexes := []string{
		dirsSizeIndexDDL,
		dirsParentSizeIndexDDL,
		dirsAccessedIndexDDL,
	}

	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// Finalize prepares the database for read-only access.
func Finalize(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA optimize"); err != nil {
		return fmt.Errorf("failed to optimize: %w", err)
	}

	// WAL leaves side files next to the snapshot
	if _, err := db.Exec("PRAGMA journal_mode = DELETE"); err != nil {
		return fmt.Errorf("failed to set journal mode: %w", err)
	}

	return nil
}

// Open opens a snapshot for reading.
func Open(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("snapshot not found: %w", err)
	}
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := ApplyReadPragmas(database); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}
