package pathutil

import (
	"path/filepath"
	"strings"
)

// Normalize returns a canonical filesystem path string.
// It removes trailing slashes, collapses "." and "..", and
// preserves relative paths when provided.
func Normalize(path string) string {
	if path == "" {
		return path
	}
	return filepath.Clean(path)
}

// Tilde shortens paths inside home to "~/...". Paths that merely share a
// prefix with home (/home/al vs /home/alice) are left alone.
func Tilde(path, home string) string {
	if home == "" {
		return path
	}
	home = Normalize(home)
	if path == home {
		return "~"
	}
	if after, ok := strings.CutPrefix(path, home+string(filepath.Separator)); ok {
		return "~" + string(filepath.Separator) + after
	}
	return path
}

// Within reports whether path is dir or lies below it.
func Within(path, dir string) bool {
	path, dir = Normalize(path), Normalize(dir)
	if path == dir {
		return true
	}
	prefix := strings.TrimSuffix(dir, string(filepath.Separator)) + string(filepath.Separator)
	return strings.HasPrefix(path, prefix)
}
