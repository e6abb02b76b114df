// Package rank keeps a result set ordered biggest first.
package rank

import (
	"cmp"
	"slices"
	"time"

	"github.com/michaelscutari/bigfolders/internal/entry"
	"github.com/michaelscutari/bigfolders/internal/probe"
)

// AccessLookup resolves the last-access time of a path.
type AccessLookup func(path string) (time.Time, bool)

// Rerank sorts entries in place by size, largest first. Equal sizes keep
// their arrival order, so ranking an already ranked list changes nothing.
func Rerank(entries []entry.ScanEntry) []entry.ScanEntry {
	slices.SortStableFunc(entries, func(a, b entry.ScanEntry) int {
		return cmp.Compare(b.Size, a.Size)
	})
	return entries
}

// Enrich fills in the access time of the first k entries that lack one and
// returns how many were resolved. A nil lookup uses probe.Accessed.
func Enrich(entries []entry.ScanEntry, k int, lookup AccessLookup) int {
	if lookup == nil {
		lookup = probe.Accessed
	}
	resolved := 0
	for i := range entries[:min(k, len(entries))] {
		if entries[i].HasAccessed() {
			continue
		}
		if at, ok := lookup(entries[i].Path); ok {
			entries[i].Accessed = at
			resolved++
		}
	}
	return resolved
}
