package storage

import (
	"cmp"
	"slices"

	"github.com/poiesic/snapshelf/core"
)

// DefaultCap is the number of records a backend retains unless configured otherwise.
const DefaultCap = 100

// NormalizeCap returns cap, or DefaultCap when cap is not positive.
func NormalizeCap(cap int) int {
	if cap <= 0 {
		return DefaultCap
	}
	return cap
}

// Retain decides which records survive a cap of n.
// It returns the n most recent records by timestamp in storage order
// (oldest first). The input slice is not modified. A non-positive n
// means DefaultCap.
func Retain(records []*core.Record, n int) []*core.Record {
	n = NormalizeCap(n)
	out := slices.Clone(records)
	SortOldestFirst(out)
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

// Surplus returns the keys that must be evicted so that at most n remain.
// Keys are record timestamps; the oldest are returned first.
func Surplus(keys []string, n int) []string {
	n = NormalizeCap(n)
	if len(keys) <= n {
		return nil
	}
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	return sorted[:len(sorted)-n]
}

// SortNewestFirst orders records by descending timestamp in place.
func SortNewestFirst(records []*core.Record) {
	slices.SortFunc(records, func(a, b *core.Record) int {
		return cmp.Compare(b.Timestamp, a.Timestamp)
	})
}

// SortOldestFirst orders records by ascending timestamp in place.
func SortOldestFirst(records []*core.Record) {
	slices.SortFunc(records, func(a, b *core.Record) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
}
