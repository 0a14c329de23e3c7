package hierarchy

import (
	"fmt"
	"sort"

	"github.com/treeline-dev/treeline/internal/types"
)

// Row pairs a record with its original position in the caller's input.
// Index survives leveling, filtering, and bulk submission so results can
// always be attributed back to the right input row.
type Row struct {
	Index  int
	Record types.Record
}

// Level is one batch of rows whose parent dependencies are fully resolved by
// all earlier levels.
type Level []Row

// BuildLevels groups records into depth-ordered levels: depth 0 for rows with
// no resolvable parent reference, depth N for rows whose parent sits at depth
// N-1. The input must already be cycle-checked.
//
// A parent reference that does not resolve to a known uid (a real issue key,
// or a dangling token) is treated the same as no parent: the row belongs to
// level 0 and the value is passed through untouched.
//
// The uid control field is stripped from every leveled record; it is never
// sent downstream.
func BuildLevels(records []types.Record, refs *Refs) ([]Level, error) {
	depths := make([]int, len(records))

	if refs.HasUIDs {
		for i, rec := range records {
			d, err := depthOf(i, rec, records, refs)
			if err != nil {
				return nil, err
			}
			depths[i] = d
		}
	}

	byDepth := make(map[int]Level)
	maxDepth := 0
	for i, rec := range records {
		leveled := rec.Clone()
		delete(leveled, types.FieldUID)
		d := depths[i]
		byDepth[d] = append(byDepth[d], Row{Index: i, Record: leveled})
		if d > maxDepth {
			maxDepth = d
		}
	}

	levels := make([]Level, 0, maxDepth+1)
	for d := 0; d <= maxDepth; d++ {
		if rows, ok := byDepth[d]; ok {
			// Appends above preserve input order within a depth, but keep
			// this explicit: callers rely on original row order per level.
			sort.Slice(rows, func(a, b int) bool { return rows[a].Index < rows[b].Index })
			levels = append(levels, rows)
		}
	}

	return levels, nil
}

// depthOf walks the parent chain from one record to a root, counting hops.
func depthOf(i int, rec types.Record, records []types.Record, refs *Refs) (int, error) {
	depth := 0
	cur := rec
	for {
		parent, ok := refs.ParentUID(cur)
		if !ok {
			return depth, nil
		}
		next, ok := refs.ByUID[parent]
		if !ok {
			return depth, nil
		}
		depth++
		// Cycle detection runs first, so the chain length is bounded. This
		// guard turns a missed precondition into a loud failure instead of
		// a hang.
		if depth > len(records) {
			return 0, fmt.Errorf("row %d: parent chain exceeds record count, cycle check skipped?", i)
		}
		cur = records[next]
	}
}
