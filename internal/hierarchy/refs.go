// Package hierarchy analyzes cross-references between input records and
// arranges them into dependency-ordered levels for bulk submission.
//
// Records may name each other through a temporary identifier (uid) carried in
// a control field; a record whose parent field holds another row's uid must be
// created after that row. The package detects those references, rejects
// duplicate uids and reference cycles, groups records into levels, and tracks
// uid-to-issue-key substitutions as creation proceeds.
package hierarchy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/treeline-dev/treeline/internal/types"
)

// ValidationError reports unusable input, such as duplicate uids.
// It is fatal to the whole run.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Refs is the result of scanning records for temporary identifiers.
type Refs struct {
	// HasUIDs is false when no record carries a uid; such a run is not
	// hierarchical and keeps flat-bulk behavior.
	HasUIDs bool

	// ByUID maps uid to the row index that declared it.
	ByUID map[string]int

	// ByIndex maps row index to its uid, for rows that have one.
	ByIndex map[int]string
}

// DetectRefs scans records for uids and builds the uid/index maps.
// A uid shared by more than one row fails the run: partial tolerance would
// make parent references ambiguous.
func DetectRefs(records []types.Record) (*Refs, error) {
	refs := &Refs{
		ByUID:   make(map[string]int),
		ByIndex: make(map[int]string),
	}

	dupes := make(map[string][]int)
	for i, rec := range records {
		uid, ok := rec.UID()
		if !ok {
			continue
		}
		refs.HasUIDs = true
		if first, seen := refs.ByUID[uid]; seen {
			if len(dupes[uid]) == 0 {
				dupes[uid] = append(dupes[uid], first)
			}
			dupes[uid] = append(dupes[uid], i)
			continue
		}
		refs.ByUID[uid] = i
		refs.ByIndex[i] = uid
	}

	if len(dupes) > 0 {
		uids := make([]string, 0, len(dupes))
		for uid := range dupes {
			uids = append(uids, uid)
		}
		sort.Strings(uids)
		var parts []string
		for _, uid := range uids {
			idxs := make([]string, len(dupes[uid]))
			for i, n := range dupes[uid] {
				idxs[i] = fmt.Sprintf("%d", n)
			}
			parts = append(parts, fmt.Sprintf("uid %q used by rows %s", uid, strings.Join(idxs, ", ")))
		}
		return nil, &ValidationError{Msg: "duplicate uid: " + strings.Join(parts, "; ")}
	}

	return refs, nil
}

// ParentUID returns the uid the record's parent field resolves to, if the
// parent reference names another row in this submission. A parent holding a
// real issue key (or nothing) resolves to no uid.
func (r *Refs) ParentUID(rec types.Record) (string, bool) {
	parent, ok := rec.Parent()
	if !ok {
		return "", false
	}
	if _, known := r.ByUID[parent]; !known {
		return "", false
	}
	return parent, true
}
