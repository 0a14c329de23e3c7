package hierarchy

import "github.com/treeline-dev/treeline/internal/types"

// Tracker records uid-to-issue-key mappings as rows are created and rewrites
// pending records' parent references before their level is submitted.
//
// Each run owns exactly one Tracker. Writes happen only between levels, in
// the engine's sequential loop; within a level the build fan-out reads it
// concurrently. Concurrent map reads need no locking.
type Tracker struct {
	created map[string]string
}

// NewTracker returns an empty substitution tracker.
func NewTracker() *Tracker {
	return &Tracker{created: make(map[string]string)}
}

// LoadExisting seeds the tracker from a prior run's uid map so a retry can
// resolve parent references to rows created in an earlier attempt.
func (t *Tracker) LoadExisting(m map[string]string) {
	for uid, key := range m {
		t.created[uid] = key
	}
}

// RecordCreation stores the issue key created for a uid.
func (t *Tracker) RecordCreation(uid, key string) {
	if uid == "" || key == "" {
		return
	}
	t.created[uid] = key
}

// ReplaceUIDs returns the record with its parent reference rewritten to the
// created issue key when the current value exactly matches a known uid.
// Anything else (a real issue key, an unknown token, no parent at all) passes
// through unchanged.
func (t *Tracker) ReplaceUIDs(rec types.Record) types.Record {
	parent, ok := rec.Parent()
	if !ok {
		return rec
	}
	key, ok := t.created[parent]
	if !ok {
		return rec
	}
	out := rec.Clone()
	out[types.FieldParent] = key
	return out
}

// Mappings returns a copy of the uid-to-key map for manifest persistence.
func (t *Tracker) Mappings() map[string]string {
	out := make(map[string]string, len(t.created))
	for uid, key := range t.created {
		out[uid] = key
	}
	return out
}
