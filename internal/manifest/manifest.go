// Package manifest defines the durable record of one bulk run and the stores
// that persist it. A manifest is what makes a run resumable: it records which
// original rows succeeded, which failed and why, the issue keys created for
// each row, and the uid-to-key map needed to resolve parent references on
// retry.
package manifest

import (
	"fmt"
	"sort"
	"time"

	"github.com/treeline-dev/treeline/internal/types"
)

// DefaultTTL is the retention window for stored manifests. After it elapses
// a retry attempt fails with ErrNotFound and the caller must re-submit as a
// fresh run.
const DefaultTTL = 24 * time.Hour

// Manifest is the durable unit of record for one bulk run.
//
// Invariants: Succeeded and Failed are disjoint subsets of [0, Total); every
// succeeded index has a Created entry and no Errors entry; every failed index
// has an Errors entry and no Created entry. Retries mutate the manifest in
// place under the same ID, preserving CreatedAt.
type Manifest struct {
	ID        string                  `json:"id"`
	CreatedAt time.Time               `json:"created_at"`
	Total     int                     `json:"total"`
	Succeeded []int                   `json:"succeeded"`
	Failed    []int                   `json:"failed"`
	Created   map[int]string          `json:"created"`
	Errors    map[int]*types.RowError `json:"errors"`
	UIDMap    map[string]string       `json:"uid_map,omitempty"`
}

// New returns an empty manifest for a fresh run.
func New(id string, total int) *Manifest {
	return &Manifest{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		Total:     total,
		Created:   make(map[int]string),
		Errors:    make(map[int]*types.RowError),
		UIDMap:    make(map[string]string),
	}
}

// RecordSuccess marks an original row index as created with the given key.
func (m *Manifest) RecordSuccess(index int, key string) {
	m.Succeeded = append(m.Succeeded, index)
	m.Created[index] = key
	delete(m.Errors, index)
}

// RecordFailure marks an original row index as failed with error detail.
func (m *Manifest) RecordFailure(index int, rowErr *types.RowError) {
	m.Failed = append(m.Failed, index)
	m.Errors[index] = rowErr
}

// Normalize sorts the index sets. Call after batch updates so callers see
// deterministic order.
func (m *Manifest) Normalize() {
	sort.Ints(m.Succeeded)
	sort.Ints(m.Failed)
}

// ApplyRetry merges a retry's outcomes (keyed by original row index) into
// the manifest: succeeded indices union, the failed set becomes exactly the
// update's failed set, created keys merge, and error entries for rows that
// newly succeeded are pruned.
func (m *Manifest) ApplyRetry(update *Manifest) {
	seen := make(map[int]bool, len(m.Succeeded))
	for _, i := range m.Succeeded {
		seen[i] = true
	}
	for _, i := range update.Succeeded {
		if !seen[i] {
			m.Succeeded = append(m.Succeeded, i)
			seen[i] = true
		}
	}

	m.Failed = append([]int(nil), update.Failed...)

	for i, key := range update.Created {
		m.Created[i] = key
	}
	for i, rowErr := range update.Errors {
		m.Errors[i] = rowErr
	}
	for i := range m.Errors {
		if seen[i] {
			delete(m.Errors, i)
		}
	}

	// UIDMap is omitted from JSON when empty, so a manifest loaded from a
	// store backend can carry a nil map here.
	if m.UIDMap == nil {
		m.UIDMap = make(map[string]string, len(update.UIDMap))
	}
	for uid, key := range update.UIDMap {
		m.UIDMap[uid] = key
	}

	m.Normalize()
}

// Validate checks the manifest invariants. It exists for tests and for
// failing loudly when a store hands back a corrupted record.
func (m *Manifest) Validate() error {
	inSucceeded := make(map[int]bool, len(m.Succeeded))
	for _, i := range m.Succeeded {
		if i < 0 || i >= m.Total {
			return fmt.Errorf("manifest %s: succeeded index %d outside [0,%d)", m.ID, i, m.Total)
		}
		inSucceeded[i] = true
		if _, ok := m.Created[i]; !ok {
			return fmt.Errorf("manifest %s: succeeded index %d has no created key", m.ID, i)
		}
		if _, ok := m.Errors[i]; ok {
			return fmt.Errorf("manifest %s: succeeded index %d still has an error entry", m.ID, i)
		}
	}
	for _, i := range m.Failed {
		if i < 0 || i >= m.Total {
			return fmt.Errorf("manifest %s: failed index %d outside [0,%d)", m.ID, i, m.Total)
		}
		if inSucceeded[i] {
			return fmt.Errorf("manifest %s: index %d in both succeeded and failed", m.ID, i)
		}
		if _, ok := m.Errors[i]; !ok {
			return fmt.Errorf("manifest %s: failed index %d has no error entry", m.ID, i)
		}
		if _, ok := m.Created[i]; ok {
			return fmt.Errorf("manifest %s: failed index %d has a created key", m.ID, i)
		}
	}
	return nil
}

// Results expands the manifest into the caller-facing per-row outcome list,
// sorted ascending by original index and covering every recorded row once.
func (m *Manifest) Results() []types.RowResult {
	out := make([]types.RowResult, 0, len(m.Succeeded)+len(m.Failed))
	for _, i := range m.Succeeded {
		out = append(out, types.RowResult{Index: i, Success: true, Key: m.Created[i]})
	}
	for _, i := range m.Failed {
		out = append(out, types.RowResult{Index: i, Success: false, Err: m.Errors[i]})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Index < out[b].Index })
	return out
}
