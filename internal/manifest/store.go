package manifest

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.Get when no manifest exists under the ID.
// Stores make no distinction between true absence and TTL expiry.
var ErrNotFound = errors.New("manifest not found")

// PutStatus reports what happened to a manifest write. Persistence is
// best-effort: a failed write degrades resumability but never fails the run,
// and the status lets callers and tests see the degradation explicitly
// instead of inferring it from logs.
type PutStatus int

const (
	// PutStatusStored means the manifest was persisted with its TTL.
	PutStatusStored PutStatus = iota
	// PutStatusSkipped means the write failed and was swallowed.
	PutStatusSkipped
	// PutStatusUnchanged means no write was attempted; the stored state was
	// returned as-is.
	PutStatusUnchanged
)

func (s PutStatus) String() string {
	switch s {
	case PutStatusStored:
		return "stored"
	case PutStatusSkipped:
		return "skipped"
	case PutStatusUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// Store persists run manifests with a retention window.
//
// Put overwrites any prior value under the same ID (last-writer-wins; no
// optimistic concurrency, concurrent retries of one run ID are unsupported).
// Get returns ErrNotFound for both absent and expired manifests.
type Store interface {
	Put(ctx context.Context, m *Manifest) error
	Get(ctx context.Context, id string) (*Manifest, error)
}
