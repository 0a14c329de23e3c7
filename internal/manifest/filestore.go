package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// fileRecord is the on-disk envelope: the manifest plus its expiry stamp.
type fileRecord struct {
	ExpiresAt time.Time `json:"expires_at"`
	Manifest  *Manifest `json:"manifest"`
}

// FileStore persists manifests as one JSON file per run under a state
// directory. It is the default backend: no external service, and a run's
// manifest can be inspected with cat.
type FileStore struct {
	dir string
	ttl time.Duration

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewFileStore creates a file-backed store rooted at dir. A zero ttl means
// DefaultTTL.
func NewFileStore(dir string, ttl time.Duration) (*FileStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create manifest dir: %w", err)
	}
	return &FileStore{dir: dir, ttl: ttl, now: time.Now}, nil
}

// Path returns the file a manifest ID is stored at.
func (s *FileStore) Path(id string) string {
	return filepath.Join(s.dir, sanitizeID(id)+".json")
}

// Put writes the manifest with a fresh expiry stamp, replacing any prior
// file atomically via rename.
func (s *FileStore) Put(ctx context.Context, m *Manifest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rec := fileRecord{
		ExpiresAt: s.now().Add(s.ttl),
		Manifest:  m,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest %s: %w", m.ID, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".manifest-*")
	if err != nil {
		return fmt.Errorf("write manifest %s: %w", m.ID, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write manifest %s: %w", m.ID, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write manifest %s: %w", m.ID, err)
	}
	if err := os.Rename(tmpName, s.Path(m.ID)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write manifest %s: %w", m.ID, err)
	}

	s.sweep()
	return nil
}

// Get loads a manifest, treating expired files the same as missing ones.
func (s *FileStore) Get(ctx context.Context, id string) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.Path(id)) // #nosec G304 - path built from sanitized ID
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", id, err)
	}

	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", id, err)
	}
	if rec.Manifest == nil {
		return nil, fmt.Errorf("parse manifest %s: empty record", id)
	}
	if s.now().After(rec.ExpiresAt) {
		// Expired. Remove lazily and report as absent.
		_ = os.Remove(s.Path(id))
		return nil, ErrNotFound
	}
	return rec.Manifest, nil
}

// sweep removes expired manifest files. Best effort; runs on every Put so a
// long-lived state dir doesn't accumulate stale runs.
func (s *FileStore) sweep() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	now := s.now()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		data, err := os.ReadFile(path) // #nosec G304 - entries of our own dir
		if err != nil {
			continue
		}
		var rec fileRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if now.After(rec.ExpiresAt) {
			_ = os.Remove(path)
		}
	}
}

// sanitizeID keeps manifest IDs path-safe.
func sanitizeID(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}
