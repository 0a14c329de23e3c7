package manifest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	// SQLite driver, registered as "sqlite3".
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore persists manifests in a SQLite database. Useful when the state
// dir lives on a shared volume and callers want transactional overwrites.
type SQLStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

const sqlSchema = `
CREATE TABLE IF NOT EXISTS manifests (
	id         TEXT PRIMARY KEY,
	body       TEXT NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_manifests_expires ON manifests(expires_at);
`

// OpenSQLStore opens (creating if needed) a SQLite-backed store at path.
// A zero ttl means DefaultTTL.
func OpenSQLStore(path string, ttl time.Duration) (*SQLStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open manifest db: %w", err)
	}
	if _, err := db.Exec(sqlSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init manifest schema: %w", err)
	}
	return &SQLStore{db: db, ttl: ttl, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error { return s.db.Close() }

// Put upserts the manifest row and opportunistically clears expired rows.
func (s *SQLStore) Put(ctx context.Context, m *Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest %s: %w", m.ID, err)
	}
	now := s.now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO manifests (id, body, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET body = excluded.body, expires_at = excluded.expires_at`,
		m.ID, string(data), now.Add(s.ttl).Unix())
	if err != nil {
		return fmt.Errorf("store manifest %s: %w", m.ID, err)
	}
	_, _ = s.db.ExecContext(ctx, `DELETE FROM manifests WHERE expires_at < ?`, now.Unix())
	return nil
}

// Get loads a manifest, treating expired rows the same as missing ones.
func (s *SQLStore) Get(ctx context.Context, id string) (*Manifest, error) {
	var body string
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT body, expires_at FROM manifests WHERE id = ?`, id).Scan(&body, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", id, err)
	}
	if s.now().Unix() > expiresAt {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM manifests WHERE id = ?`, id)
		return nil, ErrNotFound
	}
	var m Manifest
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", id, err)
	}
	return &m, nil
}
