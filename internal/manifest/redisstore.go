package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore persists manifests in Redis with a native TTL. Suited to teams
// sharing retry state across machines; the key schema is
// "treeline:manifest:<run-id>".
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store. A zero ttl means DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(id string) string {
	return "treeline:manifest:" + id
}

// Put stores the manifest as JSON under its run key, resetting the TTL.
func (s *RedisStore) Put(ctx context.Context, m *Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest %s: %w", m.ID, err)
	}
	if err := s.client.Set(ctx, redisKey(m.ID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("store manifest %s: %w", m.ID, err)
	}
	return nil
}

// Get loads a manifest; expiry is handled by Redis itself, so a missing key
// covers both cases.
func (s *RedisStore) Get(ctx context.Context, id string) (*Manifest, error) {
	data, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", id, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", id, err)
	}
	return &m, nil
}
