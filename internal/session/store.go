package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/miradorstack/mirador-yield/internal/cache"
)

// ErrNoSession is returned by Load when the id is unknown or expired.
var ErrNoSession = errors.New("session not found")

// Store persists session snapshots. Load returns an independent copy, so a
// caller's changes are invisible until Save.
type Store interface {
	Load(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps snapshots in a size-bounded LRU with an idle TTL.
type MemoryStore struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryStore returns a store holding at most size sessions, each dropped
// after ttl without a Save. onEvict may be nil.
func NewMemoryStore(size int, ttl time.Duration, onEvict func(id string)) *MemoryStore {
	if size <= 0 {
		size = 1024
	}
	var cb expirable.EvictCallback[string, []byte]
	if onEvict != nil {
		cb = func(id string, _ []byte) { onEvict(id) }
	}
	return &MemoryStore{lru: expirable.NewLRU[string, []byte](size, cb, ttl)}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	data, ok := m.lru.Get(id)
	if !ok {
		return nil, ErrNoSession
	}
	return decode(data)
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	m.lru.Add(s.ID, data)
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.lru.Remove(id)
	return nil
}

// Len returns the number of live sessions.
func (m *MemoryStore) Len() int {
	return m.lru.Len()
}

// CacheStore keeps snapshots in a cache.Provider such as Valkey, so several
// replicas can serve the same conversation.
type CacheStore struct {
	provider cache.Provider
	prefix   string
	ttl      time.Duration
}

// NewCacheStore returns a store writing keys prefix+id with the given TTL.
func NewCacheStore(provider cache.Provider, prefix string, ttl time.Duration) *CacheStore {
	if prefix == "" {
		prefix = "mirador-yield:session:"
	}
	return &CacheStore{provider: provider, prefix: prefix, ttl: ttl}
}

func (c *CacheStore) key(id string) string {
	return c.prefix + id
}

// Load implements Store.
func (c *CacheStore) Load(ctx context.Context, id string) (*Session, error) {
	data, err := c.provider.Get(ctx, c.key(id))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	return decode(data)
}

// Save implements Store.
func (c *CacheStore) Save(ctx context.Context, s *Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	if err := c.provider.Set(ctx, c.key(s.ID), data, c.ttl); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	return nil
}

// Delete implements Store.
func (c *CacheStore) Delete(ctx context.Context, id string) error {
	if err := c.provider.Del(ctx, c.key(id)); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// Ping checks the backing cache.
func (c *CacheStore) Ping(ctx context.Context) error {
	return c.provider.Ping(ctx)
}
