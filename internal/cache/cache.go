// Package cache defines the backend-agnostic key/value store used by the
// worker (payload and metadata writes) and the api (reads, cache-aside).
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnconfigured is returned by Open when no backend is configured.
var ErrUnconfigured = errors.New("cache: no backend configured")

// Store is implemented by the redis and REST backends. Both are safe for
// concurrent callers; same-key writes are last-writer-wins at the server.
type Store interface {
	// Get returns (nil, false, nil) on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set writes val with ttl; ttl 0 means no expiry.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// SetMulti groups independent writes sharing one ttl.
	SetMulti(ctx context.Context, kv map[string][]byte, ttl time.Duration) error
	Keys(ctx context.Context, pattern string) ([]string, error)
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}

// WithTimeout wraps a Store so every operation is bounded by d. Callers pass
// a background-ish context; the adapter attaches the deadline.
func WithTimeout(s Store, d time.Duration) Store {
	if d <= 0 {
		return s
	}
	return &timeoutStore{inner: s, d: d}
}

type timeoutStore struct {
	inner Store
	d     time.Duration
}

func (t *timeoutStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, t.d)
}

func (t *timeoutStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.Get(ctx, key)
}

func (t *timeoutStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.Set(ctx, key, val, ttl)
}

func (t *timeoutStore) SetMulti(ctx context.Context, kv map[string][]byte, ttl time.Duration) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.SetMulti(ctx, kv, ttl)
}

func (t *timeoutStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.Keys(ctx, pattern)
}

func (t *timeoutStore) Del(ctx context.Context, keys ...string) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.Del(ctx, keys...)
}

func (t *timeoutStore) Ping(ctx context.Context) error {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.inner.Ping(ctx)
}

func (t *timeoutStore) Close() error { return t.inner.Close() }
