// Package cacheaside implements the read-path fetch-through primitive used
// by per-user-parameterized handlers (weather by coordinate, tiles).
package cacheaside

import (
	"context"
	"log/slog"
	"time"

	"github.com/kaosmaps/kaos-worker/internal/cache"
	"github.com/kaosmaps/kaos-worker/internal/observability"
)

type Source string

const (
	SourceCache Source = "cache"
	SourceFetch Source = "fetch"
)

const DefaultTTL = 5 * time.Minute

type Fetcher func(ctx context.Context) ([]byte, error)

// Do returns the cached value at key when present, else invokes fetcher and
// populates the key in the background. A nil store degrades open: the
// fetcher result is served uncached. The fetcher is invoked at most once per
// call; concurrent misses on the same key may each fetch (last-writer-wins),
// which is acceptable because fetchers are idempotent reads.
func Do(ctx context.Context, store cache.Store, logger *slog.Logger, key string, ttl time.Duration, fetcher Fetcher) ([]byte, Source, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	if store == nil {
		data, err := fetcher(ctx)
		if err != nil {
			return nil, SourceFetch, err
		}
		return data, SourceFetch, nil
	}

	val, ok, err := store.Get(ctx, key)
	if err != nil {
		logger.Warn("cache-aside read failed; fetching", "key", key, "err", err)
	}
	if ok {
		observability.IncCacheHit()
		return val, SourceCache, nil
	}
	observability.IncCacheMiss()

	data, err := fetcher(ctx)
	if err != nil {
		return nil, SourceFetch, err
	}

	// fire-and-forget: a write failure must not break the response
	go func() {
		wctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Set(wctx, key, data, ttl); err != nil {
			logger.Warn("cache-aside background write failed", "key", key, "err", err)
		}
	}()

	return data, SourceFetch, nil
}
