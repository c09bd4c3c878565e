// Package collector defines the unit of work of the ingestion engine: the
// interval collector lifecycle, the stream collector engine and the
// registration mechanism the worker builds its set from.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kaosmaps/kaos-worker/internal/cache"
	"github.com/kaosmaps/kaos-worker/internal/cache/keys"
	"github.com/kaosmaps/kaos-worker/internal/fetch"
	"github.com/kaosmaps/kaos-worker/internal/logger"
	"github.com/kaosmaps/kaos-worker/internal/observability"
)

// Collector is an interval-driven unit of work.
type Collector interface {
	Name() string
	Period() time.Duration
	Run(ctx context.Context) error
}

// StreamCollector holds a persistent upstream connection for the process
// lifetime and persists its buffer on a timer.
type StreamCollector interface {
	Name() string
	Start(ctx context.Context) error
	Stop()
}

// Status values written to the metadata keys.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// errorThreshold is the consecutive-failure count at which a collector's
// status flips from degraded to error.
const errorThreshold = 3

type Descriptor struct {
	Name       string
	TTL        time.Duration
	Period     time.Duration
	Retries    int           // additional attempts; default 3
	RetryDelay time.Duration // base backoff; default 1s
}

func (d Descriptor) withDefaults() Descriptor {
	if d.Retries == 0 {
		d.Retries = 3
	}
	if d.Retries < 0 {
		d.Retries = 0
	}
	if d.RetryDelay <= 0 {
		d.RetryDelay = time.Second
	}
	return d
}

// Validate enforces TTL >= 1.5 * period so a transiently failing collector
// still serves stale-but-present data until the next success.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("collector: name is required")
	}
	if d.Period <= 0 {
		return fmt.Errorf("collector %s: period must be positive", d.Name)
	}
	if d.TTL < d.Period*3/2 {
		return fmt.Errorf("collector %s: ttl %s < 1.5x period %s", d.Name, d.TTL, d.Period)
	}
	return nil
}

// CollectFunc produces and stores one snapshot. Implementations store
// through the Base helpers so TTLs stay consistent.
type CollectFunc func(ctx context.Context) error

// Base implements the interval lifecycle: re-entrancy guard, retry with
// exponential backoff, payload writes and metadata updates after every run.
type Base struct {
	desc    Descriptor
	store   cache.Store
	logger  *slog.Logger
	clock   clockwork.Clock
	collect CollectFunc

	running           atomic.Bool
	consecutiveErrors atomic.Int64
	lastRun           atomic.Int64 // unix ms
}

func NewBase(desc Descriptor, store cache.Store, logger *slog.Logger, clock clockwork.Clock, collect CollectFunc) (*Base, error) {
	desc = desc.withDefaults()
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Base{
		desc:    desc,
		store:   store,
		logger:  logger.With("collector", desc.Name),
		clock:   clock,
		collect: collect,
	}, nil
}

func (b *Base) Name() string          { return b.desc.Name }
func (b *Base) Period() time.Duration { return b.desc.Period }
func (b *Base) TTL() time.Duration    { return b.desc.TTL }

// LastRun returns the unix-ms timestamp of the last completed run.
func (b *Base) LastRun() int64 { return b.lastRun.Load() }

// IsRunning reports whether a run is in flight.
func (b *Base) IsRunning() bool { return b.running.Load() }

// Run executes one collection cycle. Overlapping ticks are skipped. The
// metadata keys are updated whether the run succeeds or fails; the returned
// error is informational only and must not stop the scheduler.
func (b *Base) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		b.logger.Warn("run skipped: previous run still in flight")
		observability.ObserveCollectorRun(b.desc.Name, "skipped", 0)
		return nil
	}
	defer b.running.Store(false)

	// tag the context so shared components (fetch client, cache) attribute
	// their log records to this collector
	ctx = logger.WithCollector(ctx, b.desc.Name)

	start := b.clock.Now()
	err := b.collectWithRetry(ctx)
	elapsed := b.clock.Since(start)
	b.lastRun.Store(b.clock.Now().UnixMilli())

	if err != nil {
		n := b.consecutiveErrors.Add(1)
		status := StatusDegraded
		if n >= errorThreshold {
			status = StatusError
		}
		b.writeMeta(ctx, status, n)
		observability.ObserveCollectorRun(b.desc.Name, "error", elapsed.Seconds())
		b.logger.Error("collect failed", "err", err, "consecutive_errors", n, "elapsed_ms", elapsed.Milliseconds())
		return err
	}

	b.consecutiveErrors.Store(0)
	b.writeMeta(ctx, StatusOK, 0)
	observability.ObserveCollectorRun(b.desc.Name, "ok", elapsed.Seconds())
	b.logger.Info("collect ok", "elapsed_ms", elapsed.Milliseconds())
	return nil
}

func (b *Base) collectWithRetry(ctx context.Context) error {
	var lastErr error
	for attempt := 0; attempt <= b.desc.Retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = b.collect(ctx)
		if lastErr == nil {
			return nil
		}
		if !fetch.Retryable(lastErr) || attempt == b.desc.Retries {
			break
		}
		delay := b.desc.RetryDelay << uint(attempt)
		b.logger.Warn("collect retrying", "attempt", attempt+1, "delay", delay, "err", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.clock.After(delay):
		}
	}
	return lastErr
}

// StoreJSON writes v to key with the descriptor TTL.
func (b *Base) StoreJSON(ctx context.Context, key string, v any) error {
	return b.StoreJSONTTL(ctx, key, v, b.desc.TTL)
}

// StoreJSONTTL is the multi-key variant for collectors owning several keys
// with distinct TTLs.
func (b *Base) StoreJSONTTL(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal payload for %q: %w", key, err)
	}
	return b.StoreRaw(ctx, key, data, ttl)
}

func (b *Base) StoreRaw(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := b.store.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("store %q: %w", key, err)
	}
	return nil
}

func (b *Base) writeMeta(ctx context.Context, status string, errCount int64) {
	writeMeta(ctx, b.store, b.clock, b.logger, b.desc.Name, status, errCount)
}

// writeMeta updates the three metadata keys in one pipelined write; they
// carry no TTL so the health surface keeps observing a collector after its
// payload expires.
func writeMeta(ctx context.Context, store cache.Store, clock clockwork.Clock, logger *slog.Logger, name, status string, errCount int64) {
	kv := map[string][]byte{
		keys.MetaStatus(name):     []byte(status),
		keys.MetaLastRun(name):    []byte(strconv.FormatInt(clock.Now().UnixMilli(), 10)),
		keys.MetaErrorCount(name): []byte(strconv.FormatInt(errCount, 10)),
	}
	if err := store.SetMulti(ctx, kv, 0); err != nil {
		logger.Warn("metadata write failed", "err", err)
	}
}
