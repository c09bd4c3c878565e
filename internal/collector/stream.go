package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kaosmaps/kaos-worker/internal/cache"
)

// StreamConn is one live upstream connection. ReadLoop blocks until the
// connection drops or the context is canceled; the engine reconnects.
type StreamConn interface {
	ReadLoop(ctx context.Context) error
	Close() error
}

// Dialer establishes a connection, typically rotating over a URL list.
type Dialer func(ctx context.Context) (StreamConn, error)

type StreamOpts struct {
	Name           string
	Key            string
	TTL            time.Duration
	PersistEvery   time.Duration // default 10s
	CleanupEvery   time.Duration // default 60s
	Retention      time.Duration
	ReconnectDelay time.Duration // default 5s
	FailLimit      int           // consecutive dial failures before status=error; default 5
}

func (o StreamOpts) withDefaults() StreamOpts {
	if o.PersistEvery <= 0 {
		o.PersistEvery = 10 * time.Second
	}
	if o.CleanupEvery <= 0 {
		o.CleanupEvery = time.Minute
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = 5 * time.Second
	}
	if o.FailLimit <= 0 {
		o.FailLimit = 5
	}
	return o
}

// Stream is the shared engine behind websocket/TCP collectors: it supervises
// the connection (reconnect with backoff), persists the in-memory buffer on
// a timer and evicts expired records. While the process lives it either
// holds an open connection or a pending reconnect.
type Stream struct {
	opts   StreamOpts
	store  cache.Store
	logger *slog.Logger
	clock  clockwork.Clock

	dial     Dialer
	snapshot func() any               // ordered list for the payload key
	evict    func(cutoffMs int64) int // returns evicted count

	connected atomic.Bool
	failCount atomic.Int64

	mu     sync.Mutex
	conn   StreamConn
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewStream(opts StreamOpts, store cache.Store, logger *slog.Logger, clock clockwork.Clock, dial Dialer, snapshot func() any, evict func(cutoffMs int64) int) *Stream {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		opts:     opts.withDefaults(),
		store:    store,
		logger:   logger.With("collector", opts.Name),
		clock:    clock,
		dial:     dial,
		snapshot: snapshot,
		evict:    evict,
	}
}

func (s *Stream) Name() string { return s.opts.Name }

func (s *Stream) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(3)
	go s.connectLoop(ctx)
	go s.persistLoop(ctx)
	go s.cleanupLoop(ctx)
	return nil
}

// Stop cancels persistence, cleanup and reconnects and closes the connection.
func (s *Stream) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Stream) setConn(c StreamConn) {
	s.mu.Lock()
	s.conn = c
	s.mu.Unlock()
}

// status derives the metadata status: an open connection is ok, a closed
// socket is degraded because the reconnect loop is expected to recover, and
// only a persistent inability to connect is an error.
func (s *Stream) status() (string, int64) {
	fails := s.failCount.Load()
	switch {
	case s.connected.Load():
		return StatusOK, 0
	case fails >= int64(s.opts.FailLimit):
		return StatusError, fails
	default:
		return StatusDegraded, fails
	}
}

func (s *Stream) connectLoop(ctx context.Context) {
	defer s.wg.Done()
	for ctx.Err() == nil {
		conn, err := s.dial(ctx)
		if err != nil {
			n := s.failCount.Add(1)
			s.logger.Warn("dial failed", "fail_count", n, "err", err)
			status, fails := s.status()
			writeMeta(ctx, s.store, s.clock, s.logger, s.opts.Name, status, fails)
			if !s.sleep(ctx, s.opts.ReconnectDelay) {
				return
			}
			continue
		}

		s.failCount.Store(0)
		s.connected.Store(true)
		s.setConn(conn)
		s.logger.Info("connected")

		err = conn.ReadLoop(ctx)
		s.connected.Store(false)
		s.setConn(nil)
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("connection closed; reconnecting", "err", err)
		writeMeta(ctx, s.store, s.clock, s.logger, s.opts.Name, StatusDegraded, s.failCount.Load())
		if !s.sleep(ctx, s.opts.ReconnectDelay) {
			return
		}
	}
}

func (s *Stream) persistLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := s.clock.NewTicker(s.opts.PersistEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if err := s.persist(ctx); err != nil {
				s.logger.Warn("persist failed", "err", err)
			}
		}
	}
}

func (s *Stream) persist(ctx context.Context) error {
	payload := s.snapshot()
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := s.store.Set(ctx, s.opts.Key, data, s.opts.TTL); err != nil {
		return fmt.Errorf("store %q: %w", s.opts.Key, err)
	}
	status, fails := s.status()
	writeMeta(ctx, s.store, s.clock, s.logger, s.opts.Name, status, fails)
	return nil
}

func (s *Stream) cleanupLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := s.clock.NewTicker(s.opts.CleanupEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			cutoff := s.clock.Now().Add(-s.opts.Retention).UnixMilli()
			if n := s.evict(cutoff); n > 0 {
				s.logger.Debug("evicted expired records", "count", n)
			}
		}
	}
}

func (s *Stream) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.clock.After(d):
		return true
	}
}

// PickURL selects a random endpoint from a rotation list to spread load.
func PickURL(urls []string) string {
	if len(urls) == 0 {
		return ""
	}
	return urls[rand.Intn(len(urls))]
}
