// Package scheduler drives interval collectors on per-collector periods and
// supervises stream collectors for the process lifetime.
package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/kaosmaps/kaos-worker/internal/collector"
)

type JobStatus struct {
	Name      string `json:"name"`
	PeriodMs  int64  `json:"periodMs"`
	LastRun   int64  `json:"lastRun"` // unix ms, 0 before first completion
	IsRunning bool   `json:"isRunning"`
	Stream    bool   `json:"stream,omitempty"`
}

type Status struct {
	Running bool        `json:"running"`
	Jobs    []JobStatus `json:"jobs"`
}

type jobState struct {
	c       collector.Collector
	lastRun int64
	running bool
}

type Scheduler struct {
	logger *slog.Logger
	clock  clockwork.Clock

	mu      sync.RWMutex
	jobs    map[string]*jobState
	streams []collector.StreamCollector
	order   []string
	running bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(logger *slog.Logger, clock clockwork.Clock, cs []collector.Collector, ss []collector.StreamCollector) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	jobs := make(map[string]*jobState, len(cs))
	order := make([]string, 0, len(cs))
	for _, c := range cs {
		jobs[c.Name()] = &jobState{c: c}
		order = append(order, c.Name())
	}
	return &Scheduler{
		logger:  logger.With("component", "scheduler"),
		clock:   clock,
		jobs:    jobs,
		streams: ss,
		order:   order,
	}
}

// Start dispatches one worker per interval collector (first run immediate,
// then period-paced) and starts every stream collector.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.running = true
	s.cancel = cancel
	s.mu.Unlock()

	for _, name := range s.order {
		st := s.jobs[name]
		s.wg.Add(1)
		go s.loop(ctx, st)
	}

	for _, sc := range s.streams {
		if err := sc.Start(ctx); err != nil {
			s.logger.Error("stream collector failed to start", "collector", sc.Name(), "err", err)
		}
	}

	s.logger.Info("scheduler started", "interval_jobs", len(s.jobs), "stream_jobs", len(s.streams))
}

// Stop cancels scheduling and stops stream collectors. In-flight runs are
// allowed to complete; no catch-up runs are scheduled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, sc := range s.streams {
		sc.Stop()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, st *jobState) {
	defer s.wg.Done()
	period := st.c.Period()
	for {
		if ctx.Err() != nil {
			return
		}
		start := s.clock.Now()
		s.setRunning(st, true)
		// Stop cancels pacing only; an in-flight run completes on its own
		// per-attempt timeouts instead of aborting mid-request
		if err := st.c.Run(context.WithoutCancel(ctx)); err != nil {
			// the collector already classified and recorded the failure
			s.logger.Debug("run returned error", "collector", st.c.Name(), "err", err)
		}
		s.setRunning(st, false)

		elapsed := s.clock.Since(start)
		s.setLastRun(st, s.clock.Now().UnixMilli())
		if elapsed > period {
			s.logger.Warn("run overran period; skipping missed ticks",
				"collector", st.c.Name(), "elapsed", elapsed, "period", period)
		}

		wait := period - elapsed
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(wait):
		}
	}
}

func (s *Scheduler) setRunning(st *jobState, v bool) {
	s.mu.Lock()
	st.running = v
	s.mu.Unlock()
}

func (s *Scheduler) setLastRun(st *jobState, t int64) {
	s.mu.Lock()
	st.lastRun = t
	s.mu.Unlock()
}

// Status returns the in-memory job table for the health surface.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := Status{Running: s.running, Jobs: make([]JobStatus, 0, len(s.order)+len(s.streams))}
	for _, name := range s.order {
		st := s.jobs[name]
		out.Jobs = append(out.Jobs, JobStatus{
			Name:      name,
			PeriodMs:  st.c.Period().Milliseconds(),
			LastRun:   st.lastRun,
			IsRunning: st.running,
		})
	}
	for _, sc := range s.streams {
		out.Jobs = append(out.Jobs, JobStatus{Name: sc.Name(), Stream: true})
	}
	return out
}
