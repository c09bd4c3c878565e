// Package health serves the worker's operational surface: a collector
// status rollup, readiness and liveness probes, and Prometheus metrics.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kaosmaps/kaos-worker/internal/api"
	"github.com/kaosmaps/kaos-worker/internal/cache"
	"github.com/kaosmaps/kaos-worker/internal/cache/keys"
	"github.com/kaosmaps/kaos-worker/internal/scheduler"
)

type CollectorStatus struct {
	Status     string `json:"status"`
	LastRun    int64  `json:"lastRun,omitempty"` // unix ms
	ErrorCount int64  `json:"errorCount,omitempty"`
}

type Report struct {
	Status     string                     `json:"status"`
	Uptime     string                     `json:"uptime"`
	Redis      string                     `json:"redis"`
	Scheduler  scheduler.Status           `json:"scheduler"`
	Collectors map[string]CollectorStatus `json:"collectors"`
}

type Handler struct {
	store   cache.Store
	sched   *scheduler.Scheduler
	logger  *slog.Logger
	started time.Time
}

func NewHandler(store cache.Store, sched *scheduler.Scheduler, logger *slog.Logger) *Handler {
	return &Handler{store: store, sched: sched, logger: logger, started: time.Now()}
}

// Report assembles the rollup: any collector in error while the cache is up
// means degraded; an unreachable cache means unhealthy.
func (h *Handler) Report(ctx context.Context) (Report, int) {
	rep := Report{
		Status:     "healthy",
		Uptime:     time.Since(h.started).Round(time.Second).String(),
		Redis:      "connected",
		Scheduler:  h.sched.Status(),
		Collectors: map[string]CollectorStatus{},
	}

	if err := h.store.Ping(ctx); err != nil {
		rep.Redis = "disconnected"
		rep.Status = "unhealthy"
		return rep, http.StatusInternalServerError
	}

	statusKeys, err := h.store.Keys(ctx, keys.MetaStatusPattern)
	if err != nil {
		h.logger.Warn("health meta scan failed", "err", err)
		rep.Status = "degraded"
		return rep, http.StatusOK
	}

	for _, sk := range statusKeys {
		name := keys.CollectorFromStatusKey(sk)
		if name == "" {
			continue
		}
		cs := CollectorStatus{Status: "unknown"}
		if v, ok, err := h.store.Get(ctx, sk); err == nil && ok {
			cs.Status = string(v)
		}
		if v, ok, err := h.store.Get(ctx, keys.MetaLastRun(name)); err == nil && ok {
			cs.LastRun, _ = strconv.ParseInt(string(v), 10, 64)
		}
		if v, ok, err := h.store.Get(ctx, keys.MetaErrorCount(name)); err == nil && ok {
			cs.ErrorCount, _ = strconv.ParseInt(string(v), 10, 64)
		}
		rep.Collectors[name] = cs
		if cs.Status == "degraded" || cs.Status == "error" {
			rep.Status = "degraded"
		}
	}
	return rep, http.StatusOK
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	rep, code := h.Report(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(rep)
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := h.store.Ping(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "not_ready"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

func live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Run serves the health listener until ctx is cancelled.
func Run(ctx context.Context, addr string, h *Handler, metrics http.Handler, logger *slog.Logger) error {
	r := chi.NewRouter()
	r.Use(api.Recover())
	r.Use(api.CORS())

	r.Get("/health", h.health)
	r.Get("/ready", h.ready)
	r.Get("/live", live)
	r.Get("/metrics", metrics.ServeHTTP)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("health listen", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
