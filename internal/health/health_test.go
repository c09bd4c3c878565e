package health

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"

	"github.com/kaosmaps/kaos-worker/internal/cache/keys"
	"github.com/kaosmaps/kaos-worker/internal/cache/redisstore"
	"github.com/kaosmaps/kaos-worker/internal/scheduler"
)

func newHandler(t *testing.T) (*Handler, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	store, err := redisstore.New(context.Background(), mr.Addr())
	if err != nil {
		t.Fatalf("redisstore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := scheduler.New(logger, clockwork.NewFakeClock(), nil, nil)
	return NewHandler(store, sched, logger), mr
}

func setMeta(mr *miniredis.Miniredis, name, status string, lastRun, errCount string) {
	mr.Set(keys.MetaStatus(name), status)
	mr.Set(keys.MetaLastRun(name), lastRun)
	mr.Set(keys.MetaErrorCount(name), errCount)
}

func TestReport_AllCollectorsOKIsHealthy(t *testing.T) {
	h, mr := newHandler(t)
	setMeta(mr, "seismic", "ok", "1700000000000", "0")
	setMeta(mr, "aircraft", "ok", "1700000001000", "0")

	rep, code := h.Report(context.Background())
	if code != http.StatusOK {
		t.Fatalf("code = %d, want 200", code)
	}
	if rep.Status != "healthy" {
		t.Fatalf("status = %q, want healthy", rep.Status)
	}
	if rep.Redis != "connected" {
		t.Fatalf("redis = %q", rep.Redis)
	}
	if len(rep.Collectors) != 2 {
		t.Fatalf("collectors = %v, want 2 entries", rep.Collectors)
	}
	cs := rep.Collectors["seismic"]
	if cs.Status != "ok" || cs.LastRun != 1700000000000 || cs.ErrorCount != 0 {
		t.Fatalf("seismic status = %+v", cs)
	}
}

func TestReport_AnyErrorCollectorDegradesWith200(t *testing.T) {
	h, mr := newHandler(t)
	setMeta(mr, "seismic", "ok", "1700000000000", "0")
	setMeta(mr, "fires", "error", "1700000002000", "5")

	rep, code := h.Report(context.Background())
	if code != http.StatusOK {
		t.Fatalf("code = %d, want 200 even when degraded", code)
	}
	if rep.Status != "degraded" {
		t.Fatalf("status = %q, want degraded", rep.Status)
	}
	if rep.Collectors["fires"].ErrorCount != 5 {
		t.Fatalf("fires = %+v", rep.Collectors["fires"])
	}
}

func TestReport_DegradedCollectorAlsoDegrades(t *testing.T) {
	h, mr := newHandler(t)
	setMeta(mr, "aurora", "degraded", "1700000000000", "1")

	rep, _ := h.Report(context.Background())
	if rep.Status != "degraded" {
		t.Fatalf("status = %q, want degraded", rep.Status)
	}
}

func TestReport_CacheDownIsUnhealthy500(t *testing.T) {
	h, mr := newHandler(t)
	mr.Close()

	rep, code := h.Report(context.Background())
	if code != http.StatusInternalServerError {
		t.Fatalf("code = %d, want 500", code)
	}
	if rep.Status != "unhealthy" || rep.Redis != "disconnected" {
		t.Fatalf("report = %+v", rep)
	}
}

func TestReport_IgnoresForeignKeys(t *testing.T) {
	h, mr := newHandler(t)
	setMeta(mr, "seismic", "ok", "1", "0")
	mr.Set("kaos:seismic:day", `{}`)

	rep, _ := h.Report(context.Background())
	if len(rep.Collectors) != 1 {
		t.Fatalf("collectors = %v, want payload keys excluded", rep.Collectors)
	}
}
