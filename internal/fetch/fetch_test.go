package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kaosmaps/kaos-worker/internal/observability"
)

func testClient() *Client {
	return New(&http.Client{}, nil, nil)
}

func TestDo_SuccessFirstAttempt(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("X-Rate-Limit-Remaining", "399")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	resp, err := testClient().Do(context.Background(), Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
	if string(resp.Body) != `{"ok":true}` {
		t.Fatalf("body = %q", resp.Body)
	}
	if resp.Header.Get("X-Rate-Limit-Remaining") != "399" {
		t.Fatalf("headers not preserved")
	}
}

func TestDo_4xxIsTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient().Do(context.Background(), Request{
		URL:        srv.URL,
		Retries:    3,
		RetryDelay: time.Millisecond,
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if KindOf(err) != KindUpstream4xx {
		t.Fatalf("kind = %q, want %q", KindOf(err), KindUpstream4xx)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, 4xx must not be retried", calls.Load())
	}
}

func TestDo_5xxRetriesUpToBound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient().Do(context.Background(), Request{
		URL:        srv.URL,
		Retries:    3,
		RetryDelay: time.Millisecond,
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if KindOf(err) != KindUpstream5xx {
		t.Fatalf("kind = %q, want %q", KindOf(err), KindUpstream5xx)
	}
	if calls.Load() != 4 {
		t.Fatalf("calls = %d, want 1 + 3 retries", calls.Load())
	}
}

func TestDo_5xxThenSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := testClient().Do(context.Background(), Request{
		URL:        srv.URL,
		Retries:    3,
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if string(resp.Body) != "ok" || calls.Load() != 3 {
		t.Fatalf("body=%q calls=%d", resp.Body, calls.Load())
	}
}

func Test429_IsRateLimitedAndRetryable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient().Do(context.Background(), Request{
		URL:        srv.URL,
		Retries:    1,
		RetryDelay: time.Millisecond,
	})
	if KindOf(err) != KindRateLimited {
		t.Fatalf("kind = %q, want %q", KindOf(err), KindRateLimited)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, 429 should be retried", calls.Load())
	}
}

func TestDo_ShouldRetryVeto(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testClient().Do(context.Background(), Request{
		URL:         srv.URL,
		Retries:     3,
		RetryDelay:  time.Millisecond,
		ShouldRetry: func(error) bool { return false },
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, veto should stop retries", calls.Load())
	}
}

func TestDo_TimeoutKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := testClient().Do(context.Background(), Request{
		URL:     srv.URL,
		Timeout: 20 * time.Millisecond,
		Retries: 0,
	})
	if KindOf(err) != KindTimeout {
		t.Fatalf("kind = %q, want %q", KindOf(err), KindTimeout)
	}
}

func TestDo_NetworkKind(t *testing.T) {
	// closed server -> connection refused
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := testClient().Do(context.Background(), Request{URL: url, Retries: 0})
	if KindOf(err) != KindNetwork {
		t.Fatalf("kind = %q, want %q", KindOf(err), KindNetwork)
	}
}

func TestDo_RecordsUpstreamLatency(t *testing.T) {
	observability.Init(nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	if _, err := testClient().Do(context.Background(), Request{URL: srv.URL}); err != nil {
		t.Fatalf("Do: %v", err)
	}

	host := strings.TrimPrefix(srv.URL, "http://")
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "upstream_latency_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "upstream" && lp.GetValue() == host {
					if m.GetHistogram().GetSampleCount() == 0 {
						t.Fatalf("no latency samples for %s", host)
					}
					return
				}
			}
		}
	}
	t.Fatalf("upstream_latency_seconds not recorded for %s", host)
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		kind Kind
		want bool
	}{
		{KindTimeout, true},
		{KindNetwork, true},
		{KindUpstream5xx, true},
		{KindRateLimited, true},
		{KindUpstream4xx, false},
		{KindParse, false},
	}
	for _, c := range cases {
		err := &Error{Kind: c.kind, URL: "http://example"}
		if got := Retryable(err); got != c.want {
			t.Fatalf("Retryable(%s) = %v, want %v", c.kind, got, c.want)
		}
	}
}

func TestDo_ContextCancelDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := testClient().Do(ctx, Request{
		URL:        srv.URL,
		Retries:    5,
		RetryDelay: 10 * time.Second,
	})
	if err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
