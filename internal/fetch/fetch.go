// Package fetch is the single outbound HTTP path for collectors. It layers
// per-call timeouts, bounded retries with exponential backoff and error
// classification over the shared outbound transport.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kaosmaps/kaos-worker/internal/observability"
)

const (
	DefaultTimeout    = 30 * time.Second
	DefaultRetries    = 3
	DefaultRetryDelay = time.Second

	maxBodyBytes = 64 << 20
)

type Request struct {
	URL     string
	Method  string // default GET
	Headers map[string]string
	Body    []byte

	Timeout    time.Duration // per attempt; default 30s
	Retries    int           // additional attempts after the first; default 3
	RetryDelay time.Duration // base backoff; default 1s

	// ShouldRetry, when set, can veto a retry that classification would
	// otherwise allow. It is never consulted for terminal 4xx errors.
	ShouldRetry func(error) bool
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Client struct {
	hc     *http.Client
	clock  clockwork.Clock
	logger *slog.Logger
}

func New(hc *http.Client, clock clockwork.Clock, logger *slog.Logger) *Client {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{hc: hc, clock: clock, logger: logger}
}

// Do performs the request with retries. The k-th retry waits
// RetryDelay * 2^k before re-issuing. 4xx responses (except 429) are
// terminal; 5xx, network errors and timeouts are retried up to the bound.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Timeout <= 0 {
		req.Timeout = DefaultTimeout
	}
	if req.Retries < 0 {
		req.Retries = 0
	}
	if req.RetryDelay <= 0 {
		req.RetryDelay = DefaultRetryDelay
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		resp, err := c.attempt(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt >= req.Retries || !Retryable(err) {
			break
		}
		if req.ShouldRetry != nil && !req.ShouldRetry(err) {
			break
		}

		delay := req.RetryDelay << uint(attempt)
		c.logger.WarnContext(ctx, "fetch retrying",
			"url", req.URL, "attempt", attempt+1, "delay", delay, "err", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.clock.After(delay):
		}
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, req Request) (*Response, error) {
	actx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	hr, err := http.NewRequestWithContext(actx, req.Method, req.URL, body)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: req.URL, Err: err}
	}
	for k, v := range req.Headers {
		hr.Header.Set(k, v)
	}

	start := c.clock.Now()
	resp, err := c.hc.Do(hr)
	observability.ObserveUpstreamLatency(hr.URL.Host, c.clock.Since(start).Seconds())
	if err != nil {
		if errors.Is(actx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &Error{Kind: KindTimeout, URL: req.URL, Err: err}
		}
		return nil, &Error{Kind: KindNetwork, URL: req.URL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: req.URL, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &Error{Kind: KindRateLimited, StatusCode: resp.StatusCode, URL: req.URL}
	case resp.StatusCode >= 500:
		return nil, &Error{Kind: KindUpstream5xx, StatusCode: resp.StatusCode, URL: req.URL}
	case resp.StatusCode >= 400:
		return nil, &Error{Kind: KindUpstream4xx, StatusCode: resp.StatusCode, URL: req.URL}
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}
