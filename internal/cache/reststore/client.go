// Package reststore is the HTTP cache backend for managed Redis services
// exposing an Upstash-compatible REST API. Functionally equivalent to the
// direct backend from the caller's viewpoint.
package reststore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kaosmaps/kaos-worker/internal/httpclient"
	"github.com/kaosmaps/kaos-worker/internal/observability"
)

type Client struct {
	base  string
	token string
	hc    *http.Client
}

func New(baseURL, token string) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("rest cache url is required")
	}
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
		hc:    httpclient.NewOutbound(),
	}, nil
}

// result is the REST API envelope: {"result": ...} or {"error": "..."}.
type result struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func (c *Client) call(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, fmt.Errorf("rest cache request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rest cache %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("rest cache read: %w", err)
	}

	var env result
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("rest cache decode: %w", err)
	}
	if env.Error != "" {
		return nil, fmt.Errorf("rest cache: %s", env.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rest cache: status %d", resp.StatusCode)
	}
	return env.Result, nil
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	raw, err := c.call(ctx, http.MethodGet, "/get/"+url.PathEscape(key), nil)
	observability.ObserveCacheOp("get", err, time.Since(start).Seconds())
	if err != nil {
		return nil, false, err
	}
	if string(raw) == "null" {
		return nil, false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false, fmt.Errorf("rest cache GET %q: %w", key, err)
	}
	return []byte(s), true, nil
}

func (c *Client) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	start := time.Now()
	path := "/set/" + url.PathEscape(key)
	if ttl > 0 {
		path += fmt.Sprintf("?EX=%d", int(ttl.Seconds()))
	}
	_, err := c.call(ctx, http.MethodPost, path, val)
	observability.ObserveCacheOp("set", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("rest cache SET %q: %w", key, err)
	}
	return nil
}

// SetMulti issues one pipeline call carrying every SET.
func (c *Client) SetMulti(ctx context.Context, kv map[string][]byte, ttl time.Duration) error {
	start := time.Now()
	if len(kv) == 0 {
		observability.ObserveCacheOp("pipeline", nil, time.Since(start).Seconds())
		return nil
	}

	cmds := make([][]any, 0, len(kv))
	for k, v := range kv {
		cmd := []any{"SET", k, string(v)}
		if ttl > 0 {
			cmd = append(cmd, "EX", int(ttl.Seconds()))
		}
		cmds = append(cmds, cmd)
	}
	body, err := json.Marshal(cmds)
	if err != nil {
		return fmt.Errorf("rest cache pipeline encode: %w", err)
	}

	_, err = c.call(ctx, http.MethodPost, "/pipeline", body)
	observability.ObserveCacheOp("pipeline", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("rest cache pipeline %d keys: %w", len(kv), err)
	}
	return nil
}

func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	start := time.Now()
	raw, err := c.call(ctx, http.MethodGet, "/keys/"+url.PathEscape(pattern), nil)
	observability.ObserveCacheOp("keys", err, time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	var ks []string
	if err := json.Unmarshal(raw, &ks); err != nil {
		return nil, fmt.Errorf("rest cache KEYS %q: %w", pattern, err)
	}
	return ks, nil
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	start := time.Now()
	cmd := make([]any, 0, len(keys)+1)
	cmd = append(cmd, "DEL")
	for _, k := range keys {
		cmd = append(cmd, k)
	}
	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("rest cache DEL encode: %w", err)
	}
	_, err = c.call(ctx, http.MethodPost, "", body)
	observability.ObserveCacheOp("del", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("rest cache DEL %d keys: %w", len(keys), err)
	}
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	start := time.Now()
	_, err := c.call(ctx, http.MethodGet, "/ping", nil)
	observability.ObserveCacheOp("ping", err, time.Since(start).Seconds())
	return err
}

func (c *Client) Close() error { return nil }
