package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kaosmaps/kaos-worker/internal/cache"
	"github.com/kaosmaps/kaos-worker/internal/collector"
	"github.com/kaosmaps/kaos-worker/internal/fetch"
)

// Generic runs one JSON-declared source: fetch, optional dotted-path
// extraction, field renaming, equality filtering, then a single-key write.
type Generic struct {
	*collector.Base
	decl   Declaration
	fc     *fetch.Client
	logger *slog.Logger
}

func NewGeneric(decl Declaration, store cache.Store, fc *fetch.Client, logger *slog.Logger, clock clockwork.Clock) (*Generic, error) {
	g := &Generic{decl: decl, fc: fc, logger: logger.With("collector", decl.Name)}
	base, err := collector.NewBase(collector.Descriptor{
		Name:   decl.Name,
		TTL:    decl.TTL(),
		Period: decl.Interval(),
	}, store, logger, clock, g.collect)
	if err != nil {
		return nil, err
	}
	g.Base = base
	return g, nil
}

func (g *Generic) collect(ctx context.Context) error {
	headers := make(map[string]string, len(g.decl.Fetch.Headers)+1)
	for k, v := range g.decl.Fetch.Headers {
		headers[k] = v
	}
	if a := g.decl.Auth; a != nil {
		if name, value, ok := a.AuthHeader(); ok {
			headers[name] = value
		} else {
			g.logger.Warn("auth env var missing; proceeding unauthenticated", "env", a.EnvVar)
		}
	}

	timeout := time.Duration(g.decl.Fetch.Timeout) * time.Millisecond
	resp, err := g.fc.Do(ctx, fetch.Request{
		URL:     g.decl.Fetch.URL,
		Method:  g.decl.Fetch.Method,
		Headers: headers,
		Timeout: timeout,
	})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", g.decl.Name, err)
	}

	var doc any
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return fetch.ParseError(g.decl.Fetch.URL, err)
	}

	items := g.transform(doc)
	return g.StoreJSON(ctx, g.decl.Redis.Key, items)
}

func (g *Generic) transform(doc any) []any {
	if t := g.decl.Transform; t != nil && t.DataPath != "" {
		if v, ok := ResolvePath(doc, t.DataPath); ok {
			doc = v
		} else {
			g.logger.Warn("dataPath not found in payload", "path", t.DataPath)
			doc = nil
		}
	}

	items := coerceArray(doc)
	t := g.decl.Transform
	if t == nil {
		return items
	}

	out := make([]any, 0, len(items))
	for _, item := range items {
		mapped := item
		if len(t.Fields) > 0 {
			obj := make(map[string]any, len(t.Fields))
			for outName, srcPath := range t.Fields {
				if v, ok := ResolvePath(item, srcPath); ok {
					obj[outName] = v
				}
			}
			mapped = obj
		}
		if len(t.Filter) > 0 && !matches(mapped, t.Filter) {
			continue
		}
		out = append(out, mapped)
	}
	return out
}

func coerceArray(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	default:
		return []any{t}
	}
}

// matches applies every equality predicate against top-level (or dotted)
// fields of the item.
func matches(item any, filter map[string]any) bool {
	for path, want := range filter {
		got, ok := ResolvePath(item, path)
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// BuildAll loads dir and returns one generic collector per enabled
// declaration.
func BuildAll(dir string, store cache.Store, fc *fetch.Client, logger *slog.Logger, clock clockwork.Clock) ([]collector.Collector, error) {
	decls, err := Load(dir)
	if err != nil {
		return nil, err
	}
	out := make([]collector.Collector, 0, len(decls))
	for _, d := range decls {
		g, err := NewGeneric(d, store, fc, logger, clock)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", d.Name, err)
		}
		out = append(out, g)
	}
	return out, nil
}
