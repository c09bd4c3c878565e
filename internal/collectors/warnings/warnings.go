// Package warnings ingests IPMA meteorological warnings for Portugal.
package warnings

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kaosmaps/kaos-worker/internal/cache/keys"
	"github.com/kaosmaps/kaos-worker/internal/collector"
	"github.com/kaosmaps/kaos-worker/internal/fetch"
)

const (
	feedURL = "https://api.ipma.pt/open-data/forecast/warnings/warnings_www.json"
	ttl     = 2700 * time.Second
)

func init() {
	collector.Register("warnings", func(d collector.Deps) (collector.Collector, error) {
		return New(d)
	})
}

type Collector struct {
	*collector.Base
	fc *fetch.Client
}

func New(d collector.Deps) (*Collector, error) {
	c := &Collector{fc: d.Fetch}
	base, err := collector.NewBase(collector.Descriptor{
		Name:   "warnings",
		TTL:    ttl,
		Period: 900 * time.Second,
	}, d.Store, d.Logger, d.Clock, c.collect)
	if err != nil {
		return nil, err
	}
	c.Base = base
	return c, nil
}

func (c *Collector) collect(ctx context.Context) error {
	resp, err := c.fc.Do(ctx, fetch.Request{URL: feedURL})
	if err != nil {
		return fmt.Errorf("warnings: %w", err)
	}
	if !json.Valid(resp.Body) {
		return fetch.ParseError(feedURL, fmt.Errorf("invalid json"))
	}
	return c.StoreRaw(ctx, keys.Payload("warnings", "ipma"), resp.Body, ttl)
}
