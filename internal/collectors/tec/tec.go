// Package tec ingests NOAA SWPC total-electron-content data.
package tec

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
	feedURL = "https://services.swpc.noaa.gov/products/us-tec-total-electron-content.json"
	ttl     = 1200 * time.Second
)

func init() {
	collector.Register("tec", func(d collector.Deps) (collector.Collector, error) {
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
		Name:   "tec",
		TTL:    ttl,
		Period: 600 * time.Second,
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
		return fmt.Errorf("tec: %w", err)
	}
	// stored verbatim once it proves to be well-formed JSON
	if !json.Valid(resp.Body) {
		return fetch.ParseError(feedURL, fmt.Errorf("invalid json"))
	}
	return c.StoreRaw(ctx, keys.Payload("tec", "global"), resp.Body, ttl)
}
