// Package aurora ingests the NOAA SWPC OVATION aurora probability product.
// The provider JSON is stored verbatim; the read path serves it as-is.
package aurora

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
	feedURL = "https://services.swpc.noaa.gov/json/ovation_aurora_latest.json"
	ttl     = 600 * time.Second
)

func init() {
	collector.Register("aurora", func(d collector.Deps) (collector.Collector, error) {
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
		Name:   "aurora",
		TTL:    ttl,
		Period: 300 * time.Second,
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
		return fmt.Errorf("aurora: %w", err)
	}
	if !json.Valid(resp.Body) {
		return fetch.ParseError(feedURL, fmt.Errorf("invalid json"))
	}
	return c.StoreRaw(ctx, keys.Payload("aurora", "latest"), resp.Body, ttl)
}
