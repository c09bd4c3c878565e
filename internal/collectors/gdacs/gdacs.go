// Package gdacs ingests the GDACS global disaster alert event list.
package gdacs

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
	feedURL = "https://www.gdacs.org/gdacsapi/api/events/geteventlist/MAP"
	ttl     = 600 * time.Second
)

func init() {
	collector.Register("gdacs", func(d collector.Deps) (collector.Collector, error) {
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
		Name:   "gdacs",
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
		return fmt.Errorf("gdacs: %w", err)
	}
	// the feed is a GeoJSON FeatureCollection; reject anything else early
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(resp.Body, &probe); err != nil {
		return fetch.ParseError(feedURL, err)
	}
	if probe.Type != "FeatureCollection" {
		return fetch.ParseError(feedURL, fmt.Errorf("unexpected document type %q", probe.Type))
	}
	return c.StoreRaw(ctx, keys.Payload("gdacs", "events"), resp.Body, ttl)
}
