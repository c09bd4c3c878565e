// Package gfs ingests atmospheric grids decoded by an external GRIB proxy.
// The proxy handles GRIB2 decoding; this collector validates grid shape and
// publishes one key per layer.
package gfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kaosmaps/kaos-worker/internal/cache/keys"
	"github.com/kaosmaps/kaos-worker/internal/collector"
	"github.com/kaosmaps/kaos-worker/internal/fetch"
	"github.com/kaosmaps/kaos-worker/internal/model"
)

const ttl = 5400 * time.Second

var rasterLayers = []string{
	"temperature",
	"humidity",
	"precipitation",
	"cloud-cover",
	"cape",
	"fire-weather",
	"uv-index",
}

func init() {
	collector.Register("gfs", func(d collector.Deps) (collector.Collector, error) {
		return New(d)
	})
}

type Collector struct {
	*collector.Base
	fc       *fetch.Client
	proxyURL string
}

func New(d collector.Deps) (*Collector, error) {
	c := &Collector{fc: d.Fetch, proxyURL: d.Cfg.GribProxyURL}
	base, err := collector.NewBase(collector.Descriptor{
		Name:       "gfs",
		TTL:        ttl,
		Period:     3600 * time.Second,
		Retries:    2,
		RetryDelay: 5 * time.Second,
	}, d.Store, d.Logger, d.Clock, c.collect)
	if err != nil {
		return nil, err
	}
	c.Base = base
	return c, nil
}

func (c *Collector) collect(ctx context.Context) error {
	if c.proxyURL == "" {
		return errors.New("gfs: GRIB_PROXY_URL not set (disable the collector or provide a proxy)")
	}
	for _, layer := range rasterLayers {
		if err := c.raster(ctx, layer); err != nil {
			return err
		}
	}
	return c.wind(ctx)
}

func (c *Collector) raster(ctx context.Context, layer string) error {
	url := fmt.Sprintf("%s/gfs/%s", c.proxyURL, layer)
	resp, err := c.fc.Do(ctx, fetch.Request{URL: url, Timeout: 120 * time.Second})
	if err != nil {
		return fmt.Errorf("gfs %s: %w", layer, err)
	}
	var g model.RasterGrid
	if err := json.Unmarshal(resp.Body, &g); err != nil {
		return fetch.ParseError(url, err)
	}
	if err := g.Validate(); err != nil {
		return fetch.ParseError(url, err)
	}
	return c.StoreJSONTTL(ctx, keys.Payload("gfs", layer), g, ttl)
}

func (c *Collector) wind(ctx context.Context) error {
	url := c.proxyURL + "/gfs/wind"
	resp, err := c.fc.Do(ctx, fetch.Request{URL: url, Timeout: 120 * time.Second})
	if err != nil {
		return fmt.Errorf("gfs wind: %w", err)
	}
	var g model.VectorGrid
	if err := json.Unmarshal(resp.Body, &g); err != nil {
		return fetch.ParseError(url, err)
	}
	if err := g.Validate(); err != nil {
		return fetch.ParseError(url, err)
	}
	return c.StoreJSONTTL(ctx, keys.Payload("gfs", "wind"), g, ttl)
}
