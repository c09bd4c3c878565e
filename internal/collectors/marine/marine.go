// Package marine ingests oceanographic grids from the GRIB proxy: RTOFS
// surface currents, WW3 significant wave height, and OISST sea surface
// temperature. Each is its own collector so they fail and disable
// independently.
package marine

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

const (
	ttl    = 5400 * time.Second
	period = 3600 * time.Second

	// global current fields are shipped at half resolution; full resolution
	// is invisible at the zoom levels the map serves
	currentsDownsample = 2
)

func init() {
	collector.Register("ocean-currents", func(d collector.Deps) (collector.Collector, error) {
		return newCurrents(d)
	})
	collector.Register("waves", func(d collector.Deps) (collector.Collector, error) {
		return newRaster(d, "waves", "/ww3/waves", keys.Payload("waves", "global"))
	})
	collector.Register("sst", func(d collector.Deps) (collector.Collector, error) {
		return newRaster(d, "sst", "/oisst/sst", keys.Payload("sst", "global"))
	})
}

type currents struct {
	*collector.Base
	fc       *fetch.Client
	proxyURL string
}

func newCurrents(d collector.Deps) (*currents, error) {
	c := &currents{fc: d.Fetch, proxyURL: d.Cfg.GribProxyURL}
	base, err := collector.NewBase(collector.Descriptor{
		Name:   "ocean-currents",
		TTL:    ttl,
		Period: period,
	}, d.Store, d.Logger, d.Clock, c.collect)
	if err != nil {
		return nil, err
	}
	c.Base = base
	return c, nil
}

func (c *currents) collect(ctx context.Context) error {
	if c.proxyURL == "" {
		return errors.New("ocean-currents: GRIB_PROXY_URL not set")
	}
	url := c.proxyURL + "/rtofs/currents"
	resp, err := c.fc.Do(ctx, fetch.Request{URL: url, Timeout: 120 * time.Second})
	if err != nil {
		return fmt.Errorf("ocean-currents: %w", err)
	}
	var g model.VectorGrid
	if err := json.Unmarshal(resp.Body, &g); err != nil {
		return fetch.ParseError(url, err)
	}
	if err := g.Validate(); err != nil {
		return fetch.ParseError(url, err)
	}
	return c.StoreJSONTTL(ctx, keys.Payload("ocean-currents", "global"), g.Downsample(currentsDownsample), ttl)
}

type raster struct {
	*collector.Base
	fc       *fetch.Client
	proxyURL string
	name     string
	path     string
	key      string
}

func newRaster(d collector.Deps, name, path, key string) (*raster, error) {
	c := &raster{fc: d.Fetch, proxyURL: d.Cfg.GribProxyURL, name: name, path: path, key: key}
	base, err := collector.NewBase(collector.Descriptor{
		Name:   name,
		TTL:    ttl,
		Period: period,
	}, d.Store, d.Logger, d.Clock, c.collect)
	if err != nil {
		return nil, err
	}
	c.Base = base
	return c, nil
}

func (c *raster) collect(ctx context.Context) error {
	if c.proxyURL == "" {
		return fmt.Errorf("%s: GRIB_PROXY_URL not set", c.name)
	}
	url := c.proxyURL + c.path
	resp, err := c.fc.Do(ctx, fetch.Request{URL: url, Timeout: 120 * time.Second})
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	var g model.RasterGrid
	if err := json.Unmarshal(resp.Body, &g); err != nil {
		return fetch.ParseError(url, err)
	}
	if err := g.Validate(); err != nil {
		return fetch.ParseError(url, err)
	}
	return c.StoreJSONTTL(ctx, c.key, g, ttl)
}
