// Package seismic ingests USGS earthquake feeds for three rolling windows.
package seismic

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
	dayURL   = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_day.geojson"
	weekURL  = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_week.geojson"
	monthURL = "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_month.geojson"
)

func init() {
	collector.Register("seismic", func(d collector.Deps) (collector.Collector, error) {
		return New(d)
	})
}

type Collector struct {
	*collector.Base
	fc    *fetch.Client
	feeds map[string]string
}

func New(d collector.Deps) (*Collector, error) {
	c := &Collector{
		fc: d.Fetch,
		feeds: map[string]string{
			"day":   dayURL,
			"week":  weekURL,
			"month": monthURL,
		},
	}
	base, err := collector.NewBase(collector.Descriptor{
		Name:   "seismic",
		TTL:    180 * time.Second,
		Period: 60 * time.Second,
	}, d.Store, d.Logger, d.Clock, c.collect)
	if err != nil {
		return nil, err
	}
	c.Base = base
	return c, nil
}

// FeatureCollection is the slimmed GeoJSON the read handler filters on.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string     `json:"type"`
	ID         string     `json:"id"`
	Properties Properties `json:"properties"`
	Geometry   Geometry   `json:"geometry"`
}

type Properties struct {
	Mag   *float64 `json:"mag"`
	Place string   `json:"place"`
	Time  int64    `json:"time"` // unix ms
	Type  string   `json:"type,omitempty"`
}

type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // lon, lat, depth
}

func (c *Collector) collect(ctx context.Context) error {
	for window, url := range c.feeds {
		resp, err := c.fc.Do(ctx, fetch.Request{URL: url})
		if err != nil {
			return fmt.Errorf("seismic %s: %w", window, err)
		}
		var fc FeatureCollection
		if err := json.Unmarshal(resp.Body, &fc); err != nil {
			return fetch.ParseError(url, err)
		}
		if err := c.StoreJSON(ctx, keys.Payload("seismic", window), fc); err != nil {
			return err
		}
	}
	return nil
}
