// Package prociv ingests Portuguese civil-protection occurrences.
package prociv

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
	feedURL = "https://api.fogos.pt/v2/incidents/active?all=true"
	ttl     = 600 * time.Second
)

func init() {
	collector.Register("prociv", func(d collector.Deps) (collector.Collector, error) {
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
		Name:   "prociv",
		TTL:    ttl,
		Period: 300 * time.Second,
	}, d.Store, d.Logger, d.Clock, c.collect)
	if err != nil {
		return nil, err
	}
	c.Base = base
	return c, nil
}

// Occurrence keeps the fields the map actually renders.
type Occurrence struct {
	ID       string  `json:"id"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Nature   string  `json:"nature,omitempty"`
	Status   string  `json:"status,omitempty"`
	Locality string  `json:"locality,omitempty"`
	Men      int     `json:"men,omitempty"`
	Vehicles int     `json:"vehicles,omitempty"`
	Aerial   int     `json:"aerial,omitempty"`
	Time     int64   `json:"time"`
}

func (c *Collector) collect(ctx context.Context) error {
	resp, err := c.fc.Do(ctx, fetch.Request{URL: feedURL})
	if err != nil {
		return fmt.Errorf("prociv: %w", err)
	}

	var env struct {
		Success bool `json:"success"`
		Data    []struct {
			ID          string  `json:"id"`
			Lat         float64 `json:"lat"`
			Lng         float64 `json:"lng"`
			Natureza    string  `json:"natureza"`
			Status      string  `json:"status"`
			Location    string  `json:"location"`
			Man         int     `json:"man"`
			Terrain     int     `json:"terrain"`
			Aerial      int     `json:"aerial"`
			DateTime    struct {
				Sec int64 `json:"sec"`
			} `json:"dateTime"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return fetch.ParseError(feedURL, err)
	}

	out := make([]Occurrence, 0, len(env.Data))
	for _, d := range env.Data {
		out = append(out, Occurrence{
			ID:       d.ID,
			Lat:      d.Lat,
			Lon:      d.Lng,
			Nature:   d.Natureza,
			Status:   d.Status,
			Locality: d.Location,
			Men:      d.Man,
			Vehicles: d.Terrain,
			Aerial:   d.Aerial,
			Time:     d.DateTime.Sec * 1000,
		})
	}
	return c.StoreJSON(ctx, keys.Payload("prociv", "ocorrencias"), out)
}
