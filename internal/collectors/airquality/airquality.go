// Package airquality ingests OpenAQ PM2.5 observations and interpolates them
// onto a coarse global raster with inverse-distance weighting.
package airquality

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
	// parameter 2 is PM2.5 in the OpenAQ v3 taxonomy
	latestURL = "https://api.openaq.org/v3/parameters/2/latest?limit=1000"
	ttl       = 1200 * time.Second
)

// grid covers the globe at 2 degrees; IDW reaches at most 8 degrees out from
// a station, leaving uncovered ocean cells NaN (null in JSON)
var gridHeader = model.GridHeader{
	Nx: 180, Ny: 90,
	Lo1: -179, La1: 89,
	Dx: 2, Dy: 2,
}

func init() {
	collector.Register("air-quality", func(d collector.Deps) (collector.Collector, error) {
		return New(d)
	})
}

type Collector struct {
	*collector.Base
	fc     *fetch.Client
	apiKey string
}

func New(d collector.Deps) (*Collector, error) {
	c := &Collector{fc: d.Fetch, apiKey: d.Cfg.OpenAQKey}
	base, err := collector.NewBase(collector.Descriptor{
		Name:   "air-quality",
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
	if c.apiKey == "" {
		return errors.New("air-quality: OPENAQ_API_KEY not set (disable the collector or provide a key)")
	}
	resp, err := c.fc.Do(ctx, fetch.Request{
		URL:     latestURL,
		Headers: map[string]string{"X-API-Key": c.apiKey},
	})
	if err != nil {
		return fmt.Errorf("air-quality: %w", err)
	}

	samples, err := parseLatest(resp.Body)
	if err != nil {
		return fetch.ParseError(latestURL, err)
	}

	grid := model.IDW(gridHeader, samples, 2, 8)
	grid.Unit = "µg/m³"
	grid.Name = "pm25"
	return c.StoreJSON(ctx, keys.Payload("air-quality", "global"), grid)
}

func parseLatest(body []byte) ([]model.Sample, error) {
	var env struct {
		Results []struct {
			Value       float64 `json:"value"`
			Coordinates struct {
				Latitude  float64 `json:"latitude"`
				Longitude float64 `json:"longitude"`
			} `json:"coordinates"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	out := make([]model.Sample, 0, len(env.Results))
	for _, r := range env.Results {
		// negative concentrations are sensor noise
		if r.Value < 0 {
			continue
		}
		if r.Coordinates.Latitude == 0 && r.Coordinates.Longitude == 0 {
			continue
		}
		out = append(out, model.Sample{
			Lat:   r.Coordinates.Latitude,
			Lon:   r.Coordinates.Longitude,
			Value: r.Value,
		})
	}
	return out, nil
}
