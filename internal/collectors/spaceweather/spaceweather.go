// Package spaceweather assembles a scalar snapshot of current space weather
// from three NOAA SWPC feeds: planetary K-index, F10.7 solar radio flux, and
// GOES X-ray flux.
package spaceweather

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
	kpURL   = "https://services.swpc.noaa.gov/json/planetary_k_index_1m.json"
	fluxURL = "https://services.swpc.noaa.gov/json/f10cm_flux.json"
	xrayURL = "https://services.swpc.noaa.gov/json/goes/primary/xrays-1-day.json"

	ttl = 1200 * time.Second
)

func init() {
	collector.Register("space-weather", func(d collector.Deps) (collector.Collector, error) {
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
		Name:   "space-weather",
		TTL:    ttl,
		Period: 600 * time.Second,
	}, d.Store, d.Logger, d.Clock, c.collect)
	if err != nil {
		return nil, err
	}
	c.Base = base
	return c, nil
}

// Snapshot is the stored shape; zero-valued fields mean the feed was missing.
type Snapshot struct {
	Kp        float64 `json:"kp"`
	KpTime    string  `json:"kpTime,omitempty"`
	Flux      float64 `json:"f107"`
	XrayFlux  float64 `json:"xrayFlux"`
	XrayClass string  `json:"xrayClass,omitempty"`
	Time      int64   `json:"time"`
}

func (c *Collector) collect(ctx context.Context) error {
	var snap Snapshot
	snap.Time = time.Now().UnixMilli()

	if err := c.kp(ctx, &snap); err != nil {
		return err
	}
	if err := c.flux(ctx, &snap); err != nil {
		return err
	}
	if err := c.xray(ctx, &snap); err != nil {
		return err
	}
	return c.StoreJSON(ctx, keys.Payload("space-weather", "current"), snap)
}

func (c *Collector) kp(ctx context.Context, snap *Snapshot) error {
	resp, err := c.fc.Do(ctx, fetch.Request{URL: kpURL})
	if err != nil {
		return fmt.Errorf("space-weather kp: %w", err)
	}
	var rows []struct {
		TimeTag string  `json:"time_tag"`
		Kp      float64 `json:"kp_index"`
	}
	if err := json.Unmarshal(resp.Body, &rows); err != nil {
		return fetch.ParseError(kpURL, err)
	}
	if len(rows) > 0 {
		last := rows[len(rows)-1]
		snap.Kp = last.Kp
		snap.KpTime = last.TimeTag
	}
	return nil
}

func (c *Collector) flux(ctx context.Context, snap *Snapshot) error {
	resp, err := c.fc.Do(ctx, fetch.Request{URL: fluxURL})
	if err != nil {
		return fmt.Errorf("space-weather f107: %w", err)
	}
	var rows []struct {
		Flux float64 `json:"flux"`
	}
	if err := json.Unmarshal(resp.Body, &rows); err != nil {
		return fetch.ParseError(fluxURL, err)
	}
	if len(rows) > 0 {
		snap.Flux = rows[len(rows)-1].Flux
	}
	return nil
}

func (c *Collector) xray(ctx context.Context, snap *Snapshot) error {
	resp, err := c.fc.Do(ctx, fetch.Request{URL: xrayURL})
	if err != nil {
		return fmt.Errorf("space-weather xray: %w", err)
	}
	var rows []struct {
		Flux   float64 `json:"flux"`
		Energy string  `json:"energy"`
	}
	if err := json.Unmarshal(resp.Body, &rows); err != nil {
		return fetch.ParseError(xrayURL, err)
	}
	// latest long-band (0.1-0.8nm) reading drives the class letter
	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].Energy == "0.1-0.8nm" {
			snap.XrayFlux = rows[i].Flux
			snap.XrayClass = xrayClass(rows[i].Flux)
			break
		}
	}
	return nil
}

// xrayClass maps W/m2 long-band flux to the conventional letter scale.
func xrayClass(flux float64) string {
	switch {
	case flux <= 0:
		return ""
	case flux < 1e-7:
		return fmt.Sprintf("A%.1f", flux/1e-8)
	case flux < 1e-6:
		return fmt.Sprintf("B%.1f", flux/1e-7)
	case flux < 1e-5:
		return fmt.Sprintf("C%.1f", flux/1e-6)
	case flux < 1e-4:
		return fmt.Sprintf("M%.1f", flux/1e-5)
	default:
		return fmt.Sprintf("X%.1f", flux/1e-4)
	}
}
