// Package kiwisdr ingests the public KiwiSDR receiver directory.
package kiwisdr

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kaosmaps/kaos-worker/internal/cache/keys"
	"github.com/kaosmaps/kaos-worker/internal/collector"
	"github.com/kaosmaps/kaos-worker/internal/fetch"
	"github.com/kaosmaps/kaos-worker/internal/model"
)

const (
	listURL = "https://kiwisdr.com/public/kiwisdr_com.json"
	ttl     = 5400 * time.Second
)

func init() {
	collector.Register("kiwisdr", func(d collector.Deps) (collector.Collector, error) {
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
		Name:   "kiwisdr",
		TTL:    ttl,
		Period: 1800 * time.Second,
	}, d.Store, d.Logger, d.Clock, c.collect)
	if err != nil {
		return nil, err
	}
	c.Base = base
	return c, nil
}

// entry mirrors the directory's JSON; numbers arrive as strings.
type entry struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	GPS      string `json:"gps"` // "(lat, lon)"
	Users    string `json:"users"`
	UsersMax string `json:"users_max"`
	Antenna  string `json:"antenna"`
	Offline  string `json:"offline"`
}

func (c *Collector) collect(ctx context.Context) error {
	resp, err := c.fc.Do(ctx, fetch.Request{URL: listURL})
	if err != nil {
		return fmt.Errorf("kiwisdr: %w", err)
	}

	var entries []entry
	if err := json.Unmarshal(resp.Body, &entries); err != nil {
		return fetch.ParseError(listURL, err)
	}

	now := time.Now().UnixMilli()
	out := make([]model.StationCompact, 0, len(entries))
	for _, e := range entries {
		if e.Offline == "yes" {
			continue
		}
		lat, lon, ok := ParseGPS(e.GPS)
		if !ok {
			continue
		}
		st := model.Station{
			ID:      e.URL,
			Name:    e.Name,
			Lat:     lat,
			Lon:     lon,
			Comment: e.Antenna,
			URL:     e.URL,
			Time:    now,
		}
		if n, err := strconv.Atoi(e.Users); err == nil {
			st.Users = &n
		}
		if n, err := strconv.Atoi(e.UsersMax); err == nil {
			st.MaxUsers = &n
		}
		out = append(out, st.Compact())
	}
	return c.StoreJSON(ctx, keys.Payload("kiwisdr", "stations"), out)
}

// ParseGPS decodes the directory's "(lat, lon)" notation.
func ParseGPS(s string) (lat, lon float64, ok bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}
