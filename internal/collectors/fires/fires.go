// Package fires ingests NASA FIRMS active fire detections (area CSV API).
package fires

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/kaosmaps/kaos-worker/internal/cache/keys"
	"github.com/kaosmaps/kaos-worker/internal/collector"
	"github.com/kaosmaps/kaos-worker/internal/fetch"
)

const (
	baseURL = "https://firms.modaps.eosdis.nasa.gov/api/area/csv"
	ttl     = 1200 * time.Second
)

// sources and day windows published under kaos:fires:{source}:{days}
var feeds = []struct {
	Source string
	Days   int
}{
	{"VIIRS_SNPP_NRT", 1},
	{"MODIS_NRT", 1},
}

func init() {
	collector.Register("fires", func(d collector.Deps) (collector.Collector, error) {
		return New(d)
	})
}

type Collector struct {
	*collector.Base
	fc     *fetch.Client
	mapKey string
}

func New(d collector.Deps) (*Collector, error) {
	c := &Collector{fc: d.Fetch, mapKey: d.Cfg.FIRMSMapKey}
	base, err := collector.NewBase(collector.Descriptor{
		Name:   "fires",
		TTL:    ttl,
		Period: 600 * time.Second,
	}, d.Store, d.Logger, d.Clock, c.collect)
	if err != nil {
		return nil, err
	}
	c.Base = base
	return c, nil
}

// Detection is one hotspot row from the CSV feed.
type Detection struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Brightness float64 `json:"brightness,omitempty"`
	FRP        float64 `json:"frp,omitempty"`
	Confidence string  `json:"confidence,omitempty"`
	Satellite  string  `json:"satellite,omitempty"`
	DayNight   string  `json:"daynight,omitempty"`
	Time       int64   `json:"time"`
}

func (c *Collector) collect(ctx context.Context) error {
	if c.mapKey == "" {
		return errors.New("fires: FIRMS_MAP_KEY not set (disable the collector or provide a key)")
	}
	for _, f := range feeds {
		url := fmt.Sprintf("%s/%s/%s/world/%d", baseURL, c.mapKey, f.Source, f.Days)
		resp, err := c.fc.Do(ctx, fetch.Request{URL: url})
		if err != nil {
			return fmt.Errorf("fires %s/%d: %w", f.Source, f.Days, err)
		}
		dets, err := ParseCSV(resp.Body)
		if err != nil {
			return fetch.ParseError(url, err)
		}
		key := keys.Payload("fires", f.Source, strconv.Itoa(f.Days))
		if err := c.StoreJSONTTL(ctx, key, dets, ttl); err != nil {
			return err
		}
	}
	return nil
}

// ParseCSV decodes the FIRMS area CSV. Column positions come from the header
// row, so VIIRS (bright_ti4) and MODIS (brightness) both work.
func ParseCSV(body []byte) ([]Detection, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	latIdx, okLat := col["latitude"]
	lonIdx, okLon := col["longitude"]
	if !okLat || !okLon {
		return nil, fmt.Errorf("missing latitude/longitude columns")
	}
	brightIdx := firstCol(col, "bright_ti4", "brightness")

	out := []Detection{}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		lat, err1 := strconv.ParseFloat(field(rec, latIdx), 64)
		lon, err2 := strconv.ParseFloat(field(rec, lonIdx), 64)
		if err1 != nil || err2 != nil {
			continue
		}
		d := Detection{
			Lat:        lat,
			Lon:        lon,
			Confidence: field(rec, colOr(col, "confidence")),
			Satellite:  field(rec, colOr(col, "satellite")),
			DayNight:   field(rec, colOr(col, "daynight")),
		}
		if v, err := strconv.ParseFloat(field(rec, brightIdx), 64); err == nil {
			d.Brightness = v
		}
		if v, err := strconv.ParseFloat(field(rec, colOr(col, "frp")), 64); err == nil {
			d.FRP = v
		}
		d.Time = acqTime(field(rec, colOr(col, "acq_date")), field(rec, colOr(col, "acq_time")))
		out = append(out, d)
	}
	return out, nil
}

// acqTime combines acq_date (2006-01-02) and acq_time (HHMM) into unix ms.
func acqTime(date, hhmm string) int64 {
	if date == "" {
		return 0
	}
	for len(hhmm) < 4 {
		hhmm = "0" + hhmm
	}
	t, err := time.Parse("2006-01-02 1504", date+" "+hhmm)
	if err != nil {
		t, err = time.Parse("2006-01-02", date)
		if err != nil {
			return 0
		}
	}
	return t.UnixMilli()
}

func firstCol(col map[string]int, names ...string) int {
	for _, n := range names {
		if i, ok := col[n]; ok {
			return i
		}
	}
	return -1
}

func colOr(col map[string]int, name string) int {
	if i, ok := col[name]; ok {
		return i
	}
	return -1
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return rec[i]
}
