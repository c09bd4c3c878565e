package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"

	"github.com/kaosmaps/kaos-worker/internal/cache"
	"github.com/kaosmaps/kaos-worker/internal/cache/cacheaside"
	"github.com/kaosmaps/kaos-worker/internal/cache/keys"
	"github.com/kaosmaps/kaos-worker/internal/collectors/seismic"
	"github.com/kaosmaps/kaos-worker/internal/fetch"
	"github.com/kaosmaps/kaos-worker/internal/model"
)

const (
	weatherCurrentTTL = 300 * time.Second
	weatherTileTTL    = 600 * time.Second
)

var tileLayers = map[string]bool{
	"clouds_new":        true,
	"precipitation_new": true,
	"pressure_new":      true,
	"wind_new":          true,
	"temp_new":          true,
}

type Server struct {
	store  cache.Store
	fc     *fetch.Client
	clock  clockwork.Clock
	logger *slog.Logger
	owmKey string

	owmBase  string
	tileBase string
}

// NewServer builds the read-path server. A nil store degrades open: the
// worker-owned feeds answer 503 while the fetch-through weather endpoints
// keep serving uncached.
func NewServer(store cache.Store, fc *fetch.Client, clock clockwork.Clock, logger *slog.Logger, owmKey string) *Server {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Server{
		store:    store,
		fc:       fc,
		clock:    clock,
		logger:   logger,
		owmKey:   owmKey,
		owmBase:  "https://api.openweathermap.org",
		tileBase: "https://tile.openweathermap.org",
	}
}

// passthrough serves a worker-owned key verbatim; an absent key means the
// worker has not populated it (or TTL expired).
func (s *Server) passthrough(key, feed string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil {
			unavailable(w, feed)
			return
		}
		val, ok, err := s.store.Get(r.Context(), key)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "cache unavailable")
			return
		}
		if !ok {
			unavailable(w, feed)
			return
		}
		writeRawJSON(w, http.StatusOK, val)
	}
}

// Seismic filters the widest stored window that covers the requested range.
func (s *Server) Seismic(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if v := r.URL.Query().Get("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 744 {
			badRequest(w, "hours must be an integer in 1..744")
			return
		}
		hours = n
	}
	minMag := 0.0
	if v := r.URL.Query().Get("minMag"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 10 {
			badRequest(w, "minMag must be a number in 0..10")
			return
		}
		minMag = f
	}

	window := "day"
	switch {
	case hours > 168:
		window = "month"
	case hours > 24:
		window = "week"
	}

	if s.store == nil {
		unavailable(w, "Seismic")
		return
	}
	val, ok, err := s.store.Get(r.Context(), keys.Payload("seismic", window))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cache unavailable")
		return
	}
	if !ok {
		unavailable(w, "Seismic")
		return
	}

	var fc seismic.FeatureCollection
	if err := json.Unmarshal(val, &fc); err != nil {
		writeError(w, http.StatusInternalServerError, "stored seismic payload malformed")
		return
	}

	cutoff := s.clock.Now().Add(-time.Duration(hours) * time.Hour).UnixMilli()
	out := fc.Features[:0]
	for _, f := range fc.Features {
		if f.Properties.Time < cutoff {
			continue
		}
		if f.Properties.Mag == nil || *f.Properties.Mag < minMag {
			continue
		}
		out = append(out, f)
	}
	fc.Features = out
	writeJSON(w, http.StatusOK, fc)
}

func parseBBox(q url.Values) (*model.BBox, error) {
	vals := [4]string{q.Get("lamin"), q.Get("lamax"), q.Get("lomin"), q.Get("lomax")}
	set := 0
	for _, v := range vals {
		if v != "" {
			set++
		}
	}
	if set == 0 {
		return nil, nil
	}
	if set != 4 {
		return nil, fmt.Errorf("lamin, lamax, lomin and lomax must all be set")
	}
	var f [4]float64
	for i, v := range vals {
		x, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("bounding box values must be numbers")
		}
		f[i] = x
	}
	bb := &model.BBox{LaMin: f[0], LaMax: f[1], LoMin: f[2], LoMax: f[3]}
	if bb.LaMin > bb.LaMax || bb.LoMin > bb.LoMax {
		return nil, fmt.Errorf("bounding box min must not exceed max")
	}
	return bb, nil
}

// Aircraft filters compact records by bbox, then expands to the public shape.
func (s *Server) Aircraft(w http.ResponseWriter, r *http.Request) {
	bb, err := parseBBox(r.URL.Query())
	if err != nil {
		badRequest(w, "%s", err)
		return
	}

	if s.store == nil {
		unavailable(w, "Aircraft")
		return
	}
	val, ok, err := s.store.Get(r.Context(), keys.Payload("aircraft", "global"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cache unavailable")
		return
	}
	if !ok {
		unavailable(w, "Aircraft")
		return
	}

	var compact []model.AircraftCompact
	if err := json.Unmarshal(val, &compact); err != nil {
		writeError(w, http.StatusInternalServerError, "stored aircraft payload malformed")
		return
	}

	out := make([]model.Aircraft, 0, len(compact))
	for _, c := range compact {
		if bb != nil && !bb.Contains(c.La, c.Lo) {
			continue
		}
		out = append(out, c.Expand())
	}
	writeJSON(w, http.StatusOK, out)
}

// APRS mirrors the aircraft handler for amateur radio stations.
func (s *Server) APRS(w http.ResponseWriter, r *http.Request) {
	bb, err := parseBBox(r.URL.Query())
	if err != nil {
		badRequest(w, "%s", err)
		return
	}

	if s.store == nil {
		unavailable(w, "APRS")
		return
	}
	val, ok, err := s.store.Get(r.Context(), keys.Payload("aprs", "global"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cache unavailable")
		return
	}
	if !ok {
		unavailable(w, "APRS")
		return
	}

	var compact []model.StationCompact
	if err := json.Unmarshal(val, &compact); err != nil {
		writeError(w, http.StatusInternalServerError, "stored aprs payload malformed")
		return
	}

	out := make([]model.Station, 0, len(compact))
	for _, c := range compact {
		if bb != nil && !bb.Contains(c.La, c.Lo) {
			continue
		}
		out = append(out, c.Expand())
	}
	writeJSON(w, http.StatusOK, out)
}

// Fires serves one source/days pair; defaults match what the worker stores.
func (s *Server) Fires(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		source = "VIIRS_SNPP_NRT"
	}
	days := r.URL.Query().Get("days")
	if days == "" {
		days = "1"
	}
	if n, err := strconv.Atoi(days); err != nil || n < 1 || n > 10 {
		badRequest(w, "days must be an integer in 1..10")
		return
	}
	s.passthrough(keys.Payload("fires", source, days), "Fires")(w, r)
}

// GFS serves one decoded layer grid.
func (s *Server) GFS(w http.ResponseWriter, r *http.Request) {
	layer := chi.URLParam(r, "layer")
	switch layer {
	case "temperature", "humidity", "precipitation", "cloud-cover",
		"cape", "fire-weather", "uv-index", "wind":
	default:
		badRequest(w, "unknown gfs layer %q", layer)
		return
	}
	s.passthrough(keys.Payload("gfs", layer), "GFS")(w, r)
}

// WeatherCurrent is fetch-through: coordinates round to ~11 km so nearby
// requests share a key.
func (s *Server) WeatherCurrent(w http.ResponseWriter, r *http.Request) {
	lat, err1 := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err1 != nil || err2 != nil {
		badRequest(w, "lat and lon must be numbers")
		return
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		badRequest(w, "lat must be in -90..90 and lon in -180..180")
		return
	}
	if s.owmKey == "" {
		writeError(w, http.StatusServiceUnavailable, "weather upstream not configured")
		return
	}

	key := keys.WeatherCurrent(lat, lon)
	data, source, err := cacheaside.Do(r.Context(), s.store, s.logger, key, weatherCurrentTTL, func(ctx context.Context) ([]byte, error) {
		u := fmt.Sprintf("%s/data/2.5/weather?lat=%g&lon=%g&units=metric&appid=%s", s.owmBase, lat, lon, s.owmKey)
		resp, err := s.fc.Do(ctx, fetch.Request{URL: u})
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	})
	if err != nil {
		writeError(w, upstreamStatus(err), "weather fetch failed")
		return
	}
	w.Header().Set("X-Data-Source", string(source))
	writeRawJSON(w, http.StatusOK, data)
}

// WeatherTile proxies OpenWeatherMap PNG tiles through the cache.
func (s *Server) WeatherTile(w http.ResponseWriter, r *http.Request) {
	layer := chi.URLParam(r, "layer")
	if !tileLayers[layer] {
		badRequest(w, "unknown tile layer %q", layer)
		return
	}
	z, err1 := strconv.Atoi(chi.URLParam(r, "z"))
	x, err2 := strconv.Atoi(chi.URLParam(r, "x"))
	y, err3 := strconv.Atoi(chi.URLParam(r, "y"))
	if err1 != nil || err2 != nil || err3 != nil || z < 0 || z > 18 || x < 0 || y < 0 {
		badRequest(w, "z, x and y must be non-negative integers (z <= 18)")
		return
	}
	if s.owmKey == "" {
		writeError(w, http.StatusServiceUnavailable, "weather upstream not configured")
		return
	}

	key := keys.WeatherTile(layer, z, x, y)
	data, source, err := cacheaside.Do(r.Context(), s.store, s.logger, key, weatherTileTTL, func(ctx context.Context) ([]byte, error) {
		u := fmt.Sprintf("%s/map/%s/%d/%d/%d.png?appid=%s", s.tileBase, layer, z, x, y, s.owmKey)
		resp, err := s.fc.Do(ctx, fetch.Request{URL: u})
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	})
	if err != nil {
		writeError(w, upstreamStatus(err), "tile fetch failed")
		return
	}
	w.Header().Set("X-Data-Source", string(source))
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
