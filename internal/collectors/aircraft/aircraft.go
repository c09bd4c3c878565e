// Package aircraft ingests OpenSky state vectors into compact records.
package aircraft

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/kaosmaps/kaos-worker/internal/cache/keys"
	"github.com/kaosmaps/kaos-worker/internal/collector"
	"github.com/kaosmaps/kaos-worker/internal/fetch"
	"github.com/kaosmaps/kaos-worker/internal/model"
)

const (
	statesURL = "https://opensky-network.org/api/states/all"
	tokenURL  = "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"

	// tokens last 30 minutes upstream; cache for 25 to keep refresh margin
	tokenCacheTTL = 25 * time.Minute
)

func init() {
	collector.Register("aircraft", func(d collector.Deps) (collector.Collector, error) {
		return New(d)
	})
}

type Collector struct {
	*collector.Base
	fc     *fetch.Client
	logger *slog.Logger

	clientID     string
	clientSecret string
	tokens       *expirable.LRU[string, string]
	tokenGroup   singleflight.Group
}

func New(d collector.Deps) (*Collector, error) {
	c := &Collector{
		fc:           d.Fetch,
		logger:       d.Logger.With("collector", "aircraft"),
		clientID:     d.Cfg.OpenSkyClientID,
		clientSecret: d.Cfg.OpenSkyClientSecret,
		tokens:       expirable.NewLRU[string, string](4, nil, tokenCacheTTL),
	}
	base, err := collector.NewBase(collector.Descriptor{
		Name:   "aircraft",
		TTL:    120 * time.Second,
		Period: 60 * time.Second,
	}, d.Store, d.Logger, d.Clock, c.collect)
	if err != nil {
		return nil, err
	}
	c.Base = base
	return c, nil
}

func (c *Collector) collect(ctx context.Context) error {
	headers := map[string]string{}
	if c.clientID != "" {
		tok, err := c.token(ctx)
		if err != nil {
			return fmt.Errorf("aircraft token: %w", err)
		}
		headers["Authorization"] = "Bearer " + tok
	}

	resp, err := c.fc.Do(ctx, fetch.Request{URL: statesURL, Headers: headers})
	if err != nil {
		return fmt.Errorf("aircraft states: %w", err)
	}

	if rem := resp.Header.Get("X-Rate-Limit-Remaining"); rem != "" {
		c.logger.Debug("opensky credits remaining", "remaining", rem)
	}

	records, err := parseStates(resp.Body)
	if err != nil {
		return fetch.ParseError(statesURL, err)
	}

	compact := make([]model.AircraftCompact, 0, len(records))
	for _, a := range records {
		compact = append(compact, a.Compact())
	}
	return c.StoreJSON(ctx, keys.Payload("aircraft", "global"), compact)
}

// token returns a cached OAuth token, coalescing concurrent refreshes.
func (c *Collector) token(ctx context.Context) (string, error) {
	if tok, ok := c.tokens.Get(c.clientID); ok {
		return tok, nil
	}
	v, err, _ := c.tokenGroup.Do(c.clientID, func() (any, error) {
		if tok, ok := c.tokens.Get(c.clientID); ok {
			return tok, nil
		}
		form := url.Values{
			"grant_type":    {"client_credentials"},
			"client_id":     {c.clientID},
			"client_secret": {c.clientSecret},
		}
		resp, err := c.fc.Do(ctx, fetch.Request{
			URL:     tokenURL,
			Method:  "POST",
			Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
			Body:    []byte(form.Encode()),
		})
		if err != nil {
			return "", err
		}
		var tr struct {
			AccessToken string `json:"access_token"`
		}
		if err := json.Unmarshal(resp.Body, &tr); err != nil {
			return "", fetch.ParseError(tokenURL, err)
		}
		if tr.AccessToken == "" {
			return "", fetch.ParseError(tokenURL, fmt.Errorf("empty access_token"))
		}
		c.tokens.Add(c.clientID, tr.AccessToken)
		return tr.AccessToken, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// parseStates decodes OpenSky's array-of-arrays state vectors.
func parseStates(body []byte) ([]model.Aircraft, error) {
	var env struct {
		Time   int64   `json:"time"`
		States [][]any `json:"states"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}

	out := make([]model.Aircraft, 0, len(env.States))
	for _, s := range env.States {
		// index layout per the OpenSky states API
		if len(s) < 17 {
			continue
		}
		lon, okLon := asFloat(s[5])
		lat, okLat := asFloat(s[6])
		if !okLon || !okLat {
			continue // no position fix
		}
		a := model.Aircraft{
			ICAO24:   asString(s[0]),
			Callsign: trimString(s[1]),
			Country:  asString(s[2]),
			Lat:      lat,
			Lon:      lon,
			OnGround: asBool(s[8]),
			Time:     env.Time * 1000,
		}
		if v, ok := asFloat(s[7]); ok {
			a.BaroAltitude = &v
		}
		if v, ok := asFloat(s[9]); ok {
			a.Velocity = &v
		}
		if v, ok := asFloat(s[10]); ok {
			a.Heading = &v
		}
		if v, ok := asFloat(s[11]); ok {
			a.VerticalRate = &v
		}
		if v, ok := asFloat(s[13]); ok {
			a.GeoAltitude = &v
		}
		out = append(out, a)
	}
	return out, nil
}

func asFloat(v any) (float64, bool) {
	f, ok := v.(float64)
	return f, ok
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func trimString(v any) string {
	s, _ := v.(string)
	for len(s) > 0 && s[len(s)-1] == ' ' {
		s = s[:len(s)-1]
	}
	return s
}

func asBool(v any) bool {
	b, _ := v.(bool)
	return b
}
