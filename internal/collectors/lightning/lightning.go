// Package lightning holds a persistent websocket to a Blitzortung-style
// feed and maintains a rolling 30-minute window of strikes.
package lightning

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gorilla/websocket"
	h3 "github.com/uber/h3-go/v4"

	"github.com/kaosmaps/kaos-worker/internal/cache/keys"
	"github.com/kaosmaps/kaos-worker/internal/collector"
	"github.com/kaosmaps/kaos-worker/internal/model"
)

var defaultURLs = []string{
	"wss://ws1.blitzortung.org/",
	"wss://ws7.blitzortung.org/",
	"wss://ws8.blitzortung.org/",
}

// identityRes buckets strikes to ~1.2 km cells; together with the 1-second
// time bucket it dedupes multi-station reports of one discharge.
const identityRes = 7

const retention = 30 * time.Minute

func init() {
	collector.RegisterStream("lightning", func(d collector.Deps) (collector.StreamCollector, error) {
		return New(d), nil
	})
}

type Collector struct {
	*collector.Stream
	buf    *collector.Buffer[model.Strike]
	logger *slog.Logger
	urls   []string
}

func New(d collector.Deps) *Collector {
	c := &Collector{
		buf:    collector.NewBuffer[model.Strike](),
		logger: d.Logger.With("collector", "lightning"),
		urls:   defaultURLs,
	}
	c.Stream = collector.NewStream(collector.StreamOpts{
		Name:      "lightning",
		Key:       keys.Payload("lightning", "global"),
		TTL:       60 * time.Second,
		Retention: retention,
	}, d.Store, d.Logger, d.Clock, c.dial,
		func() any { return c.buf.Snapshot() },
		c.buf.Evict,
	)
	return c
}

func (c *Collector) dial(ctx context.Context) (collector.StreamConn, error) {
	u := collector.PickURL(c.urls)
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	// subscription handshake expected by the upstream on open
	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"a":111}`)); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("subscribe %s: %w", u, err)
	}
	return &conn{ws: ws, c: c}, nil
}

type conn struct {
	ws *websocket.Conn
	c  *Collector
}

func (cn *conn) ReadLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, msg, err := cn.ws.ReadMessage()
		if err != nil {
			return err
		}
		strike, ok := ParseFrame(msg)
		if !ok {
			continue
		}
		cn.c.insert(strike)
	}
}

func (cn *conn) Close() error { return cn.ws.Close() }

func (c *Collector) insert(s model.Strike) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(s.Lat, s.Lon), identityRes)
	if err != nil {
		return
	}
	id := xxhash.Sum64String(fmt.Sprintf("%x:%d", uint64(cell), s.Time/1000))
	c.buf.Insert(id, s, s.Time)
}

// ParseFrame extracts a strike from a loosely structured frame: it finds the
// "lat" and "lon" markers and parses the first numeric substring after each.
// Records outside [-90,90] x [-180,180] are rejected.
func ParseFrame(frame []byte) (model.Strike, bool) {
	s := string(frame)
	lat, ok := numberAfter(s, `"lat"`)
	if !ok {
		return model.Strike{}, false
	}
	lon, ok := numberAfter(s, `"lon"`)
	if !ok {
		return model.Strike{}, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return model.Strike{}, false
	}

	ts := time.Now().UnixMilli()
	if ns, ok := numberAfter(s, `"time"`); ok && ns > 0 {
		// upstream reports nanoseconds
		ts = int64(ns) / 1e6
	}
	return model.Strike{Lat: lat, Lon: lon, Time: ts}, true
}

func numberAfter(s, marker string) (float64, bool) {
	i := strings.Index(s, marker)
	if i < 0 {
		return 0, false
	}
	rest := s[i+len(marker):]

	start := -1
	for j := 0; j < len(rest); j++ {
		ch := rest[j]
		if ch == '-' || ch == '+' || (ch >= '0' && ch <= '9') {
			start = j
			break
		}
		// tolerate separators between marker and value
		if ch == ':' || ch == ' ' || ch == '"' || ch == '=' {
			continue
		}
		return 0, false
	}
	if start < 0 {
		return 0, false
	}

	end := start
	for end < len(rest) {
		ch := rest[end]
		if (ch >= '0' && ch <= '9') || ch == '.' || ch == '-' || ch == '+' || ch == 'e' || ch == 'E' {
			end++
			continue
		}
		break
	}
	v, err := strconv.ParseFloat(rest[start:end], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
