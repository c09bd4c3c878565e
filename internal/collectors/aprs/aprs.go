// Package aprs ingests amateur radio station positions from an APRS-IS
// gateway. APRS-IS is a plain text protocol: one login line, then
// newline-delimited frames.
package aprs

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/kaosmaps/kaos-worker/internal/cache/keys"
	"github.com/kaosmaps/kaos-worker/internal/collector"
	"github.com/kaosmaps/kaos-worker/internal/model"
)

var defaultServers = []string{
	"rotate.aprs2.net:14580",
	"euro.aprs2.net:14580",
	"noam.aprs2.net:14580",
}

// t/p limits the server-side stream to position reports
const loginLine = "user N0CALL pass -1 vers kaos-worker 1.0 filter t/p\r\n"

const retention = 60 * time.Minute

func init() {
	collector.RegisterStream("aprs", func(d collector.Deps) (collector.StreamCollector, error) {
		return New(d), nil
	})
}

type Collector struct {
	*collector.Stream
	buf     *collector.Buffer[model.StationCompact]
	logger  *slog.Logger
	servers []string
}

func New(d collector.Deps) *Collector {
	c := &Collector{
		buf:     collector.NewBuffer[model.StationCompact](),
		logger:  d.Logger.With("collector", "aprs"),
		servers: defaultServers,
	}
	c.Stream = collector.NewStream(collector.StreamOpts{
		Name:      "aprs",
		Key:       keys.Payload("aprs", "global"),
		TTL:       300 * time.Second,
		Retention: retention,
	}, d.Store, d.Logger, d.Clock, c.dial,
		func() any { return c.buf.Snapshot() },
		c.buf.Evict,
	)
	return c
}

func (c *Collector) dial(ctx context.Context) (collector.StreamConn, error) {
	addr := collector.PickURL(c.servers)
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if _, err := nc.Write([]byte(loginLine)); err != nil {
		_ = nc.Close()
		return nil, fmt.Errorf("login %s: %w", addr, err)
	}
	return &conn{nc: nc, c: c}, nil
}

type conn struct {
	nc net.Conn
	c  *Collector
}

func (cn *conn) ReadLoop(ctx context.Context) error {
	sc := bufio.NewScanner(cn.nc)
	sc.Buffer(make([]byte, 0, 4096), 1<<16)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue // server comments and keepalives
		}
		st, ok := ParseFrame(line, time.Now().UnixMilli())
		if !ok {
			continue
		}
		id := xxhash.Sum64String(st.I)
		cn.c.buf.Insert(id, st, st.T)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return fmt.Errorf("aprs stream closed")
}

func (cn *conn) Close() error { return cn.nc.Close() }

// ParseFrame decodes an uncompressed APRS position frame:
// CALLSIGN>PATH:!DDMM.mmN/DDDMM.mmE<sym>comment (or '=' instead of '!').
func ParseFrame(line string, nowMs int64) (model.StationCompact, bool) {
	gt := strings.Index(line, ">")
	if gt <= 0 {
		return model.StationCompact{}, false
	}
	callsign := line[:gt]

	colon := strings.Index(line, ":")
	if colon < 0 || colon+1 >= len(line) {
		return model.StationCompact{}, false
	}
	body := line[colon+1:]
	if body[0] != '!' && body[0] != '=' {
		return model.StationCompact{}, false
	}
	body = body[1:]
	// DDMM.mmN/DDDMM.mmE needs at least 19 chars
	if len(body) < 19 {
		return model.StationCompact{}, false
	}

	lat, ok := parseCoord(body[0:8], false)
	if !ok {
		return model.StationCompact{}, false
	}
	lon, ok := parseCoord(body[9:18], true)
	if !ok {
		return model.StationCompact{}, false
	}

	comment := ""
	if len(body) > 19 {
		comment = strings.TrimSpace(body[19:])
		if len(comment) > 64 {
			comment = comment[:64]
		}
	}

	st := model.Station{
		ID:      callsign,
		Lat:     lat,
		Lon:     lon,
		Comment: comment,
		Time:    nowMs,
	}
	return st.Compact(), true
}

// parseCoord converts APRS ddmm.mm[NSEW] notation to decimal degrees.
func parseCoord(s string, isLon bool) (float64, bool) {
	degDigits := 2
	if isLon {
		degDigits = 3
	}
	if len(s) != degDigits+6 {
		return 0, false
	}
	deg, err := strconv.ParseFloat(s[:degDigits], 64)
	if err != nil {
		return 0, false
	}
	min, err := strconv.ParseFloat(s[degDigits:degDigits+5], 64)
	if err != nil {
		return 0, false
	}
	v := deg + min/60

	switch s[len(s)-1] {
	case 'N', 'E':
	case 'S', 'W':
		v = -v
	default:
		return 0, false
	}
	if isLon && (v < -180 || v > 180) {
		return 0, false
	}
	if !isLon && (v < -90 || v > 90) {
		return 0, false
	}
	return v, true
}
