// Package keys owns the cache key layout. The read handlers hardcode their
// reads against these builders, so collectors and handlers cannot drift.
package keys

import (
	"fmt"
	"strings"
)

const Namespace = "kaos"

// Payload joins parts under the kaos namespace:
// Payload("seismic", "day") -> "kaos:seismic:day".
func Payload(parts ...string) string {
	return Namespace + ":" + strings.Join(parts, ":")
}

func MetaStatus(name string) string     { return fmt.Sprintf("%s:meta:%s:status", Namespace, name) }
func MetaLastRun(name string) string    { return fmt.Sprintf("%s:meta:%s:last-run", Namespace, name) }
func MetaErrorCount(name string) string { return fmt.Sprintf("%s:meta:%s:error-count", Namespace, name) }

// MetaStatusPattern bounds the health surface's KEYS scan.
const MetaStatusPattern = Namespace + ":meta:*:status"

// CollectorFromStatusKey extracts the collector name from a meta status key,
// or "" if the key does not match the layout.
func CollectorFromStatusKey(key string) string {
	rest, ok := strings.CutPrefix(key, Namespace+":meta:")
	if !ok {
		return ""
	}
	name, ok := strings.CutSuffix(rest, ":status")
	if !ok {
		return ""
	}
	return name
}

// WeatherCurrent keys per-coordinate weather lookups. Coordinates are
// rounded to one decimal (~11 km) to improve hit rate.
func WeatherCurrent(lat, lon float64) string {
	return fmt.Sprintf("%s:weather:current:%s:%s", Namespace, round1(lat), round1(lon))
}

func WeatherTile(layer string, z, x, y int) string {
	return fmt.Sprintf("%s:weather:tile:%s:%d:%d:%d", Namespace, layer, z, x, y)
}

// round1 formats with one decimal, normalizing negative zero.
func round1(v float64) string {
	s := fmt.Sprintf("%.1f", v)
	if s == "-0.0" {
		s = "0.0"
	}
	return s
}
