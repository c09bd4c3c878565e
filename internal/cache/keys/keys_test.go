package keys

import "testing"

func TestPayload(t *testing.T) {
	if got := Payload("seismic", "day"); got != "kaos:seismic:day" {
		t.Fatalf("Payload = %q", got)
	}
	if got := Payload("fires", "VIIRS_SNPP_NRT", "1"); got != "kaos:fires:VIIRS_SNPP_NRT:1" {
		t.Fatalf("Payload = %q", got)
	}
}

func TestMetaKeys(t *testing.T) {
	if got := MetaStatus("space-weather"); got != "kaos:meta:space-weather:status" {
		t.Fatalf("MetaStatus = %q", got)
	}
	if got := MetaLastRun("aprs"); got != "kaos:meta:aprs:last-run" {
		t.Fatalf("MetaLastRun = %q", got)
	}
	if got := MetaErrorCount("aprs"); got != "kaos:meta:aprs:error-count" {
		t.Fatalf("MetaErrorCount = %q", got)
	}
}

func TestCollectorFromStatusKey(t *testing.T) {
	cases := []struct {
		key  string
		want string
	}{
		{"kaos:meta:seismic:status", "seismic"},
		{"kaos:meta:space-weather:status", "space-weather"},
		{"kaos:seismic:day", ""},
		{"kaos:meta:seismic:last-run", ""},
		{"other:meta:x:status", ""},
	}
	for _, c := range cases {
		if got := CollectorFromStatusKey(c.key); got != c.want {
			t.Fatalf("CollectorFromStatusKey(%q) = %q, want %q", c.key, got, c.want)
		}
	}
}

func TestWeatherCurrent_RoundsToTenth(t *testing.T) {
	cases := []struct {
		lat, lon float64
		want     string
	}{
		{41.17, -8.62, "kaos:weather:current:41.2:-8.6"},
		{0, 0, "kaos:weather:current:0.0:0.0"},
		{-0.04, 0.04, "kaos:weather:current:0.0:0.0"}, // no negative zero
		{59.95, 10.75, "kaos:weather:current:60.0:10.8"},
	}
	for _, c := range cases {
		if got := WeatherCurrent(c.lat, c.lon); got != c.want {
			t.Fatalf("WeatherCurrent(%v, %v) = %q, want %q", c.lat, c.lon, got, c.want)
		}
	}
}

func TestWeatherTile(t *testing.T) {
	if got := WeatherTile("clouds_new", 3, 4, 2); got != "kaos:weather:tile:clouds_new:3:4:2" {
		t.Fatalf("WeatherTile = %q", got)
	}
}
