package kiwisdr

import "testing"

func TestParseGPS(t *testing.T) {
	cases := []struct {
		in       string
		lat, lon float64
		ok       bool
	}{
		{"(60.123, 24.765)", 60.123, 24.765, true},
		{"(-33.9,151.2)", -33.9, 151.2, true},
		{" ( 0.0 , 0.0 ) ", 0, 0, true},
		{"60.1, 24.7", 60.1, 24.7, true}, // tolerate missing parens
		{"", 0, 0, false},
		{"(60.1)", 0, 0, false},
		{"(60.1, 24.7, 5)", 0, 0, false},
		{"(abc, 24.7)", 0, 0, false},
		{"(91, 0)", 0, 0, false},
		{"(0, 181)", 0, 0, false},
	}
	for _, c := range cases {
		lat, lon, ok := ParseGPS(c.in)
		if ok != c.ok {
			t.Fatalf("ParseGPS(%q) ok = %v, want %v", c.in, ok, c.ok)
		}
		if ok && (lat != c.lat || lon != c.lon) {
			t.Fatalf("ParseGPS(%q) = (%v, %v), want (%v, %v)", c.in, lat, lon, c.lat, c.lon)
		}
	}
}
