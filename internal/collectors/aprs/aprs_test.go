package aprs

import (
	"math"
	"strings"
	"testing"
)

func TestParseFrame_UncompressedPosition(t *testing.T) {
	st, ok := ParseFrame("CT1ABC>APRS,TCPIP*:!3843.50N/00908.40W-QTH Lisboa", 1700000000000)
	if !ok {
		t.Fatalf("frame rejected")
	}
	if st.I != "CT1ABC" {
		t.Fatalf("callsign = %q", st.I)
	}
	// 38 deg 43.50 min = 38.725; 9 deg 08.40 min W = -9.14
	if math.Abs(st.La-38.725) > 0.001 {
		t.Fatalf("lat = %v, want ~38.725", st.La)
	}
	if math.Abs(st.Lo-(-9.14)) > 0.001 {
		t.Fatalf("lon = %v, want ~-9.14", st.Lo)
	}
	if st.Cm != "QTH Lisboa" {
		t.Fatalf("comment = %q", st.Cm)
	}
	if st.T != 1700000000000 {
		t.Fatalf("time = %d", st.T)
	}
}

func TestParseFrame_EqualsMarker(t *testing.T) {
	if _, ok := ParseFrame("N0CALL>APRS:=4903.50N/07201.75W-", 1); !ok {
		t.Fatalf("'=' position frame rejected")
	}
}

func TestParseFrame_Rejections(t *testing.T) {
	frames := []string{
		"",
		"# aprsc 2.1.10",                        // server comment reaches here only in tests
		">APRS:!4903.50N/07201.75W-",            // empty callsign
		"N0CALL>APRS:>status text",              // status, not position
		"N0CALL>APRS:!4903.50N/07201.75",        // truncated
		"N0CALL>APRS:!9903.50N/07201.75W-",      // latitude out of range
		"N0CALL>APRS:!49bad0N/07201.75W-",       // junk digits
		"N0CALL>APRS:!4903.50X/07201.75W-",      // bad hemisphere
		"N0CALL>APRS",                           // no body
	}
	for _, f := range frames {
		if _, ok := ParseFrame(f, 1); ok {
			t.Fatalf("frame %q accepted", f)
		}
	}
}

func TestParseFrame_CommentTruncated(t *testing.T) {
	long := strings.Repeat("x", 100)
	st, ok := ParseFrame("N0CALL>APRS:!4903.50N/07201.75W-"+long, 1)
	if !ok {
		t.Fatalf("frame rejected")
	}
	if len(st.Cm) != 64 {
		t.Fatalf("comment length = %d, want 64", len(st.Cm))
	}
}

func TestParseCoord(t *testing.T) {
	cases := []struct {
		in    string
		isLon bool
		want  float64
		ok    bool
	}{
		{"4903.50N", false, 49.0583, true},
		{"4903.50S", false, -49.0583, true},
		{"07201.75W", true, -72.0292, true},
		{"17959.99E", true, 179.9998, true},
		{"4903.50N", true, 0, false},   // wrong width for a longitude
		{"07201.75W", false, 0, false}, // wrong width for a latitude
		{"9901.00N", false, 0, false},  // out of range
	}
	for _, c := range cases {
		got, ok := parseCoord(c.in, c.isLon)
		if ok != c.ok {
			t.Fatalf("parseCoord(%q, %v) ok = %v, want %v", c.in, c.isLon, ok, c.ok)
		}
		if ok && math.Abs(got-c.want) > 0.001 {
			t.Fatalf("parseCoord(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
