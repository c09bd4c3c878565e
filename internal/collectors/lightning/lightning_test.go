package lightning

import (
	"testing"
	"time"
)

func TestParseFrame_ExtractsStrike(t *testing.T) {
	frame := []byte(`{"time":1700000000123456789,"lat":38.72,"lon":-9.14,"alt":0,"pol":0}`)
	s, ok := ParseFrame(frame)
	if !ok {
		t.Fatalf("frame rejected")
	}
	if s.Lat != 38.72 || s.Lon != -9.14 {
		t.Fatalf("coords = (%v, %v)", s.Lat, s.Lon)
	}
	// nanoseconds collapse to milliseconds
	if s.Time != 1700000000123 {
		t.Fatalf("time = %d, want 1700000000123", s.Time)
	}
}

func TestParseFrame_MissingTimeFallsBackToNow(t *testing.T) {
	before := time.Now().UnixMilli()
	s, ok := ParseFrame([]byte(`{"lat":10.5,"lon":20.5}`))
	after := time.Now().UnixMilli()
	if !ok {
		t.Fatalf("frame rejected")
	}
	if s.Time < before || s.Time > after {
		t.Fatalf("time = %d, want within [%d, %d]", s.Time, before, after)
	}
}

func TestParseFrame_Rejections(t *testing.T) {
	frames := []string{
		`{}`,
		`{"lat":38.7}`,
		`{"lon":-9.1}`,
		`{"lat":91,"lon":0}`,
		`{"lat":0,"lon":-181}`,
		`{"lat":"x","lon":1}`,
	}
	for _, f := range frames {
		if _, ok := ParseFrame([]byte(f)); ok {
			t.Fatalf("frame %s accepted", f)
		}
	}
}

func TestParseFrame_ToleratesSpacing(t *testing.T) {
	s, ok := ParseFrame([]byte(`{"lat": -33.9, "lon": 151.2}`))
	if !ok {
		t.Fatalf("frame rejected")
	}
	if s.Lat != -33.9 || s.Lon != 151.2 {
		t.Fatalf("coords = (%v, %v)", s.Lat, s.Lon)
	}
}

func TestNumberAfter(t *testing.T) {
	if v, ok := numberAfter(`"sig":[],"lat":4.5e1`, `"lat"`); !ok || v != 45 {
		t.Fatalf("exponent form = %v %v", v, ok)
	}
	if _, ok := numberAfter(`"lat":{"nested":1}`, `"lat"`); ok {
		t.Fatalf("non-numeric value accepted")
	}
	if _, ok := numberAfter(`no marker here`, `"lat"`); ok {
		t.Fatalf("absent marker accepted")
	}
}
