package aircraft

import "testing"

const statesBody = `{
	"time": 1700000000,
	"states": [
		["4b1805", "SWR123  ", "Switzerland", 1699999998, 1699999999,
		 8.55, 47.46, 11277.6, false, 231.7, 89.5, -0.33, null, 11582.4,
		 "1000", false, 0],
		["abc999", "NOFIX   ", "Unknown", 1699999998, null,
		 null, null, null, true, null, null, null, null, null,
		 null, false, 0],
		["short", "ROW"]
	]
}`

func TestParseStates(t *testing.T) {
	records, err := parseStates([]byte(statesBody))
	if err != nil {
		t.Fatalf("parseStates: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1 (no-fix and short rows dropped)", len(records))
	}

	a := records[0]
	if a.ICAO24 != "4b1805" {
		t.Fatalf("icao24 = %q", a.ICAO24)
	}
	if a.Callsign != "SWR123" {
		t.Fatalf("callsign = %q, want trailing spaces trimmed", a.Callsign)
	}
	if a.Lat != 47.46 || a.Lon != 8.55 {
		t.Fatalf("coords = (%v, %v)", a.Lat, a.Lon)
	}
	if a.BaroAltitude == nil || *a.BaroAltitude != 11277.6 {
		t.Fatalf("baroAltitude = %v", a.BaroAltitude)
	}
	if a.GeoAltitude == nil || *a.GeoAltitude != 11582.4 {
		t.Fatalf("geoAltitude = %v", a.GeoAltitude)
	}
	if a.Velocity == nil || *a.Velocity != 231.7 {
		t.Fatalf("velocity = %v", a.Velocity)
	}
	if a.VerticalRate == nil || *a.VerticalRate != -0.33 {
		t.Fatalf("verticalRate = %v", a.VerticalRate)
	}
	if a.OnGround {
		t.Fatalf("onGround = true")
	}
	if a.Time != 1700000000000 {
		t.Fatalf("time = %d, want envelope time in ms", a.Time)
	}
}

func TestParseStates_NullOptionalsStayNil(t *testing.T) {
	body := `{"time": 1, "states": [
		["aaa", "X", "Y", 1, 1, 10.0, 20.0, null, false, null, null, null, null, null, null, false, 0]
	]}`
	records, err := parseStates([]byte(body))
	if err != nil {
		t.Fatalf("parseStates: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d", len(records))
	}
	a := records[0]
	if a.BaroAltitude != nil || a.Velocity != nil || a.Heading != nil || a.VerticalRate != nil || a.GeoAltitude != nil {
		t.Fatalf("null fields must stay nil: %+v", a)
	}
}

func TestParseStates_MalformedBody(t *testing.T) {
	if _, err := parseStates([]byte(`{"states": "not an array"}`)); err == nil {
		t.Fatalf("malformed body must fail")
	}
}

func TestParseStates_EmptyStates(t *testing.T) {
	records, err := parseStates([]byte(`{"time": 1, "states": null}`))
	if err != nil {
		t.Fatalf("parseStates: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("records = %d, want 0", len(records))
	}
}
