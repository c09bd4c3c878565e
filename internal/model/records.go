package model

import "math"

// Aircraft is the public record shape served by the read api.
type Aircraft struct {
	ICAO24       string   `json:"icao24"`
	Callsign     string   `json:"callsign,omitempty"`
	Country      string   `json:"country,omitempty"`
	Lat          float64  `json:"lat"`
	Lon          float64  `json:"lon"`
	BaroAltitude *float64 `json:"baroAltitude,omitempty"`
	GeoAltitude  *float64 `json:"geoAltitude,omitempty"`
	Velocity     *float64 `json:"velocity,omitempty"`
	Heading      *float64 `json:"heading,omitempty"`
	VerticalRate *float64 `json:"verticalRate,omitempty"`
	OnGround     bool     `json:"onGround,omitempty"`
	Time         int64    `json:"time"`
}

// AircraftCompact is the storage form: optional fields omitted, coordinates
// rounded to three decimals, the rest to integers.
type AircraftCompact struct {
	I  string  `json:"i"`
	C  string  `json:"c,omitempty"`
	Co string  `json:"co,omitempty"`
	La float64 `json:"la"`
	Lo float64 `json:"lo"`
	A  *int    `json:"a,omitempty"`
	G  *int    `json:"g,omitempty"`
	V  *int    `json:"v,omitempty"`
	H  *int    `json:"h,omitempty"`
	R  *int    `json:"r,omitempty"`
	Gr bool    `json:"gr,omitempty"`
	T  int64   `json:"t"`
}

func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func roundInt(p *float64) *int {
	if p == nil {
		return nil
	}
	n := int(math.Round(*p))
	return &n
}

func toFloat(p *int) *float64 {
	if p == nil {
		return nil
	}
	f := float64(*p)
	return &f
}

func (a Aircraft) Compact() AircraftCompact {
	return AircraftCompact{
		I:  a.ICAO24,
		C:  a.Callsign,
		Co: a.Country,
		La: round3(a.Lat),
		Lo: round3(a.Lon),
		A:  roundInt(a.BaroAltitude),
		G:  roundInt(a.GeoAltitude),
		V:  roundInt(a.Velocity),
		H:  roundInt(a.Heading),
		R:  roundInt(a.VerticalRate),
		Gr: a.OnGround,
		T:  a.Time,
	}
}

// Expand restores the public shape at read time.
func (c AircraftCompact) Expand() Aircraft {
	return Aircraft{
		ICAO24:       c.I,
		Callsign:     c.C,
		Country:      c.Co,
		Lat:          c.La,
		Lon:          c.Lo,
		BaroAltitude: toFloat(c.A),
		GeoAltitude:  toFloat(c.G),
		Velocity:     toFloat(c.V),
		Heading:      toFloat(c.H),
		VerticalRate: toFloat(c.R),
		OnGround:     c.Gr,
		Time:         c.T,
	}
}

// Station is the public record for fixed receivers (KiwiSDR, APRS).
type Station struct {
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Comment  string  `json:"comment,omitempty"`
	Users    *int    `json:"users,omitempty"`
	MaxUsers *int    `json:"maxUsers,omitempty"`
	URL      string  `json:"url,omitempty"`
	Time     int64   `json:"time"`
}

type StationCompact struct {
	I  string  `json:"i"`
	N  string  `json:"n,omitempty"`
	La float64 `json:"la"`
	Lo float64 `json:"lo"`
	Cm string  `json:"cm,omitempty"`
	U  *int    `json:"u,omitempty"`
	M  *int    `json:"m,omitempty"`
	Ur string  `json:"ur,omitempty"`
	T  int64   `json:"t"`
}

func (s Station) Compact() StationCompact {
	return StationCompact{
		I:  s.ID,
		N:  s.Name,
		La: round3(s.Lat),
		Lo: round3(s.Lon),
		Cm: s.Comment,
		U:  s.Users,
		M:  s.MaxUsers,
		Ur: s.URL,
		T:  s.Time,
	}
}

func (c StationCompact) Expand() Station {
	return Station{
		ID:       c.I,
		Name:     c.N,
		Lat:      c.La,
		Lon:      c.Lo,
		Comment:  c.Cm,
		Users:    c.U,
		MaxUsers: c.M,
		URL:      c.Ur,
		Time:     c.T,
	}
}

// Strike is a single lightning discharge in the rolling window.
type Strike struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Time int64   `json:"time"` // unix ms
}

// BBox is an inclusive lat/lon bounding box used by the read api filters.
type BBox struct {
	LaMin, LaMax float64
	LoMin, LoMax float64
}

func (b BBox) Contains(lat, lon float64) bool {
	return lat >= b.LaMin && lat <= b.LaMax && lon >= b.LoMin && lon <= b.LoMax
}
