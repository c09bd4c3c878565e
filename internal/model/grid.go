// Package model defines the payload shapes collectors write and handlers
// serve: event lists, raster/vector grids and compact records.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// GridHeader describes a regular lat/lon mesh. Lo1 is the west edge (either
// -180..180 or 0..360 layout), La1 the north edge; rows run north to south.
type GridHeader struct {
	Nx  int     `json:"nx"`
	Ny  int     `json:"ny"`
	Lo1 float64 `json:"lo1"`
	La1 float64 `json:"la1"`
	Dx  float64 `json:"dx"`
	Dy  float64 `json:"dy"`
}

// GridData is a row-major scalar field; NaN cells marshal as JSON null.
type GridData []float64

func (g GridData) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.Grow(len(g)*8 + 2)
	b.WriteByte('[')
	for i, v := range g {
		if i > 0 {
			b.WriteByte(',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			b.WriteString("null")
			continue
		}
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	b.WriteByte(']')
	return b.Bytes(), nil
}

func (g *GridData) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(GridData, len(raw))
	for i, p := range raw {
		if p == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *p
	}
	*g = out
	return nil
}

type RasterGrid struct {
	Header GridHeader `json:"header"`
	Data   GridData   `json:"data"`
	Unit   string     `json:"unit"`
	Name   string     `json:"name"`
}

// VectorGrid carries u/v components sharing one header (wind, currents).
type VectorGrid struct {
	Header GridHeader `json:"header"`
	U      GridData   `json:"u"`
	V      GridData   `json:"v"`
	Unit   string     `json:"unit"`
	Name   string     `json:"name"`
}

func (h GridHeader) validate(n int) error {
	if h.Nx <= 0 || h.Ny <= 0 {
		return fmt.Errorf("grid: nx=%d ny=%d must be positive", h.Nx, h.Ny)
	}
	if h.Dx <= 0 || h.Dy <= 0 {
		return fmt.Errorf("grid: dx=%g dy=%g must be positive", h.Dx, h.Dy)
	}
	if n != h.Nx*h.Ny {
		return fmt.Errorf("grid: data length %d != nx*ny %d", n, h.Nx*h.Ny)
	}
	return nil
}

func (r RasterGrid) Validate() error { return r.Header.validate(len(r.Data)) }

func (v VectorGrid) Validate() error {
	if err := v.Header.validate(len(v.U)); err != nil {
		return err
	}
	return v.Header.validate(len(v.V))
}

// At returns the value at row yi, column xi.
func (r RasterGrid) At(yi, xi int) float64 { return r.Data[yi*r.Header.Nx+xi] }

// Lat and Lon give the cell coordinates for grid indices.
func (h GridHeader) Lat(yi int) float64 { return h.La1 - float64(yi)*h.Dy }
func (h GridHeader) Lon(xi int) float64 { return h.Lo1 + float64(xi)*h.Dx }

// Downsample keeps every factor-th cell in both axes.
func (r RasterGrid) Downsample(factor int) RasterGrid {
	if factor <= 1 {
		return r
	}
	nx := (r.Header.Nx + factor - 1) / factor
	ny := (r.Header.Ny + factor - 1) / factor
	data := make(GridData, 0, nx*ny)
	for yi := 0; yi < r.Header.Ny; yi += factor {
		for xi := 0; xi < r.Header.Nx; xi += factor {
			data = append(data, r.At(yi, xi))
		}
	}
	h := r.Header
	h.Nx, h.Ny = nx, ny
	h.Dx *= float64(factor)
	h.Dy *= float64(factor)
	return RasterGrid{Header: h, Data: data, Unit: r.Unit, Name: r.Name}
}

// Downsample applies the raster downsampling to both components.
func (v VectorGrid) Downsample(factor int) VectorGrid {
	if factor <= 1 {
		return v
	}
	u := RasterGrid{Header: v.Header, Data: v.U}.Downsample(factor)
	w := RasterGrid{Header: v.Header, Data: v.V}.Downsample(factor)
	return VectorGrid{Header: u.Header, U: u.Data, V: w.Data, Unit: v.Unit, Name: v.Name}
}
