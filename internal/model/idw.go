package model

import "math"

// Sample is a point observation used for interpolation.
type Sample struct {
	Lat, Lon, Value float64
}

// IDW builds a raster by inverse-distance-weighted interpolation of point
// samples onto the mesh described by h. Cells with no sample within maxDist
// degrees stay NaN.
func IDW(h GridHeader, samples []Sample, power, maxDist float64) RasterGrid {
	if power <= 0 {
		power = 2
	}
	data := make(GridData, h.Nx*h.Ny)
	for yi := 0; yi < h.Ny; yi++ {
		lat := h.Lat(yi)
		for xi := 0; xi < h.Nx; xi++ {
			lon := h.Lon(xi)
			var num, den float64
			hit := false
			for _, s := range samples {
				dLat := lat - s.Lat
				dLon := lon - s.Lon
				d2 := dLat*dLat + dLon*dLon
				if maxDist > 0 && d2 > maxDist*maxDist {
					continue
				}
				if d2 < 1e-12 {
					num, den, hit = s.Value, 1, true
					break
				}
				w := 1 / math.Pow(d2, power/2)
				num += w * s.Value
				den += w
				hit = true
			}
			if !hit || den == 0 {
				data[yi*h.Nx+xi] = math.NaN()
				continue
			}
			data[yi*h.Nx+xi] = num / den
		}
	}
	return RasterGrid{Header: h, Data: data}
}
