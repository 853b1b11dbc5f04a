// Package coord implements the regular latitude/longitude grid arithmetic
// shared by the metadata rewrite and the resample engine.
package coord

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// BBox is a geographic bounding box in degrees, ordered south, north, west,
// east. It spans from the upper-left corner of the first pixel to the
// lower-right corner of the last one.
type BBox struct {
	S, N, W, E float64
}

// String formats the box as "S,N,W,E".
func (b BBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.S, b.N, b.W, b.E)
}

// Valid reports whether the box has a positive extent on both axes.
func (b BBox) Valid() bool {
	return b.N > b.S && b.E > b.W
}

// ParseBBox parses four numbers in S,N,W,E order, separated by commas or
// blanks.
func ParseBBox(s string) (BBox, error) {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("bounding box %q: expected 4 values (S N W E), got %d", s, len(parts))
	}
	vals, err := parseFloats(parts)
	if err != nil {
		return BBox{}, fmt.Errorf("bounding box %q: %w", s, err)
	}
	return BBoxFromSlice(vals)
}

// BBoxFromSlice builds a box from a four element S, N, W, E slice.
func BBoxFromSlice(v []float64) (BBox, error) {
	if len(v) != 4 {
		return BBox{}, fmt.Errorf("bounding box: expected 4 values (S N W E), got %d", len(v))
	}
	return BBox{S: v[0], N: v[1], W: v[2], E: v[3]}, nil
}

func parseFloats(parts []string) ([]float64, error) {
	out := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// Step is the output pixel size in degrees. Lat is negative for north-up
// grids, matching the sign convention of Y_STEP.
type Step struct {
	Lat, Lon float64
}

// NorthUp returns the step with a negative latitude and positive longitude
// component, regardless of the signs it was given with.
func (s Step) NorthUp() Step {
	return Step{Lat: -math.Abs(s.Lat), Lon: math.Abs(s.Lon)}
}

// Grid describes a regular lat/lon raster. Y0/X0 are the outer edges of the
// first pixel; DY/DX the per-pixel steps.
type Grid struct {
	Y0, X0 float64
	DY, DX float64
	Length int
	Width  int
}

// NewGrid lays a grid over box with the given step.
// The size is round(extent/|step|) on each axis, at least one pixel.
func NewGrid(box BBox, step Step) Grid {
	step = step.NorthUp()
	length := int(math.Round((box.N - box.S) / math.Abs(step.Lat)))
	width := int(math.Round((box.E - box.W) / step.Lon))
	if length < 1 {
		length = 1
	}
	if width < 1 {
		width = 1
	}
	return Grid{Y0: box.N, X0: box.W, DY: step.Lat, DX: step.Lon, Length: length, Width: width}
}

// BBox returns the box covered by the grid.
func (g Grid) BBox() BBox {
	return BBox{
		S: g.Y0 + float64(g.Length)*g.DY,
		N: g.Y0,
		W: g.X0,
		E: g.X0 + float64(g.Width)*g.DX,
	}
}

// Step returns the grid step.
func (g Grid) Step() Step {
	return Step{Lat: g.DY, Lon: g.DX}
}

// CenterLat returns the latitude of the centre of row r.
func (g Grid) CenterLat(r int) float64 {
	return g.Y0 + (float64(r)+0.5)*g.DY
}

// CenterLon returns the longitude of the centre of column c.
func (g Grid) CenterLon(c int) float64 {
	return g.X0 + (float64(c)+0.5)*g.DX
}

// Row returns the fractional row whose centre is at lat.
func (g Grid) Row(lat float64) float64 {
	return (lat-g.Y0)/g.DY - 0.5
}

// Col returns the fractional column whose centre is at lon.
func (g Grid) Col(lon float64) float64 {
	return (lon-g.X0)/g.DX - 0.5
}

// Index converts a coordinate to the nearest integer grid index using
// round((value - origin) / step), with ties going to the even index.
func Index(value, origin, step float64) int {
	return int(math.RoundToEven((value - origin) / step))
}
