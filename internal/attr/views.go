package attr

import (
	"fmt"

	"github.com/pspoerri/geocode/internal/coord"
)

// GeoKeys are the keys that only make sense for a geocoded raster.
var GeoKeys = []string{YFirst, XFirst, YStep, XStep, YUnit, XUnit}

// RefKeys are the reference-pixel keys.
var RefKeys = []string{RefY, RefX, RefLat, RefLon}

// IsGeocoded reports whether the map describes a raster on a lat/lon grid.
// The presence of Y_FIRST is the only discriminator.
func (m *Map) IsGeocoded() bool {
	return m.Has(YFirst)
}

// Size returns LENGTH and WIDTH.
func (m *Map) Size() (length, width int, err error) {
	if length, err = m.Int(Length); err != nil {
		return 0, 0, err
	}
	if width, err = m.Int(Width); err != nil {
		return 0, 0, err
	}
	if length <= 0 || width <= 0 {
		return 0, 0, fmt.Errorf("invalid raster size %dx%d", length, width)
	}
	return length, width, nil
}

// SetSize overwrites LENGTH and WIDTH.
func (m *Map) SetSize(length, width int) {
	m.SetInt(Length, length)
	m.SetInt(Width, width)
}

// GeoGrid returns the lat/lon grid of a geocoded raster. ok is false when the
// map has no Y_FIRST; an error is returned when the grid keys are present but
// incomplete or malformed.
func (m *Map) GeoGrid() (g coord.Grid, ok bool, err error) {
	if !m.IsGeocoded() {
		return coord.Grid{}, false, nil
	}
	if g.Length, g.Width, err = m.Size(); err != nil {
		return coord.Grid{}, true, err
	}
	for _, f := range []struct {
		key string
		dst *float64
	}{
		{YFirst, &g.Y0},
		{XFirst, &g.X0},
		{YStep, &g.DY},
		{XStep, &g.DX},
	} {
		if *f.dst, err = m.Float(f.key); err != nil {
			return coord.Grid{}, true, err
		}
	}
	if g.DY == 0 || g.DX == 0 {
		return coord.Grid{}, true, fmt.Errorf("zero grid step (%s=%v, %s=%v)", YStep, g.DY, XStep, g.DX)
	}
	return g, true, nil
}

// SetGeoGrid writes the origin, step and units of a lat/lon grid.
// LENGTH/WIDTH are left untouched.
func (m *Map) SetGeoGrid(box coord.BBox, step coord.Step) {
	m.SetFloat(YFirst, box.N)
	m.SetFloat(XFirst, box.W)
	m.SetFloat(YStep, step.Lat)
	m.SetFloat(XStep, step.Lon)
	m.Set(YUnit, "degrees")
	m.Set(XUnit, "degrees")
}

// RefPixel returns the reference pixel row/column. ok is false when the map
// has no REF_Y.
func (m *Map) RefPixel() (y, x int, ok bool, err error) {
	if !m.Has(RefY) {
		return 0, 0, false, nil
	}
	if y, err = m.Int(RefY); err != nil {
		return 0, 0, true, err
	}
	if x, err = m.Int(RefX); err != nil {
		return 0, 0, true, err
	}
	return y, x, true, nil
}
