package resample

import (
	"errors"
	"fmt"
	"math"

	"github.com/pspoerri/geocode/internal/attr"
	"github.com/pspoerri/geocode/internal/coord"
	"github.com/pspoerri/geocode/internal/raster"
)

// Dataset names inside lookup table containers.
const (
	DatasetLatitude  = "latitude"
	DatasetLongitude = "longitude"
	DatasetAzimuth   = "azimuthCoord"
	DatasetRange     = "rangeCoord"
)

var (
	// ErrShapeMismatch is returned when a source array does not match the
	// grid the geometry was built for.
	ErrShapeMismatch = errors.New("source shape does not match lookup geometry")
	// ErrUnsupportedLookup is returned for lookup/direction combinations that
	// cannot be resampled.
	ErrUnsupportedLookup = errors.New("unsupported lookup table")
)

// LookupKind tells which coordinate system a lookup table is sampled on.
type LookupKind int

const (
	// RadarCoded tables hold latitude/longitude for every radar pixel.
	RadarCoded LookupKind = iota
	// GeoCoded tables hold azimuth/range radar coordinates for every cell of
	// a lat/lon grid.
	GeoCoded
)

func (k LookupKind) String() string {
	if k == GeoCoded {
		return "geo-coded"
	}
	return "radar-coded"
}

// LookupReader is the subset of the raster store needed to load a lookup table.
type LookupReader interface {
	ReadAttributes(path, dset string) (*attr.Map, error)
	ReadDataset(path, name string) (raster.Array, error)
}

// Lookup is a per-pixel correspondence between radar and geo coordinates.
type Lookup struct {
	Path   string
	Kind   LookupKind
	Length int
	Width  int

	// Grid is the lat/lon grid of a geo-coded table.
	Grid coord.Grid

	Lat, Lon       []float32 // radar-coded
	Azimuth, Range []float32 // geo-coded
}

// LoadLookup reads a lookup table container. Tables carrying Y_FIRST are
// geo-coded, all others radar-coded.
func LoadLookup(rd LookupReader, path string) (*Lookup, error) {
	atr, err := rd.ReadAttributes(path, "")
	if err != nil {
		return nil, fmt.Errorf("lookup table: %w", err)
	}

	l := &Lookup{Path: path}
	grid, geocoded, err := atr.GeoGrid()
	if err != nil {
		return nil, fmt.Errorf("lookup table %s: %w", path, err)
	}

	var names [2]string
	if geocoded {
		l.Kind = GeoCoded
		l.Grid = grid
		names = [2]string{DatasetAzimuth, DatasetRange}
	} else {
		l.Kind = RadarCoded
		names = [2]string{DatasetLatitude, DatasetLongitude}
	}

	var arrays [2]raster.Array
	for i, name := range names {
		a, err := rd.ReadDataset(path, name)
		if err != nil {
			return nil, fmt.Errorf("lookup table: %w", err)
		}
		if a.Rank() != 2 {
			return nil, fmt.Errorf("lookup table %s: dataset %s has shape %v, want 2-D", path, name, a.Shape)
		}
		arrays[i] = a
	}
	if !sameShape(arrays[0].Shape, arrays[1].Shape) {
		return nil, fmt.Errorf("lookup table %s: %s %v and %s %v differ in shape",
			path, names[0], arrays[0].Shape, names[1], arrays[1].Shape)
	}
	l.Length, l.Width = arrays[0].Shape[0], arrays[0].Shape[1]

	if geocoded {
		if l.Length != grid.Length || l.Width != grid.Width {
			return nil, fmt.Errorf("lookup table %s: datasets are %dx%d but grid is %dx%d",
				path, l.Length, l.Width, grid.Length, grid.Width)
		}
		l.Azimuth, l.Range = arrays[0].Data, arrays[1].Data
	} else {
		l.Lat, l.Lon = arrays[0].Data, arrays[1].Data
	}
	return l, nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// validPair reports whether a lookup entry carries a usable coordinate pair.
// Processors mark missing entries with NaN or with an exact (0, 0).
func validPair(a, b float32) bool {
	if math.IsNaN(float64(a)) || math.IsNaN(float64(b)) {
		return false
	}
	return a != 0 || b != 0
}

// Extent returns the lat/lon box spanned by the valid entries of a
// radar-coded table.
func (l *Lookup) Extent() (coord.BBox, bool) {
	if l.Kind != RadarCoded {
		return l.Grid.BBox(), true
	}
	box := coord.BBox{S: math.Inf(1), N: math.Inf(-1), W: math.Inf(1), E: math.Inf(-1)}
	found := false
	for k := range l.Lat {
		lat, lon := l.Lat[k], l.Lon[k]
		if !validPair(lat, lon) {
			continue
		}
		found = true
		box.S = math.Min(box.S, float64(lat))
		box.N = math.Max(box.N, float64(lat))
		box.W = math.Min(box.W, float64(lon))
		box.E = math.Max(box.E, float64(lon))
	}
	return box, found
}

// LatLonOf maps radar pixel (y, x) to latitude/longitude. Both results are
// NaN when the pixel lies outside the table's coverage.
func (l *Lookup) LatLonOf(y, x int) (lat, lon float64) {
	nan := math.NaN()
	if l.Kind == RadarCoded {
		if y < 0 || y >= l.Length || x < 0 || x >= l.Width {
			return nan, nan
		}
		k := y*l.Width + x
		if !validPair(l.Lat[k], l.Lon[k]) {
			return nan, nan
		}
		return float64(l.Lat[k]), float64(l.Lon[k])
	}

	// Geo-coded: average the centres of every cell that maps back onto the
	// radar pixel.
	var sumLat, sumLon float64
	var n int
	fy, fx := float64(y), float64(x)
	for r := 0; r < l.Length; r++ {
		for c := 0; c < l.Width; c++ {
			k := r*l.Width + c
			az, rg := l.Azimuth[k], l.Range[k]
			if !validPair(az, rg) {
				continue
			}
			if math.Abs(float64(az)-fy) < 0.5 && math.Abs(float64(rg)-fx) < 0.5 {
				sumLat += l.Grid.CenterLat(r)
				sumLon += l.Grid.CenterLon(c)
				n++
			}
		}
	}
	if n == 0 {
		return nan, nan
	}
	return sumLat / float64(n), sumLon / float64(n)
}
