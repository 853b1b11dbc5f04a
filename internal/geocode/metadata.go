package geocode

import (
	"math"

	"github.com/pspoerri/geocode/internal/attr"
	"github.com/pspoerri/geocode/internal/coord"
	"github.com/pspoerri/geocode/internal/resample"
)

// timeseriesDataset is the multi-epoch dataset that keeps the file type and
// reference-file structure of its input even when it is the only dataset.
const timeseriesDataset = "timeseries"

// ReferenceResolver maps a radar pixel to latitude/longitude. Both values
// are NaN outside the lookup table's coverage.
type ReferenceResolver interface {
	LatLonOf(y, x int) (lat, lon float64)
}

// Relocation is the result of moving a reference pixel onto the geo grid:
// either Relocated or OutOfCoverage.
type Relocation interface {
	relocation()
}

// Relocated is a reference pixel that has a position on the new grid.
type Relocated struct {
	Y, X     int
	Lat, Lon float64
}

// OutOfCoverage means the reference pixel has no lat/lon in the lookup table.
type OutOfCoverage struct {
	Y, X int
}

func (Relocated) relocation()     {}
func (OutOfCoverage) relocation() {}

// RelocateReference maps radar reference pixel (y, x) through res and onto
// grid, using round((value - origin) / step) for the new indices.
func RelocateReference(y, x int, res ReferenceResolver, origin coord.BBox, step coord.Step) Relocation {
	lat, lon := res.LatLonOf(y, x)
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return OutOfCoverage{Y: y, X: x}
	}
	return Relocated{
		Y:   coord.Index(lat, origin.N, step.Lat),
		X:   coord.Index(lon, origin.W, step.Lon),
		Lat: lat,
		Lon: lon,
	}
}

// MetadataRadarToGeo returns the attributes of a geocoded copy of in. in is
// not modified. The second result reports what happened to the reference
// pixel and is nil when in has none.
func MetadataRadarToGeo(in *attr.Map, geom *resample.Geometry, res ReferenceResolver) (*attr.Map, Relocation, error) {
	out := in.Clone()
	out.SetSize(geom.Length, geom.Width)
	out.SetGeoGrid(geom.BBox, geom.Step)

	y, x, ok, err := in.RefPixel()
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return out, nil, nil
	}

	rel := RelocateReference(y, x, res, geom.BBox, geom.Step)
	switch r := rel.(type) {
	case Relocated:
		out.SetFloat(attr.RefLat, r.Lat)
		out.SetFloat(attr.RefLon, r.Lon)
		out.SetInt(attr.RefY, r.Y)
		out.SetInt(attr.RefX, r.X)
	case OutOfCoverage:
		out.Remove(attr.RefKeys...)
	}
	return out, rel, nil
}

// MetadataGeoToRadar returns the attributes of a radar-coded copy of in. Grid
// and reference-pixel keys are dropped when present; in is not modified.
func MetadataGeoToRadar(in *attr.Map, geom *resample.Geometry) *attr.Map {
	out := in.Clone()
	out.SetSize(geom.Length, geom.Width)
	out.Remove(attr.GeoKeys...)
	out.Remove(attr.RefKeys...)
	return out
}

// standalone reports whether a file holding datasets is written as a
// single-dataset product: FILE_TYPE becomes the dataset name and the input is
// not used as reference file.
func standalone(datasets []string) bool {
	return len(datasets) == 1 && datasets[0] != timeseriesDataset
}

// TransformMetadata rewrites in for dir and marks single-dataset products
// (see standalone) with FILE_TYPE set to the dataset name.
func TransformMetadata(dir Direction, in *attr.Map, datasets []string, geom *resample.Geometry, res ReferenceResolver) (*attr.Map, Relocation, error) {
	var (
		out *attr.Map
		rel Relocation
		err error
	)
	if dir == RadarToGeo {
		out, rel, err = MetadataRadarToGeo(in, geom, res)
		if err != nil {
			return nil, nil, err
		}
	} else {
		out = MetadataGeoToRadar(in, geom)
	}
	if standalone(datasets) {
		out.Set(attr.FileType, datasets[0])
	}
	return out, rel, nil
}
