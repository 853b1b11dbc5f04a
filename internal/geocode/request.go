// Package geocode drives the conversion of raster containers between radar
// and geo coordinates and keeps their metadata consistent with the new grid.
package geocode

import (
	"github.com/pspoerri/geocode/internal/coord"
	"github.com/pspoerri/geocode/internal/resample"
)

// Direction is the coordinate transform requested for a run.
type Direction int

const (
	RadarToGeo Direction = iota
	GeoToRadar
)

func (d Direction) String() string {
	if d == GeoToRadar {
		return "geo2radar"
	}
	return "radar2geo"
}

// Prefix is the file name prefix of outputs produced in this direction.
func (d Direction) Prefix() string {
	if d == GeoToRadar {
		return "rdr_"
	}
	return "geo_"
}

// Request is the fully resolved description of a run. It is built once and
// not modified afterwards.
type Request struct {
	InputFiles    []string
	DatasetFilter string
	Direction     Direction
	LookupTable   string

	// BoundingBox and GridStep are nil when the lookup table decides.
	// GridStep is only set when both the latitude and longitude step were
	// given.
	BoundingBox *coord.BBox
	GridStep    *coord.Step

	Interpolation resample.Method
	FillValue     float64
	UpdateMode    bool

	// OutputFile is only honoured for single-file runs.
	OutputFile string
	OutputDir  string
	Workers    int
}
