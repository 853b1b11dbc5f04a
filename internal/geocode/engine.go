package geocode

import (
	"io"

	"github.com/pspoerri/geocode/internal/attr"
	"github.com/pspoerri/geocode/internal/resample"
)

// LookupEngine returns an EngineFactory that loads the request's lookup table
// through rd and derives the output geometry from it. A non-nil progress
// writer gets a progress bar per resampled dataset.
func LookupEngine(rd resample.LookupReader, progress io.Writer) EngineFactory {
	return func(req Request, first *attr.Map) (Engine, error) {
		lut, err := resample.LoadLookup(rd, req.LookupTable)
		if err != nil {
			return nil, err
		}
		rs, err := resample.New(lut, resample.Options{
			Reverse:  req.Direction == GeoToRadar,
			BBox:     req.BoundingBox,
			Step:     req.GridStep,
			Source:   first,
			Progress: progress,
		})
		if err != nil {
			return nil, err
		}
		return rs, nil
	}
}
