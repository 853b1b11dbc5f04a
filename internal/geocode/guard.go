package geocode

import "github.com/pspoerri/geocode/internal/attr"

// Decision is the outcome of CheckDirection.
type Decision int

const (
	Proceed Decision = iota
	// Terminate means the input already is in the target coordinate
	// system; there is nothing to do.
	Terminate
)

// CheckDirection compares the coordinate system of the first input file
// (geocoded when it carries Y_FIRST) with the requested direction. The
// returned message explains a Terminate decision.
func CheckDirection(dir Direction, first *attr.Map) (Decision, string) {
	geocoded := first.IsGeocoded()
	switch {
	case geocoded && dir == RadarToGeo:
		return Terminate, "input file is already geocoded; use --geo2radar to resample it into radar coordinates"
	case !geocoded && dir == GeoToRadar:
		return Terminate, "input file is already in radar coordinates"
	default:
		return Proceed, ""
	}
}
