// Package resample moves raster data between radar and geo coordinates
// through a lookup table.
package resample

import "fmt"

// Method selects the interpolation used when sampling the source grid.
type Method int

const (
	Nearest Method = iota
	Bilinear
)

// ParseMethod parses "nearest" or "bilinear".
func ParseMethod(s string) (Method, error) {
	switch s {
	case "nearest":
		return Nearest, nil
	case "bilinear":
		return Bilinear, nil
	default:
		return Nearest, fmt.Errorf("unsupported interpolation method: %q (supported: nearest, bilinear)", s)
	}
}

func (m Method) String() string {
	switch m {
	case Bilinear:
		return "bilinear"
	default:
		return "nearest"
	}
}
