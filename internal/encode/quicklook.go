package encode

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/pspoerri/geocode/internal/raster"
)

// Stretch percentiles of the quicklook colour scale.
const (
	LowPercentile  = 2
	HighPercentile = 98
)

// Quicklook renders a 2-D array, or the first layer of a stack, as a
// grayscale image. Values are stretched linearly between the 2nd and 98th
// percentile of the finite values and clamped; non-finite pixels are
// transparent.
func Quicklook(a raster.Array) (*image.NRGBA, error) {
	switch a.Rank() {
	case 2:
	case 3:
		if a.Shape[0] == 0 {
			return nil, fmt.Errorf("empty stack %v", a.Shape)
		}
		a = a.Layer(0)
	default:
		return nil, fmt.Errorf("cannot render rank-%d array", a.Rank())
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	rows, cols := a.Shape[0], a.Shape[1]
	lo, hi := stretchRange(a.Finite())
	img := image.NewNRGBA(image.Rect(0, 0, cols, rows))
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := float64(a.At2(r, c))
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			g := scale(v, lo, hi)
			img.SetNRGBA(c, r, color.NRGBA{R: g, G: g, B: g, A: 255})
		}
	}
	return img, nil
}

// stretchRange returns the low and high percentile of vals.
func stretchRange(vals []float32) (lo, hi float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	sorted := make([]float32, len(vals))
	copy(sorted, vals)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return percentile(sorted, LowPercentile), percentile(sorted, HighPercentile)
}

// percentile picks the nearest-rank value of an ascending slice.
func percentile(sorted []float32, p float64) float64 {
	i := int(math.Round(p / 100 * float64(len(sorted)-1)))
	return float64(sorted[i])
}

func scale(v, lo, hi float64) uint8 {
	if hi <= lo {
		return 128
	}
	t := (v - lo) / (hi - lo)
	t = math.Max(0, math.Min(1, t))
	return uint8(math.Round(t * 255))
}
