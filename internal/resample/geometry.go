package resample

import (
	"fmt"
	"io"
	"math"

	"github.com/pspoerri/geocode/internal/attr"
	"github.com/pspoerri/geocode/internal/coord"
)

// Options controls how the output geometry is derived.
type Options struct {
	// Reverse resamples geocoded data back into radar coordinates.
	Reverse bool
	// BBox and Step override the extent and resolution of a geocoded
	// output. Nil means "derive from the lookup table".
	BBox *coord.BBox
	Step *coord.Step
	// Source holds the attributes of the first file of the run.
	Source *attr.Map
	// Progress, when non-nil, receives a progress bar for every Resample
	// call.
	Progress io.Writer
}

// Geometry is the output grid of a run together with the fractional source
// pixel every output pixel is sampled from. It is built once and read-only
// afterwards, so it can be shared across files and workers.
type Geometry struct {
	Length int
	Width  int
	BBox   coord.BBox
	Step   coord.Step
	// Source is the lookup table the geometry was derived from.
	Source string

	SrcLength int
	SrcWidth  int

	// rows/cols hold the fractional source coordinates of each output
	// pixel, NaN where the lookup table has no coverage.
	rows []float32
	cols []float32
}

// Coverage returns the number of output pixels with a source location.
func (g *Geometry) Coverage() int {
	n := 0
	for _, r := range g.rows {
		if !math.IsNaN(float64(r)) {
			n++
		}
	}
	return n
}

// SourcePixel returns the fractional source coordinate of output pixel
// (r, c); ok is false outside coverage.
func (g *Geometry) SourcePixel(r, c int) (row, col float64, ok bool) {
	k := r*g.Width + c
	row, col = float64(g.rows[k]), float64(g.cols[k])
	if math.IsNaN(row) || math.IsNaN(col) {
		return 0, 0, false
	}
	return row, col, true
}

func newGeometry(length, width int) *Geometry {
	n := length * width
	g := &Geometry{Length: length, Width: width, rows: make([]float32, n), cols: make([]float32, n)}
	nan := float32(math.NaN())
	for i := range g.rows {
		g.rows[i] = nan
		g.cols[i] = nan
	}
	return g
}

// BuildGeometry derives the output geometry for lut and opts.
func BuildGeometry(lut *Lookup, opts Options) (*Geometry, error) {
	var (
		g   *Geometry
		err error
	)
	switch {
	case opts.Reverse && lut.Kind == GeoCoded:
		return nil, fmt.Errorf("%w: resampling into radar coordinates needs a radar-coded lookup table, %s is %s",
			ErrUnsupportedLookup, lut.Path, lut.Kind)
	case opts.Reverse:
		g, err = geoToRadar(lut, opts)
	case lut.Kind == GeoCoded:
		g, err = radarToGeoFromGeoLookup(lut, opts)
	default:
		g, err = radarToGeoFromRadarLookup(lut, opts)
	}
	if err != nil {
		return nil, err
	}
	g.Source = lut.Path
	return g, nil
}

// outputGrid resolves the geocoded output grid from the overrides, falling
// back to the lookup table's own extent and resolution.
func outputGrid(lut *Lookup, opts Options) (coord.BBox, coord.Step, coord.Grid, error) {
	var box coord.BBox
	if opts.BBox != nil {
		box = *opts.BBox
	} else {
		ext, ok := lut.Extent()
		if !ok {
			return box, coord.Step{}, coord.Grid{}, fmt.Errorf("lookup table %s has no valid coordinates", lut.Path)
		}
		box = ext
	}
	if !box.Valid() {
		return box, coord.Step{}, coord.Grid{}, fmt.Errorf("invalid bounding box %s (want S<N and W<E)", box)
	}

	var step coord.Step
	switch {
	case opts.Step != nil:
		step = *opts.Step
	case lut.Kind == GeoCoded:
		step = lut.Grid.Step()
	default:
		// Roughly one output cell per lookup pixel across the extent.
		ext, _ := lut.Extent()
		step = coord.Step{
			Lat: (ext.N - ext.S) / float64(lut.Length),
			Lon: (ext.E - ext.W) / float64(lut.Width),
		}
	}
	step = step.NorthUp()
	if step.Lat == 0 || step.Lon == 0 {
		return box, step, coord.Grid{}, fmt.Errorf("invalid grid step %v", step)
	}
	return box, step, coord.NewGrid(box, step), nil
}

func sourceSize(src *attr.Map, fallbackLength, fallbackWidth int) (int, int) {
	if src != nil {
		if l, w, err := src.Size(); err == nil {
			return l, w
		}
	}
	return fallbackLength, fallbackWidth
}

func radarToGeoFromGeoLookup(lut *Lookup, opts Options) (*Geometry, error) {
	box, step, grid, err := outputGrid(lut, opts)
	if err != nil {
		return nil, err
	}
	g := newGeometry(grid.Length, grid.Width)
	g.BBox, g.Step = box, step
	// A geo-coded table does not record the radar image size.
	g.SrcLength, g.SrcWidth = sourceSize(opts.Source, 0, 0)
	if g.SrcLength == 0 {
		return nil, fmt.Errorf("source radar size unknown: %s/%s missing", attr.Length, attr.Width)
	}

	lg := lut.Grid
	for r := 0; r < grid.Length; r++ {
		lr := int(math.Round(lg.Row(grid.CenterLat(r))))
		if lr < 0 || lr >= lut.Length {
			continue
		}
		for c := 0; c < grid.Width; c++ {
			lc := int(math.Round(lg.Col(grid.CenterLon(c))))
			if lc < 0 || lc >= lut.Width {
				continue
			}
			k := lr*lut.Width + lc
			az, rg := lut.Azimuth[k], lut.Range[k]
			if !validPair(az, rg) {
				continue
			}
			g.rows[r*grid.Width+c] = az
			g.cols[r*grid.Width+c] = rg
		}
	}
	return g, nil
}

func geoToRadar(lut *Lookup, opts Options) (*Geometry, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("geocoded source attributes required")
	}
	src, ok, err := opts.Source.GeoGrid()
	if err != nil {
		return nil, fmt.Errorf("source grid: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("source is not geocoded (no %s)", attr.YFirst)
	}

	g := newGeometry(lut.Length, lut.Width)
	g.BBox, g.Step = src.BBox(), src.Step()
	g.SrcLength, g.SrcWidth = src.Length, src.Width
	for k := range lut.Lat {
		lat, lon := lut.Lat[k], lut.Lon[k]
		if !validPair(lat, lon) {
			continue
		}
		g.rows[k] = float32(src.Row(float64(lat)))
		g.cols[k] = float32(src.Col(float64(lon)))
	}
	return g, nil
}

// maxRefine bounds how far, in radar pixels, the Jacobian refinement may move
// away from its seed pixel before the result is considered an extrapolation.
const maxRefine = 1.5

// holeSearchRadius is the neighbourhood, in output cells, searched for a seed
// when no radar pixel falls inside a cell (output finer than input).
const holeSearchRadius = 2

func radarToGeoFromRadarLookup(lut *Lookup, opts Options) (*Geometry, error) {
	box, step, grid, err := outputGrid(lut, opts)
	if err != nil {
		return nil, err
	}
	g := newGeometry(grid.Length, grid.Width)
	g.BBox, g.Step = box, step
	g.SrcLength, g.SrcWidth = lut.Length, lut.Width

	// Forward splat: every radar pixel claims the output cell it falls in,
	// keeping the pixel closest to the cell centre.
	n := grid.Length * grid.Width
	seed := make([]int32, n)
	dist := make([]float64, n)
	for i := range seed {
		seed[i] = -1
		dist[i] = math.Inf(1)
	}
	for k := range lut.Lat {
		lat, lon := lut.Lat[k], lut.Lon[k]
		if !validPair(lat, lon) {
			continue
		}
		fr, fc := grid.Row(float64(lat)), grid.Col(float64(lon))
		r, c := int(math.Round(fr)), int(math.Round(fc))
		if r < 0 || r >= grid.Length || c < 0 || c >= grid.Width {
			continue
		}
		d := (fr-float64(r))*(fr-float64(r)) + (fc-float64(c))*(fc-float64(c))
		cell := r*grid.Width + c
		if d < dist[cell] {
			dist[cell] = d
			seed[cell] = int32(k)
		}
	}

	for r := 0; r < grid.Length; r++ {
		lat := grid.CenterLat(r)
		for c := 0; c < grid.Width; c++ {
			cell := r*grid.Width + c
			lon := grid.CenterLon(c)
			k := seed[cell]
			direct := k >= 0
			if !direct {
				k = nearbySeed(seed, grid, r, c)
				if k < 0 {
					continue
				}
			}
			y, x := int(k)/lut.Width, int(k)%lut.Width
			fy, fx, ok := refine(lut, y, x, lat, lon)
			if !ok {
				if !direct {
					continue
				}
				fy, fx = float64(y), float64(x)
			}
			g.rows[cell] = float32(fy)
			g.cols[cell] = float32(fx)
		}
	}
	return g, nil
}

// nearbySeed returns the seed of the closest claimed cell within
// holeSearchRadius of (r, c), or -1.
func nearbySeed(seed []int32, grid coord.Grid, r, c int) int32 {
	best := int32(-1)
	bestD := math.MaxInt
	for dr := -holeSearchRadius; dr <= holeSearchRadius; dr++ {
		rr := r + dr
		if rr < 0 || rr >= grid.Length {
			continue
		}
		for dc := -holeSearchRadius; dc <= holeSearchRadius; dc++ {
			cc := c + dc
			if cc < 0 || cc >= grid.Width {
				continue
			}
			k := seed[rr*grid.Width+cc]
			if k < 0 {
				continue
			}
			if d := dr*dr + dc*dc; d < bestD {
				bestD = d
				best = k
			}
		}
	}
	return best
}

// refine solves the local linearisation of the lookup table around radar
// pixel (y, x) for the fractional radar coordinate that maps to (lat, lon).
func refine(lut *Lookup, y, x int, lat, lon float64) (fy, fx float64, ok bool) {
	k := y*lut.Width + x
	lat0, lon0 := float64(lut.Lat[k]), float64(lut.Lon[k])

	latY, lonY, okY := derivative(lut, y, x, 1, 0)
	latX, lonX, okX := derivative(lut, y, x, 0, 1)
	if !okY || !okX {
		return 0, 0, false
	}
	det := latY*lonX - latX*lonY
	if math.Abs(det) < 1e-18 {
		return 0, 0, false
	}
	dLat, dLon := lat-lat0, lon-lon0
	dy := (dLat*lonX - latX*dLon) / det
	dx := (latY*dLon - dLat*lonY) / det
	if math.Abs(dy) > maxRefine || math.Abs(dx) > maxRefine {
		return 0, 0, false
	}
	return float64(y) + dy, float64(x) + dx, true
}

// derivative estimates d(lat)/d(step) and d(lon)/d(step) at (y, x) along the
// (sy, sx) axis, using central differences where both neighbours are valid.
func derivative(lut *Lookup, y, x, sy, sx int) (dLat, dLon float64, ok bool) {
	at := func(yy, xx int) (float64, float64, bool) {
		if yy < 0 || yy >= lut.Length || xx < 0 || xx >= lut.Width {
			return 0, 0, false
		}
		k := yy*lut.Width + xx
		if !validPair(lut.Lat[k], lut.Lon[k]) {
			return 0, 0, false
		}
		return float64(lut.Lat[k]), float64(lut.Lon[k]), true
	}
	lat0, lon0, _ := at(y, x)
	latP, lonP, okP := at(y+sy, x+sx)
	latM, lonM, okM := at(y-sy, x-sx)
	switch {
	case okP && okM:
		return (latP - latM) / 2, (lonP - lonM) / 2, true
	case okP:
		return latP - lat0, lonP - lon0, true
	case okM:
		return lat0 - latM, lon0 - lonM, true
	default:
		return 0, 0, false
	}
}
