package resample

import (
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/pspoerri/geocode/internal/raster"
)

// Resampler applies one precomputed geometry to any number of arrays.
type Resampler struct {
	lut      *Lookup
	geom     *Geometry
	progress io.Writer
}

// New builds the output geometry for lut.
func New(lut *Lookup, opts Options) (*Resampler, error) {
	g, err := BuildGeometry(lut, opts)
	if err != nil {
		return nil, err
	}
	return &Resampler{lut: lut, geom: g, progress: opts.Progress}, nil
}

// Geometry returns the shared output geometry.
func (r *Resampler) Geometry() *Geometry { return r.geom }

// LatLonOf maps a radar pixel to latitude/longitude through the lookup table.
func (r *Resampler) LatLonOf(y, x int) (lat, lon float64) {
	return r.lut.LatLonOf(y, x)
}

// Resample maps src onto the output grid. src is either 2-D (rows, cols) or
// channel-last 3-D (rows, cols, n). Output pixels without a source location
// are set to fill. Rows are distributed over workers goroutines; the call
// blocks until every row is done.
func (r *Resampler) Resample(src raster.Array, method Method, fill float64, workers int) (raster.Array, error) {
	g := r.geom
	if err := src.Validate(); err != nil {
		return raster.Array{}, err
	}
	if src.Rank() != 2 && src.Rank() != 3 {
		return raster.Array{}, fmt.Errorf("resample: rank %d array not supported (want 2-D or channel-last 3-D)", src.Rank())
	}
	if src.Shape[0] != g.SrcLength || src.Shape[1] != g.SrcWidth {
		return raster.Array{}, fmt.Errorf("%w: source is %dx%d, lookup expects %dx%d",
			ErrShapeMismatch, src.Shape[0], src.Shape[1], g.SrcLength, g.SrcWidth)
	}

	channels := 1
	var out raster.Array
	if src.Rank() == 3 {
		channels = src.Shape[2]
		out = raster.NewArray(g.Length, g.Width, channels)
	} else {
		out = raster.NewArray(g.Length, g.Width)
	}

	if workers < 1 {
		workers = 1
	}
	var pb *progressBar
	if r.progress != nil {
		pb = newProgressBar(r.progress, "  rows", int64(g.Length))
	}
	rows := make(chan int, workers*2)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := sampler{src: src, channels: channels, fill: float32(fill)}
			for row := range rows {
				base := row * g.Width * channels
				for col := 0; col < g.Width; col++ {
					dst := out.Data[base+col*channels : base+(col+1)*channels]
					fy, fx, ok := g.SourcePixel(row, col)
					if !ok {
						s.fillPixel(dst)
						continue
					}
					switch method {
					case Bilinear:
						s.bilinear(dst, fy, fx)
					default:
						s.nearest(dst, fy, fx)
					}
				}
				if pb != nil {
					pb.Increment()
				}
			}
		}()
	}

	for row := 0; row < g.Length; row++ {
		rows <- row
	}
	close(rows)
	wg.Wait()
	if pb != nil {
		pb.Finish()
	}

	return out, nil
}

// sampler reads pixels from a 2-D or channel-last 3-D source.
type sampler struct {
	src      raster.Array
	channels int
	fill     float32
}

func (s *sampler) fillPixel(dst []float32) {
	for i := range dst {
		dst[i] = s.fill
	}
}

func (s *sampler) pixel(y, x int) []float32 {
	off := (y*s.src.Shape[1] + x) * s.channels
	return s.src.Data[off : off+s.channels]
}

func (s *sampler) inside(fy, fx float64) bool {
	h, w := float64(s.src.Shape[0]), float64(s.src.Shape[1])
	return fy >= -0.5 && fy < h-0.5 && fx >= -0.5 && fx < w-0.5
}

func (s *sampler) nearest(dst []float32, fy, fx float64) {
	if !s.inside(fy, fx) {
		s.fillPixel(dst)
		return
	}
	y := clampInt(int(math.Round(fy)), 0, s.src.Shape[0]-1)
	x := clampInt(int(math.Round(fx)), 0, s.src.Shape[1]-1)
	copy(dst, s.pixel(y, x))
}

// bilinear blends the four surrounding pixels. NaN neighbours are skipped and
// the remaining weights renormalised, so a single invalid pixel does not
// blank its whole neighbourhood.
func (s *sampler) bilinear(dst []float32, fy, fx float64) {
	if !s.inside(fy, fx) {
		s.fillPixel(dst)
		return
	}
	h, w := s.src.Shape[0], s.src.Shape[1]
	fy = clampFloat(fy, 0, float64(h-1))
	fx = clampFloat(fx, 0, float64(w-1))
	y0, x0 := int(math.Floor(fy)), int(math.Floor(fx))
	y1, x1 := min(y0+1, h-1), min(x0+1, w-1)
	dy, dx := fy-float64(y0), fx-float64(x0)

	corners := [4]struct {
		px []float32
		w  float64
	}{
		{s.pixel(y0, x0), (1 - dy) * (1 - dx)},
		{s.pixel(y0, x1), (1 - dy) * dx},
		{s.pixel(y1, x0), dy * (1 - dx)},
		{s.pixel(y1, x1), dy * dx},
	}
	for ch := 0; ch < s.channels; ch++ {
		var sum, wsum float64
		for _, c := range corners {
			v := float64(c.px[ch])
			if math.IsNaN(v) || c.w == 0 {
				continue
			}
			sum += v * c.w
			wsum += c.w
		}
		if wsum == 0 {
			dst[ch] = float32(math.NaN())
			continue
		}
		dst[ch] = float32(sum / wsum)
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
