package resample

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/pspoerri/geocode/internal/attr"
	"github.com/pspoerri/geocode/internal/coord"
	"github.com/pspoerri/geocode/internal/raster"
)

// memLookup serves one lookup table from memory.
type memLookup struct {
	attrs *attr.Map
	data  map[string]raster.Array
}

func (m *memLookup) ReadAttributes(path, dset string) (*attr.Map, error) {
	return m.attrs.Clone(), nil
}

func (m *memLookup) ReadDataset(path, name string) (raster.Array, error) {
	a, ok := m.data[name]
	if !ok {
		return raster.Array{}, raster.ErrDatasetNotFound
	}
	return a, nil
}

// testGrid is the lat/lon grid whose cell centres coincide with the pixels
// of radarLookup.
var testGrid = coord.Grid{Y0: 1, X0: 10, DY: -0.25, DX: 0.5, Length: 4, Width: 4}

// radarLookup is a 4x4 radar-coded table where radar pixel (y, x) sits at the
// centre of testGrid cell (y, x).
func radarLookup(t *testing.T) *Lookup {
	t.Helper()
	lat, lon := raster.NewArray(4, 4), raster.NewArray(4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			lat.Data[y*4+x] = float32(testGrid.CenterLat(y))
			lon.Data[y*4+x] = float32(testGrid.CenterLon(x))
		}
	}
	lut, err := LoadLookup(&memLookup{
		attrs: attr.FromPairs(attr.Length, "4", attr.Width, "4"),
		data:  map[string]raster.Array{DatasetLatitude: lat, DatasetLongitude: lon},
	}, "geometryRadar.stk")
	if err != nil {
		t.Fatalf("LoadLookup: %v", err)
	}
	return lut
}

// geoLookup is a 2x2 geo-coded table over a 3x3 radar image; cell (r, c)
// maps to radar pixel (r+1, c+1).
func geoLookup(t *testing.T) *Lookup {
	t.Helper()
	atr := attr.FromPairs(attr.Length, "2", attr.Width, "2")
	atr.SetGeoGrid(coord.BBox{S: 0, N: 1, W: 10, E: 11}, coord.Step{Lat: -0.5, Lon: 0.5})
	az, rg := raster.NewArray(2, 2), raster.NewArray(2, 2)
	for r := 0; r < 2; r++ {
		for c := 0; c < 2; c++ {
			az.Data[r*2+c] = float32(r + 1)
			rg.Data[r*2+c] = float32(c + 1)
		}
	}
	lut, err := LoadLookup(&memLookup{
		attrs: atr,
		data:  map[string]raster.Array{DatasetAzimuth: az, DatasetRange: rg},
	}, "geometryGeo.stk")
	if err != nil {
		t.Fatalf("LoadLookup: %v", err)
	}
	return lut
}

func ramp(shape ...int) raster.Array {
	a := raster.NewArray(shape...)
	for i := range a.Data {
		a.Data[i] = float32(i)
	}
	return a
}

func testBox() *coord.BBox {
	return &coord.BBox{S: 0, N: 1, W: 10, E: 12}
}

func testStep() *coord.Step {
	return &coord.Step{Lat: 0.25, Lon: 0.5}
}

func TestLoadLookup_Kind(t *testing.T) {
	if k := radarLookup(t).Kind; k != RadarCoded {
		t.Errorf("radar table kind = %v", k)
	}
	geo := geoLookup(t)
	if geo.Kind != GeoCoded || geo.Length != 2 || geo.Width != 2 {
		t.Errorf("geo table = %v %dx%d", geo.Kind, geo.Length, geo.Width)
	}
}

func TestLoadLookup_MissingDataset(t *testing.T) {
	_, err := LoadLookup(&memLookup{attrs: attr.New(), data: map[string]raster.Array{}}, "x.stk")
	if !errors.Is(err, raster.ErrDatasetNotFound) {
		t.Errorf("error = %v, want ErrDatasetNotFound", err)
	}
}

func TestRadarToGeo_Identity(t *testing.T) {
	r, err := New(radarLookup(t), Options{BBox: testBox(), Step: testStep()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	g := r.Geometry()
	if g.Length != 4 || g.Width != 4 || g.SrcLength != 4 || g.SrcWidth != 4 {
		t.Fatalf("geometry %dx%d from %dx%d, want 4x4 from 4x4", g.Length, g.Width, g.SrcLength, g.SrcWidth)
	}
	if g.Coverage() != 16 {
		t.Errorf("Coverage = %d, want 16", g.Coverage())
	}
	if g.Step != (coord.Step{Lat: -0.25, Lon: 0.5}) {
		t.Errorf("Step = %+v, want north-up", g.Step)
	}

	src := ramp(4, 4)
	for _, method := range []Method{Nearest, Bilinear} {
		for _, workers := range []int{0, 1, 3} {
			out, err := r.Resample(src, method, math.NaN(), workers)
			if err != nil {
				t.Fatalf("Resample(%v, %d): %v", method, workers, err)
			}
			if !reflect.DeepEqual(out, src) {
				t.Errorf("Resample(%v, %d) = %v, want %v", method, workers, out.Data, src.Data)
			}
		}
	}
}

func TestRadarToGeo_FillOutsideCoverage(t *testing.T) {
	box := coord.BBox{S: -0.25, N: 1, W: 10, E: 12}
	r, err := New(radarLookup(t), Options{BBox: &box, Step: testStep()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := r.Resample(ramp(4, 4), Nearest, -9999, 2)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if want := []int{5, 4}; !reflect.DeepEqual(out.Shape, want) {
		t.Fatalf("shape = %v, want %v", out.Shape, want)
	}
	for c := 0; c < 4; c++ {
		if v := out.At2(4, c); v != -9999 {
			t.Errorf("row 4 col %d = %v, want fill", c, v)
		}
		if v := out.At2(3, c); v != float32(12+c) {
			t.Errorf("row 3 col %d = %v, want %d", c, v, 12+c)
		}
	}
}

func TestRadarToGeo_DefaultGrid(t *testing.T) {
	g, err := BuildGeometry(radarLookup(t), Options{})
	if err != nil {
		t.Fatalf("BuildGeometry: %v", err)
	}
	want := coord.BBox{S: 0.125, N: 0.875, W: 10.25, E: 11.75}
	if g.BBox != want {
		t.Errorf("BBox = %+v, want lookup extent %+v", g.BBox, want)
	}
	if g.Length != 4 || g.Width != 4 {
		t.Errorf("size = %dx%d, want 4x4", g.Length, g.Width)
	}
}

func TestRadarToGeo_InvalidBox(t *testing.T) {
	box := coord.BBox{S: 1, N: 0, W: 10, E: 12}
	if _, err := New(radarLookup(t), Options{BBox: &box, Step: testStep()}); err == nil {
		t.Error("expected error for S > N")
	}
}

func TestRadarToGeo_GeoCodedLookup(t *testing.T) {
	src := attr.FromPairs(attr.Length, "3", attr.Width, "3")
	r, err := New(geoLookup(t), Options{Source: src})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := r.Resample(ramp(3, 3), Nearest, math.NaN(), 2)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	want := []float32{4, 5, 7, 8}
	if !reflect.DeepEqual(out.Data, want) {
		t.Errorf("Resample = %v, want %v", out.Data, want)
	}

	if _, err := New(geoLookup(t), Options{}); err == nil {
		t.Error("expected error without source size")
	}
}

func TestGeoToRadar(t *testing.T) {
	src := attr.FromPairs(attr.Length, "4", attr.Width, "4")
	src.SetGeoGrid(testGrid.BBox(), testGrid.Step())

	r, err := New(radarLookup(t), Options{Reverse: true, Source: src})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in := ramp(4, 4)
	out, err := r.Resample(in, Nearest, math.NaN(), 4)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if !reflect.DeepEqual(out, in) {
		t.Errorf("Resample = %v, want %v", out.Data, in.Data)
	}

	if _, err := New(radarLookup(t), Options{Reverse: true, Source: attr.FromPairs(attr.Length, "4", attr.Width, "4")}); err == nil {
		t.Error("expected error for radar-coded source")
	}
	if _, err := New(geoLookup(t), Options{Reverse: true, Source: src}); !errors.Is(err, ErrUnsupportedLookup) {
		t.Errorf("error = %v, want ErrUnsupportedLookup", err)
	}
}

func TestResample_Stack(t *testing.T) {
	r, err := New(radarLookup(t), Options{BBox: testBox(), Step: testStep()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	stack := ramp(4, 4, 3)
	out, err := r.Resample(stack, Bilinear, math.NaN(), 2)
	if err != nil {
		t.Fatalf("Resample: %v", err)
	}
	if !reflect.DeepEqual(out, stack) {
		t.Errorf("channel-last stack changed: %v", out.Data)
	}
}

func TestResample_ShapeMismatch(t *testing.T) {
	r, err := New(radarLookup(t), Options{BBox: testBox(), Step: testStep()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := r.Resample(ramp(3, 3), Nearest, 0, 1); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("error = %v, want ErrShapeMismatch", err)
	}
	if _, err := r.Resample(ramp(16), Nearest, 0, 1); err == nil {
		t.Error("expected error for 1-D source")
	}
}

func TestSampler(t *testing.T) {
	src := raster.Array{Shape: []int{2, 2}, Data: []float32{0, 1, 2, 3}}
	s := sampler{src: src, channels: 1, fill: -1}
	dst := make([]float32, 1)

	tests := []struct {
		name   string
		method Method
		fy, fx float64
		want   float32
	}{
		{"nearest", Nearest, 0.4, 0.6, 1},
		{"nearest edge", Nearest, 1.4, 1.4, 3},
		{"nearest outside", Nearest, -0.6, 0, -1},
		{"bilinear centre", Bilinear, 0.5, 0.5, 1.5},
		{"bilinear on pixel", Bilinear, 1, 0, 2},
		{"bilinear outside", Bilinear, 0, 1.6, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.method == Bilinear {
				s.bilinear(dst, tt.fy, tt.fx)
			} else {
				s.nearest(dst, tt.fy, tt.fx)
			}
			if dst[0] != tt.want {
				t.Errorf("got %v, want %v", dst[0], tt.want)
			}
		})
	}

	// NaN neighbours are skipped and the remaining weights renormalised.
	src.Data[0] = float32(math.NaN())
	s.bilinear(dst, 0.5, 0.5)
	if dst[0] != 2 {
		t.Errorf("bilinear with NaN corner = %v, want 2", dst[0])
	}
}

func TestLatLonOf(t *testing.T) {
	radar := radarLookup(t)
	if lat, lon := radar.LatLonOf(1, 2); lat != 0.625 || lon != 11.25 {
		t.Errorf("radar LatLonOf(1, 2) = (%v, %v), want (0.625, 11.25)", lat, lon)
	}
	if lat, _ := radar.LatLonOf(4, 0); !math.IsNaN(lat) {
		t.Errorf("radar LatLonOf outside = %v, want NaN", lat)
	}

	geo := geoLookup(t)
	if lat, lon := geo.LatLonOf(1, 1); lat != 0.75 || lon != 10.25 {
		t.Errorf("geo LatLonOf(1, 1) = (%v, %v), want (0.75, 10.25)", lat, lon)
	}
	if lat, _ := geo.LatLonOf(0, 0); !math.IsNaN(lat) {
		t.Errorf("geo LatLonOf(0, 0) = %v, want NaN", lat)
	}
}

func TestParseMethod(t *testing.T) {
	for _, s := range []string{"nearest", "bilinear"} {
		m, err := ParseMethod(s)
		if err != nil || m.String() != s {
			t.Errorf("ParseMethod(%q) = %v, %v", s, m, err)
		}
	}
	if _, err := ParseMethod("lanczos"); err == nil {
		t.Error("expected error for lanczos")
	}
}

func TestResample_Progress(t *testing.T) {
	var buf bytes.Buffer
	r, err := New(radarLookup(t), Options{BBox: testBox(), Step: testStep(), Progress: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := r.Resample(ramp(4, 4), Nearest, 0, 2); err != nil {
		t.Fatalf("Resample: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "4/4 rows") || !strings.HasSuffix(out, "\n") {
		t.Errorf("progress output = %q, want a finished bar", out)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{45 * time.Second, "45s"},
		{83*time.Second + 400*time.Millisecond, "1m23s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
