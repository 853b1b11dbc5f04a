package geocode

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/pspoerri/geocode/internal/attr"
	"github.com/pspoerri/geocode/internal/coord"
	"github.com/pspoerri/geocode/internal/raster"
	"github.com/pspoerri/geocode/internal/resample"
)

type fakeFile struct {
	attrs *attr.Map
	data  *raster.Datasets
}

type written struct {
	ds      *raster.Datasets
	meta    *attr.Map
	refFile string
}

// fakeStore keeps containers in memory.
type fakeStore struct {
	files   map[string]fakeFile
	written map[string]written
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: make(map[string]fakeFile), written: make(map[string]written)}
}

func (s *fakeStore) add(path string, atr *attr.Map, kv ...interface{}) {
	ds := raster.NewDatasets()
	for i := 0; i+1 < len(kv); i += 2 {
		ds.Set(kv[i].(string), kv[i+1].(raster.Array))
	}
	s.files[path] = fakeFile{attrs: atr, data: ds}
}

func (s *fakeStore) file(path string) (fakeFile, error) {
	f, ok := s.files[path]
	if !ok {
		return fakeFile{}, fmt.Errorf("opening %s: not found", path)
	}
	return f, nil
}

func (s *fakeStore) ReadAttributes(path, dset string) (*attr.Map, error) {
	f, err := s.file(path)
	if err != nil {
		return nil, err
	}
	atr := f.attrs.Clone()
	if a, ok := f.data.Get(dset); ok && a.Rank() >= 2 {
		atr.SetSize(a.Shape[a.Rank()-2], a.Shape[a.Rank()-1])
	}
	return atr, nil
}

func (s *fakeStore) ListDatasets(path, dset string) ([]string, error) {
	f, err := s.file(path)
	if err != nil {
		return nil, err
	}
	if dset != "" {
		if _, ok := f.data.Get(dset); !ok {
			return nil, raster.ErrDatasetNotFound
		}
		return []string{dset}, nil
	}
	var names []string
	for _, n := range f.data.Names() {
		if a, _ := f.data.Get(n); a.Rank() >= 2 {
			names = append(names, n)
		}
	}
	return names, nil
}

func (s *fakeStore) ReadDataset(path, name string) (raster.Array, error) {
	f, err := s.file(path)
	if err != nil {
		return raster.Array{}, err
	}
	a, ok := f.data.Get(name)
	if !ok {
		return raster.Array{}, raster.ErrDatasetNotFound
	}
	return a, nil
}

func (s *fakeStore) WriteDatasets(ds *raster.Datasets, outPath string, meta *attr.Map, refFile string) error {
	s.written[outPath] = written{ds: ds, meta: meta, refFile: refFile}
	return nil
}

// fakeEngine resamples everything onto a 2x2 grid filled with 1.
type fakeEngine struct {
	calls  int
	shapes [][]int
}

func (e *fakeEngine) LatLonOf(y, x int) (float64, float64) { return 0.6, 11.3 }

func (e *fakeEngine) Geometry() *resample.Geometry {
	return &resample.Geometry{
		Length: 2,
		Width:  2,
		BBox:   coord.BBox{S: 0, N: 1, W: 10, E: 12},
		Step:   coord.Step{Lat: -0.5, Lon: 1},
	}
}

func (e *fakeEngine) Resample(src raster.Array, method resample.Method, fill float64, workers int) (raster.Array, error) {
	e.calls++
	e.shapes = append(e.shapes, src.Shape)
	if src.Rank() == 3 {
		return raster.Filled(1, 2, 2, src.Shape[2]), nil
	}
	return raster.Filled(1, 2, 2), nil
}

type fakePreview struct{ paths []string }

func (p *fakePreview) WritePreview(outPath string, ds *raster.Datasets, meta *attr.Map) (string, error) {
	p.paths = append(p.paths, outPath)
	return outPath + ".png", nil
}

func radarFile() *attr.Map {
	return attr.FromPairs(attr.FileType, "ifgramStack", attr.Length, "3", attr.Width, "3", attr.RefY, "1", attr.RefX, "1")
}

func newRunner(store *fakeStore, engine *fakeEngine, factoryCalls *int) *Runner {
	return &Runner{
		Store: store,
		NewEngine: func(req Request, first *attr.Map) (Engine, error) {
			*factoryCalls++
			return engine, nil
		},
	}
}

func TestRunner_NoOp(t *testing.T) {
	store := newFakeStore()
	geo := radarFile()
	geo.Set(attr.YFirst, "1")
	store.add("geo_velocity.stk", geo, "velocity", raster.NewArray(3, 3))

	var calls int
	r := newRunner(store, &fakeEngine{}, &calls)
	res, err := r.Run(Request{InputFiles: []string{"geo_velocity.stk"}, OutputDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Outcome != NoOp || res.Message == "" {
		t.Errorf("Result = %+v, want NoOp with message", res)
	}
	if calls != 0 || len(store.written) != 0 {
		t.Errorf("engine built %d times and %d files written, want none", calls, len(store.written))
	}
}

func TestRunner_DatasetOrderAndReference(t *testing.T) {
	store := newFakeStore()
	store.add("stack.stk", radarFile(),
		"c", raster.NewArray(3, 3),
		"date", raster.NewArray(4),
		"a", raster.NewArray(3, 3),
		"b", raster.NewArray(3, 3),
	)
	engine := &fakeEngine{}
	var calls int
	r := newRunner(store, engine, &calls)
	outDir := t.TempDir()

	res, err := r.Run(Request{InputFiles: []string{"stack.stk"}, OutputDir: outDir, FillValue: math.NaN()})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := filepath.Join(outDir, "geo_stack.stk")
	if !reflect.DeepEqual(res.Outputs, []string{out}) {
		t.Errorf("Outputs = %v, want [%s]", res.Outputs, out)
	}
	w, ok := store.written[out]
	if !ok {
		t.Fatalf("nothing written to %s", out)
	}
	if got := w.ds.Names(); !reflect.DeepEqual(got, []string{"c", "a", "b"}) {
		t.Errorf("dataset order = %v, want [c a b]", got)
	}
	if w.refFile != "stack.stk" {
		t.Errorf("refFile = %q, want the input", w.refFile)
	}
	if ft, _ := w.meta.Get(attr.FileType); ft != "ifgramStack" {
		t.Errorf("FILE_TYPE = %q, want unchanged", ft)
	}
	if y, _ := w.meta.Get(attr.RefY); y != "1" {
		t.Errorf("REF_Y = %q, want relocated 1", y)
	}
	if calls != 1 || engine.calls != 3 {
		t.Errorf("factory calls %d, resample calls %d; want 1 and 3", calls, engine.calls)
	}
}

func TestRunner_FileTypeRule(t *testing.T) {
	tests := []struct {
		name     string
		dataset  string
		array    raster.Array
		wantType string
		wantRef  bool
	}{
		{"single dataset", "height", raster.NewArray(3, 3), "height", false},
		{"timeseries", "timeseries", raster.NewArray(5, 3, 3), "ifgramStack", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			store.add("in.stk", radarFile(), tt.dataset, tt.array, "date", raster.NewArray(5))
			engine := &fakeEngine{}
			var calls int
			outDir := t.TempDir()
			if _, err := newRunner(store, engine, &calls).Run(Request{InputFiles: []string{"in.stk"}, OutputDir: outDir}); err != nil {
				t.Fatalf("Run: %v", err)
			}
			w := store.written[filepath.Join(outDir, "geo_in.stk")]
			if ft, _ := w.meta.Get(attr.FileType); ft != tt.wantType {
				t.Errorf("FILE_TYPE = %q, want %q", ft, tt.wantType)
			}
			if (w.refFile != "") != tt.wantRef {
				t.Errorf("refFile = %q, want reference %v", w.refFile, tt.wantRef)
			}
		})
	}
}

func TestRunner_StackIsResampledChannelLast(t *testing.T) {
	store := newFakeStore()
	store.add("ts.stk", radarFile(), "timeseries", raster.NewArray(5, 3, 3))
	engine := &fakeEngine{}
	var calls int
	outDir := t.TempDir()
	if _, err := newRunner(store, engine, &calls).Run(Request{InputFiles: []string{"ts.stk"}, OutputDir: outDir}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := [][]int{{3, 3, 5}}; !reflect.DeepEqual(engine.shapes, want) {
		t.Errorf("engine saw shapes %v, want %v", engine.shapes, want)
	}
	out, _ := store.written[filepath.Join(outDir, "geo_ts.stk")].ds.Get("timeseries")
	if want := []int{5, 2, 2}; !reflect.DeepEqual(out.Shape, want) {
		t.Errorf("written shape = %v, want %v", out.Shape, want)
	}
}

func TestRunner_UpdateModeSkipsFreshOutputs(t *testing.T) {
	dir := t.TempDir()
	lut := filepath.Join(dir, "geometryRadar.stk")
	fresh := filepath.Join(dir, "fresh.stk")
	stale := filepath.Join(dir, "stale.stk")
	outDir := filepath.Join(dir, "geo")

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	touch(t, lut, base)
	touch(t, fresh, base)
	touch(t, stale, base.Add(2*time.Hour))
	if err := mkdir(outDir); err != nil {
		t.Fatal(err)
	}
	touch(t, filepath.Join(outDir, "geo_fresh.stk"), base.Add(time.Hour))
	touch(t, filepath.Join(outDir, "geo_stale.stk"), base.Add(time.Hour))

	store := newFakeStore()
	store.add(fresh, radarFile(), "velocity", raster.NewArray(3, 3))
	store.add(stale, radarFile(), "velocity", raster.NewArray(3, 3))
	engine := &fakeEngine{}
	var calls int
	r := newRunner(store, engine, &calls)

	res, err := r.Run(Request{
		InputFiles:  []string{fresh, stale},
		LookupTable: lut,
		UpdateMode:  true,
		OutputDir:   outDir,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Skipped != 1 || len(res.Outputs) != 2 {
		t.Errorf("Result = %+v, want 1 skipped of 2", res)
	}
	if engine.calls != 1 {
		t.Errorf("resample calls = %d, want 1 (stale file only)", engine.calls)
	}
	if _, ok := store.written[filepath.Join(outDir, "geo_fresh.stk")]; ok {
		t.Error("fresh output was rewritten")
	}
	if _, ok := store.written[filepath.Join(outDir, "geo_stale.stk")]; !ok {
		t.Error("stale output was not rewritten")
	}
}

func TestRunner_Preview(t *testing.T) {
	store := newFakeStore()
	store.add("v.stk", radarFile(), "velocity", raster.NewArray(3, 3))
	prev := &fakePreview{}
	var calls int
	r := newRunner(store, &fakeEngine{}, &calls)
	r.Preview = prev
	outDir := t.TempDir()
	if _, err := r.Run(Request{InputFiles: []string{"v.stk"}, OutputDir: outDir}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if want := []string{filepath.Join(outDir, "geo_v.stk")}; !reflect.DeepEqual(prev.paths, want) {
		t.Errorf("previews = %v, want %v", prev.paths, want)
	}
}

func TestRunner_Errors(t *testing.T) {
	store := newFakeStore()
	store.add("v.stk", radarFile(), "velocity", raster.NewArray(3, 3))

	boom := errors.New("boom")
	r := &Runner{
		Store:     store,
		NewEngine: func(Request, *attr.Map) (Engine, error) { return nil, boom },
	}
	if _, err := r.Run(Request{InputFiles: []string{"v.stk"}}); !errors.Is(err, boom) {
		t.Errorf("engine error = %v, want boom", err)
	}

	var calls int
	r = newRunner(store, &fakeEngine{}, &calls)
	_, err := r.Run(Request{InputFiles: []string{"v.stk"}, DatasetFilter: "nope", OutputDir: t.TempDir()})
	if !errors.Is(err, raster.ErrDatasetNotFound) {
		t.Errorf("dataset error = %v, want ErrDatasetNotFound", err)
	}

	if _, err := r.Run(Request{}); err == nil {
		t.Error("expected error without input files")
	}
}
