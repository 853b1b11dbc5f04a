package geocode

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/pspoerri/geocode/internal/attr"
	"github.com/pspoerri/geocode/internal/raster"
	"github.com/pspoerri/geocode/internal/resample"
)

// Store is the raster I/O the run depends on (implemented by raster.Store).
type Store interface {
	ReadAttributes(path, dset string) (*attr.Map, error)
	ListDatasets(path, dset string) ([]string, error)
	ReadDataset(path, name string) (raster.Array, error)
	WriteDatasets(ds *raster.Datasets, outPath string, meta *attr.Map, refFile string) error
}

// Engine resamples arrays onto the run's output geometry (implemented by
// resample.Resampler).
type Engine interface {
	ReferenceResolver
	Geometry() *resample.Geometry
	Resample(src raster.Array, method resample.Method, fill float64, workers int) (raster.Array, error)
}

// EngineFactory builds the engine for a run from the resolved request and
// the attributes of its first input file. It is called at most once per run.
type EngineFactory func(req Request, first *attr.Map) (Engine, error)

// Previewer renders a quicklook of a written output.
type Previewer interface {
	WritePreview(outPath string, ds *raster.Datasets, meta *attr.Map) (string, error)
}

// Outcome tells whether a run did any work.
type Outcome int

const (
	// Proceeded means every input file was resampled or skipped as up to date.
	Proceeded Outcome = iota
	// NoOp means the input already is in the requested coordinate system.
	NoOp
)

// Result is the outcome of Runner.Run.
type Result struct {
	Outcome Outcome
	// Outputs holds one path per input file, in input order. Files skipped
	// in update mode contribute their existing output.
	Outputs []string
	// Skipped counts files left alone because their output was up to date.
	Skipped int
	// Message explains a NoOp outcome.
	Message string
}

// Runner processes the input files of a request one after the other.
type Runner struct {
	Store     Store
	NewEngine EngineFactory
	// Preview is optional.
	Preview Previewer
	Verbose bool
}

// Run resamples every input file of req. Files are processed sequentially;
// any read, resample or write error aborts the run and is returned as is.
// A file whose output was being written when the run failed must be treated
// as invalid.
func (r *Runner) Run(req Request) (Result, error) {
	if len(req.InputFiles) == 0 {
		return Result{}, fmt.Errorf("no input files")
	}
	start := time.Now()

	first, err := r.Store.ReadAttributes(req.InputFiles[0], "")
	if err != nil {
		return Result{}, err
	}
	if d, msg := CheckDirection(req.Direction, first); d == Terminate {
		log.Printf("%s, exit without doing anything", msg)
		return Result{Outcome: NoOp, Message: msg}, nil
	}

	engine, err := r.NewEngine(req, first)
	if err != nil {
		return Result{}, fmt.Errorf("preparing geometry: %w", err)
	}
	geom := engine.Geometry()
	if r.Verbose {
		log.Printf("Output grid: %d x %d (lines x columns), %d pixels covered by %s",
			geom.Length, geom.Width, geom.Coverage(), filepath.Base(geom.Source))
	}

	res := Result{Outcome: Proceeded}
	for _, infile := range req.InputFiles {
		out, skipped, err := r.processFile(req, engine, infile)
		if err != nil {
			return Result{}, err
		}
		if skipped {
			res.Skipped++
		}
		res.Outputs = append(res.Outputs, out)
	}

	log.Printf("Done: %d file(s) in %v", len(req.InputFiles), time.Since(start).Round(time.Millisecond))
	return res, nil
}

// processFile resamples one input file and writes its output. skipped is true
// when update mode found the existing output up to date.
func (r *Runner) processFile(req Request, engine Engine, infile string) (outfile string, skipped bool, err error) {
	outfile = OutputPath(req, infile)
	log.Printf("Resampling file: %s", infile)

	if req.UpdateMode {
		stale, err := NeedsUpdate(outfile, infile, req.LookupTable)
		if err != nil {
			return "", false, err
		}
		if !stale {
			log.Printf("Update mode is ON, %s is up to date, skip resampling", outfile)
			return outfile, true, nil
		}
	}

	names, err := r.Store.ListDatasets(infile, req.DatasetFilter)
	if err != nil {
		return "", false, err
	}

	width := 0
	for _, n := range names {
		width = max(width, len(n))
	}
	results := raster.NewDatasets()
	for _, name := range names {
		log.Printf("  resampling %-*s from %s using %d workers",
			width, name, filepath.Base(infile), req.Workers)
		data, err := r.Store.ReadDataset(infile, name)
		if err != nil {
			return "", false, err
		}
		out, err := resampleArray(engine, data, req)
		if err != nil {
			return "", false, fmt.Errorf("%s: dataset %s: %w", infile, name, err)
		}
		results.Set(name, out)
	}

	in, err := r.Store.ReadAttributes(infile, req.DatasetFilter)
	if err != nil {
		return "", false, err
	}
	meta, rel, err := TransformMetadata(req.Direction, in, names, engine.Geometry(), engine)
	if err != nil {
		return "", false, fmt.Errorf("%s: updating metadata: %w", infile, err)
	}
	switch rel := rel.(type) {
	case OutOfCoverage:
		log.Printf("WARNING: reference pixel (%d, %d) of %s is outside the lookup table coverage, dropping REF_* attributes. Continue.",
			rel.Y, rel.X, filepath.Base(infile))
	case Relocated:
		if r.Verbose {
			log.Printf("  reference pixel moved to (%d, %d) at lat/lon %.6f/%.6f", rel.Y, rel.X, rel.Lat, rel.Lon)
		}
	}

	refFile := infile
	if standalone(names) {
		refFile = ""
	}
	if err := r.Store.WriteDatasets(results, outfile, meta, refFile); err != nil {
		return "", false, fmt.Errorf("writing %s: %w", outfile, err)
	}
	log.Printf("  wrote %s", outfile)

	if r.Preview != nil {
		p, err := r.Preview.WritePreview(outfile, results, meta)
		if err != nil {
			return "", false, fmt.Errorf("preview of %s: %w", outfile, err)
		}
		if r.Verbose {
			log.Printf("  preview %s", p)
		}
	}
	return outfile, false, nil
}

// resampleArray runs one dataset through the engine. Rank-3 stacks are laid
// out as (n, rows, cols) on disk but resampled channel-last.
func resampleArray(engine Engine, data raster.Array, req Request) (raster.Array, error) {
	stack := data.Rank() == 3
	if stack {
		data = data.MoveAxisToLast()
	}
	out, err := engine.Resample(data, req.Interpolation, req.FillValue, req.Workers)
	if err != nil {
		return raster.Array{}, err
	}
	if stack {
		out = out.MoveAxisToFirst()
	}
	return out, nil
}
