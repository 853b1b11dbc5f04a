package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/pspoerri/geocode/internal/coord"
	"github.com/pspoerri/geocode/internal/geocode"
	"github.com/pspoerri/geocode/internal/raster"
	"github.com/pspoerri/geocode/internal/resample"
)

var (
	// ErrNoInputFiles is returned when no input pattern matches a file.
	ErrNoInputFiles = errors.New("no input file found")
	// ErrLookupNotFound is returned when no lookup table can be located.
	ErrLookupNotFound = errors.New("no lookup table found")
	// ErrInvalidValue is returned for malformed option or template values.
	ErrInvalidValue = errors.New("invalid value")
)

func invalid(what string, err error) error {
	return fmt.Errorf("%w for %s: %v", ErrInvalidValue, what, err)
}

// LookupNames are the lookup table file names searched for when none is
// given explicitly, in order of preference.
var LookupNames = []string{
	"geometryRadar" + raster.Ext,
	"geometryGeo" + raster.Ext,
	"lookup" + raster.Ext,
}

// Resolve merges command-line options with template values into a request.
// Explicit options win; template values only fill fields left unset. It
// fails before any file is processed when no input matches or no lookup
// table can be found.
func Resolve(opts Options, tmpl Template) (geocode.Request, error) {
	files := ExpandInputs(opts.Files)
	if len(files) == 0 {
		return geocode.Request{}, fmt.Errorf("%w: %s", ErrNoInputFiles, strings.Join(opts.Files, " "))
	}

	lookup, err := FindLookupTable(opts.Lookup, files[0])
	if err != nil {
		return geocode.Request{}, err
	}

	req := geocode.Request{
		InputFiles:    files,
		DatasetFilter: opts.Dataset,
		Direction:     geocode.RadarToGeo,
		LookupTable:   lookup,
		UpdateMode:    opts.Update,
		OutputFile:    opts.Output,
		OutputDir:     opts.OutDir,
		Workers:       opts.Concurrency,
	}
	if opts.GeoToRadar {
		req.Direction = geocode.GeoToRadar
	}
	// A single explicit name cannot serve several outputs.
	if len(files) > 1 {
		req.OutputFile = ""
	}
	if req.Workers <= 0 {
		req.Workers = runtime.NumCPU()
	}

	req.BoundingBox = opts.BBox
	if req.BoundingBox == nil {
		if v, ok := tmpl.Value(FieldSNWE); ok {
			box, err := coord.ParseBBox(v)
			if err != nil {
				return geocode.Request{}, invalid(TemplatePrefix+FieldSNWE, err)
			}
			req.BoundingBox = &box
		}
	}

	latStep, err := floatOption(opts.LatStep, tmpl, FieldLatStep)
	if err != nil {
		return geocode.Request{}, err
	}
	lonStep, err := floatOption(opts.LonStep, tmpl, FieldLonStep)
	if err != nil {
		return geocode.Request{}, err
	}
	// Both or neither: a single-axis step never reaches the engine.
	if latStep != nil && lonStep != nil {
		req.GridStep = &coord.Step{Lat: *latStep, Lon: *lonStep}
	}

	method := opts.Interp
	if method == "" {
		method, _ = tmpl.Value(FieldInterpMethod)
	}
	if method == "" {
		method = resample.Nearest.String()
	}
	if req.Interpolation, err = resample.ParseMethod(method); err != nil {
		return geocode.Request{}, invalid("interpolation", err)
	}

	req.FillValue = math.NaN()
	if opts.Fill != nil {
		req.FillValue = *opts.Fill
	} else if v, ok := tmpl.Value(FieldFillValue); ok {
		if req.FillValue, err = ParseFill(v); err != nil {
			return geocode.Request{}, invalid(TemplatePrefix+FieldFillValue, err)
		}
	}

	return req, nil
}

func floatOption(cli *float64, tmpl Template, field string) (*float64, error) {
	if cli != nil {
		return cli, nil
	}
	v, ok := tmpl.Value(field)
	if !ok {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, invalid(TemplatePrefix+field, err)
	}
	return &f, nil
}

// ParseFill parses a fill value. Anything containing "nan" in any case is
// NaN.
func ParseFill(s string) (float64, error) {
	if strings.Contains(strings.ToLower(s), "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// ExpandInputs expands glob patterns into existing regular files. Matches of
// each pattern are sorted; duplicates keep their first position.
func ExpandInputs(patterns []string) []string {
	seen := make(map[string]bool)
	var files []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil {
			// Malformed pattern: treat it as a literal path.
			matches = []string{p}
		}
		sort.Strings(matches)
		for _, m := range matches {
			if seen[m] || !isFile(m) {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	return files
}

// FindLookupTable returns explicit when it exists, or else searches for one
// of LookupNames next to firstInput, in its inputs/ directory, in ../inputs
// and in the working directory.
func FindLookupTable(explicit, firstInput string) (string, error) {
	if explicit != "" {
		if isFile(explicit) {
			return explicit, nil
		}
		return "", fmt.Errorf("%w: %s does not exist", ErrLookupNotFound, explicit)
	}

	dir := filepath.Dir(firstInput)
	dirs := []string{
		dir,
		filepath.Join(dir, "inputs"),
		filepath.Join(dir, "..", "inputs"),
		".",
	}
	for _, d := range dirs {
		for _, name := range LookupNames {
			p := filepath.Join(d, name)
			if isFile(p) {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("%w: searched for %s in %s", ErrLookupNotFound,
		strings.Join(LookupNames, ", "), strings.Join(dirs, ", "))
}

func isFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}
