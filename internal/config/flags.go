// Package config turns command-line flags and template files into a resolved
// geocoding request.
package config

import (
	"strings"

	"github.com/spf13/pflag"

	"github.com/pspoerri/geocode/internal/coord"
)

// Options holds the geocoding options as given on the command line. Pointer
// and empty-string fields are unset unless the flag was passed explicitly.
type Options struct {
	Files       []string
	Dataset     string
	GeoToRadar  bool
	Lookup      string
	Template    string
	BBox        *coord.BBox
	LatStep     *float64
	LonStep     *float64
	Interp      string
	Fill        *float64
	Update      bool
	Output      string
	OutDir      string
	Concurrency int
}

// Flags binds the geocoding options to a pflag.FlagSet.
type Flags struct {
	fs *pflag.FlagSet

	dataset     string
	geoToRadar  bool
	lookup      string
	template    string
	bbox        string
	latStep     float64
	lonStep     float64
	interp      string
	fill        float64
	update      bool
	output      string
	outDir      string
	concurrency int
}

// flagAliases maps alternative long flag names to their canonical name.
var flagAliases = map[string]string{
	"reverse":    "geo2radar",
	"output-dir": "outdir",
}

// NewFlags registers the geocoding flags on fs.
func NewFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVarP(&f.dataset, "dset", "d", "", "dataset to resample, e.g. height or unwrapPhase-20100114_20101017")
	fs.BoolVar(&f.geoToRadar, "geo2radar", false, "resample geocoded files into radar coordinates (alias --reverse)")
	fs.StringVarP(&f.lookup, "lookup", "l", "", "lookup table file generated by the InSAR processor")
	fs.StringVarP(&f.template, "template", "t", "", "template file with geocoding options")
	fs.StringVarP(&f.bbox, "bbox", "b", "", "bounding box S N W E in degrees, from the upper-left corner of the first pixel\nto the lower-right corner of the last pixel")
	fs.Float64VarP(&f.latStep, "lat-step", "y", 0, "output pixel size in degrees in latitude")
	fs.Float64VarP(&f.lonStep, "lon-step", "x", 0, "output pixel size in degrees in longitude")
	fs.StringVarP(&f.interp, "interpolate", "i", "nearest", "interpolation method: nearest, bilinear")
	fs.Float64Var(&f.fill, "fill", 0, "value for pixels outside the lookup table coverage (default NaN)")
	fs.BoolVar(&f.update, "update", false, "skip files whose output exists and is newer than the input and lookup table")
	fs.StringVarP(&f.output, "output", "o", "", "output file name (single input only; default: prefix geo_ or rdr_)")
	fs.StringVar(&f.outDir, "outdir", "", "output directory (alias --output-dir)")
	fs.IntVar(&f.concurrency, "concurrency", 0, "number of resampling workers (default: number of CPUs)")

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if canonical, ok := flagAliases[name]; ok {
			name = canonical
		}
		return pflag.NormalizedName(name)
	})
	return f
}

// Options collects the parsed flags and the positional file arguments.
// Flags that were not passed explicitly are left unset so template values
// can fill them in.
func (f *Flags) Options(files []string) (Options, error) {
	o := Options{
		Files:       files,
		Dataset:     f.dataset,
		GeoToRadar:  f.geoToRadar,
		Lookup:      f.lookup,
		Template:    f.template,
		Update:      f.update,
		Output:      f.output,
		OutDir:      f.outDir,
		Concurrency: f.concurrency,
	}
	if f.fs.Changed("bbox") {
		box, err := coord.ParseBBox(f.bbox)
		if err != nil {
			return Options{}, invalid("--bbox", err)
		}
		o.BBox = &box
	}
	if f.fs.Changed("lat-step") {
		v := f.latStep
		o.LatStep = &v
	}
	if f.fs.Changed("lon-step") {
		v := f.lonStep
		o.LonStep = &v
	}
	if f.fs.Changed("interpolate") {
		o.Interp = f.interp
	}
	if f.fs.Changed("fill") {
		v := f.fill
		o.Fill = &v
	}
	return o, nil
}

// multiValueFlags lists flags that take several space separated values.
var multiValueFlags = map[string]int{
	"--bbox": 4,
	"-b":     4,
}

// JoinMultiValueArgs rewrites "--bbox S N W E" into "--bbox=S,N,W,E" so that
// negative coordinates are not mistaken for flags. Arguments already in
// comma form are left alone.
func JoinMultiValueArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			out = append(out, args[i:]...)
			break
		}
		n, ok := multiValueFlags[a]
		if !ok || i+n >= len(args) || strings.Contains(args[i+1], ",") {
			out = append(out, a)
			continue
		}
		out = append(out, a+"="+strings.Join(args[i+1:i+1+n], ","))
		i += n
	}
	return out
}
