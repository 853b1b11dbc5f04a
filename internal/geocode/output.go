package geocode

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pspoerri/geocode/internal/raster"
)

// OutputPath derives the output file for infile. An explicit OutputFile wins
// for single-file runs; otherwise the name is the direction prefix followed
// by the dataset filter (plus the container extension) or the input's base
// name, placed in OutputDir when one is set.
func OutputPath(req Request, infile string) string {
	if len(req.InputFiles) == 1 && req.OutputFile != "" {
		return req.OutputFile
	}

	var name string
	if req.DatasetFilter != "" {
		name = req.Direction.Prefix() + req.DatasetFilter + raster.Ext
	} else {
		name = req.Direction.Prefix() + filepath.Base(infile)
	}
	if req.OutputDir != "" {
		return filepath.Join(req.OutputDir, name)
	}
	return name
}

// NeedsUpdate reports whether out has to be (re)generated: it does not exist
// or any dependency was modified after it.
func NeedsUpdate(out string, deps ...string) (bool, error) {
	oi, err := os.Stat(out)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", out, err)
	}
	for _, dep := range deps {
		di, err := os.Stat(dep)
		if err != nil {
			return false, fmt.Errorf("stat %s: %w", dep, err)
		}
		if !oi.ModTime().After(di.ModTime()) {
			return true, nil
		}
	}
	return false, nil
}
