package raster

import (
	"fmt"

	"github.com/pspoerri/geocode/internal/attr"
)

// Store is the file-backed implementation of the raster I/O operations used
// by the geocoding run. Each call opens and closes the container.
type Store struct{}

// ReadAttributes returns the metadata of path. When dset names a dataset,
// LENGTH and WIDTH describe that dataset's own row/column size.
func (Store) ReadAttributes(path, dset string) (*attr.Map, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	atr := r.Attributes()
	if dset == "" {
		return atr, nil
	}
	info, err := r.Info(dset)
	if err != nil {
		return nil, err
	}
	if rank := info.Rank(); rank >= 2 {
		atr.SetSize(info.Shape[rank-2], info.Shape[rank-1])
	}
	return atr, nil
}

// ListDatasets returns the raster (rank >= 2) datasets of path in file
// order, or just dset when it is non-empty.
func (Store) ListDatasets(path, dset string) ([]string, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if dset != "" {
		info, err := r.Info(dset)
		if err != nil {
			return nil, err
		}
		if info.Rank() < 2 {
			return nil, fmt.Errorf("%s: dataset %s is not a raster (shape %v)", path, dset, info.Shape)
		}
		return []string{dset}, nil
	}

	var names []string
	for _, info := range r.Datasets() {
		if info.Rank() >= 2 {
			names = append(names, info.Name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%s: no raster datasets", path)
	}
	return names, nil
}

// ReadDataset loads one dataset.
func (Store) ReadDataset(path, name string) (Array, error) {
	r, err := Open(path)
	if err != nil {
		return Array{}, err
	}
	defer r.Close()
	return r.Read(name)
}

// WriteDatasets writes a container; see Write.
func (Store) WriteDatasets(ds *Datasets, outPath string, meta *attr.Map, refFile string) error {
	return Write(outPath, ds, meta, refFile)
}
