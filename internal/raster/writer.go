package raster

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pspoerri/geocode/internal/attr"
)

// entry pairs a directory record with the data it describes.
type entry struct {
	info DatasetInfo
	data []float32
}

// Write stores datasets and metadata in a new container at outPath.
//
// When refFile is non-empty, rank-1 datasets of the reference container that
// are not present in ds (acquisition dates, baselines and the like) are
// carried over after the new datasets.
//
// The file is assembled in a temporary file in the destination directory and
// renamed into place, so outPath either keeps its previous content or holds a
// complete container.
func Write(outPath string, ds *Datasets, meta *attr.Map, refFile string) error {
	entries := make([]entry, 0, ds.Len())
	for _, name := range ds.Names() {
		a, _ := ds.Get(name)
		if err := a.Validate(); err != nil {
			return fmt.Errorf("dataset %s: %w", name, err)
		}
		entries = append(entries, entry{info: DatasetInfo{Name: name, Shape: a.Shape}, data: a.Data})
	}

	if refFile != "" {
		aux, err := auxiliaryDatasets(refFile, ds)
		if err != nil {
			return err
		}
		entries = append(entries, aux...)
	}

	// Payload offsets are relative to the payload section, so they can be
	// assigned before the directory size is known.
	var offset uint64
	infos := make([]DatasetInfo, len(entries))
	for i := range entries {
		e := &entries[i]
		e.info.Offset = offset
		e.info.Length = uint64(len(e.data)) * 4
		offset += e.info.Length
		infos[i] = e.info
	}

	if meta == nil {
		meta = attr.New()
	}
	dirBytes, err := encodeDirectory(directory{Attributes: meta, Datasets: infos})
	if err != nil {
		return fmt.Errorf("encoding directory: %w", err)
	}

	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".stk-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	bw := bufio.NewWriterSize(tmp, 256*1024)
	h := Header{Version: Version, DirectoryLength: uint64(len(dirBytes))}
	if _, err := bw.Write(h.Serialize()); err != nil {
		cleanup()
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := bw.Write(dirBytes); err != nil {
		cleanup()
		return fmt.Errorf("writing directory: %w", err)
	}
	for _, e := range entries {
		if err := binary.Write(bw, binary.LittleEndian, e.data); err != nil {
			cleanup()
			return fmt.Errorf("writing dataset %s: %w", e.info.Name, err)
		}
	}
	if err := bw.Flush(); err != nil {
		cleanup()
		return fmt.Errorf("flushing %s: %w", outPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming %s: %w", outPath, err)
	}
	return nil
}

// auxiliaryDatasets loads the rank-1 datasets of refFile missing from ds.
func auxiliaryDatasets(refFile string, ds *Datasets) ([]entry, error) {
	r, err := Open(refFile)
	if err != nil {
		return nil, fmt.Errorf("reference file: %w", err)
	}
	defer r.Close()

	var out []entry
	for _, info := range r.Datasets() {
		if info.Rank() != 1 {
			continue
		}
		if _, ok := ds.Get(info.Name); ok {
			continue
		}
		a, err := r.Read(info.Name)
		if err != nil {
			return nil, fmt.Errorf("reference file: %w", err)
		}
		out = append(out, entry{info: DatasetInfo{Name: info.Name, Shape: a.Shape}, data: a.Data})
	}
	return out, nil
}
