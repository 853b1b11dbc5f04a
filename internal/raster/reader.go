package raster

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pspoerri/geocode/internal/attr"
)

// Reader provides read access to a container file.
type Reader struct {
	file        *os.File
	path        string
	attrs       *attr.Map
	datasets    []DatasetInfo
	payloadBase int64
}

// Open opens a container and parses its directory.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, headerBuf); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: reading header: %w", path, err)
	}
	h, err := DeserializeHeader(headerBuf)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	dirData := make([]byte, h.DirectoryLength)
	if _, err := io.ReadFull(f, dirData); err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: reading directory: %w", path, err)
	}
	dir, err := decodeDirectory(dirData)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Reader{
		file:        f,
		path:        path,
		attrs:       dir.Attributes,
		datasets:    dir.Datasets,
		payloadBase: int64(HeaderSize) + int64(h.DirectoryLength),
	}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Path returns the file path.
func (r *Reader) Path() string { return r.path }

// Attributes returns a copy of the file-level attributes.
func (r *Reader) Attributes() *attr.Map {
	return r.attrs.Clone()
}

// Datasets returns the directory entries in file order.
func (r *Reader) Datasets() []DatasetInfo {
	out := make([]DatasetInfo, len(r.datasets))
	copy(out, r.datasets)
	return out
}

// Info returns the directory entry for name.
func (r *Reader) Info(name string) (DatasetInfo, error) {
	for _, d := range r.datasets {
		if d.Name == name {
			return d, nil
		}
	}
	return DatasetInfo{}, fmt.Errorf("%s: %w: %s", r.path, ErrDatasetNotFound, name)
}

// Read loads the named dataset.
func (r *Reader) Read(name string) (Array, error) {
	info, err := r.Info(name)
	if err != nil {
		return Array{}, err
	}
	n := numElements(info.Shape)
	if uint64(n)*4 != info.Length {
		return Array{}, fmt.Errorf("%s: dataset %s: shape %v does not match payload length %d",
			r.path, name, info.Shape, info.Length)
	}
	a := NewArray(info.Shape...)
	sec := io.NewSectionReader(r.file, r.payloadBase+int64(info.Offset), int64(info.Length))
	if err := binary.Read(sec, binary.LittleEndian, a.Data); err != nil {
		return Array{}, fmt.Errorf("%s: reading dataset %s: %w", r.path, name, err)
	}
	return a, nil
}
