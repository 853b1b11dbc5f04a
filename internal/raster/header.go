package raster

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pspoerri/geocode/internal/attr"
)

// Container layout:
//
//	[Header (16)] [Directory (gzip JSON)] [Dataset payloads]
//
// Payloads are little-endian float32 in row-major order. Dataset offsets in
// the directory are relative to the start of the payload section.
const (
	HeaderSize = 16
	Version    = 1

	// Ext is the file extension of a container.
	Ext = ".stk"
)

var magic = [4]byte{'G', 'S', 'T', 'K'}

var (
	// ErrNotContainer is returned for files without the container magic.
	ErrNotContainer = errors.New("not a raster container")
	// ErrDatasetNotFound is returned when a named dataset does not exist.
	ErrDatasetNotFound = errors.New("dataset not found")
)

// Header is the fixed-size file header.
type Header struct {
	Version         uint8
	DirectoryLength uint64
}

// Serialize writes the 16-byte header.
func (h *Header) Serialize() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], magic[:])
	buf[4] = h.Version
	// bytes 5-7 reserved
	binary.LittleEndian.PutUint64(buf[8:16], h.DirectoryLength)
	return buf
}

// DeserializeHeader parses a 16-byte header.
func DeserializeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header too short (%d bytes)", ErrNotContainer, len(buf))
	}
	if !bytes.Equal(buf[0:4], magic[:]) {
		return Header{}, fmt.Errorf("%w: bad magic %q", ErrNotContainer, buf[0:4])
	}
	h := Header{
		Version:         buf[4],
		DirectoryLength: binary.LittleEndian.Uint64(buf[8:16]),
	}
	if h.Version != Version {
		return Header{}, fmt.Errorf("unsupported container version %d", h.Version)
	}
	return h, nil
}

// DatasetInfo describes one dataset in the directory.
type DatasetInfo struct {
	Name   string `json:"name"`
	Shape  []int  `json:"shape"`
	Offset uint64 `json:"offset"`
	Length uint64 `json:"length"`
}

// Rank returns the number of dimensions.
func (d DatasetInfo) Rank() int { return len(d.Shape) }

// directory is the JSON body stored after the header.
type directory struct {
	Attributes *attr.Map     `json:"attributes"`
	Datasets   []DatasetInfo `json:"datasets"`
}

func encodeDirectory(dir directory) ([]byte, error) {
	raw, err := json.Marshal(dir)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := gw.Write(raw); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeDirectory(data []byte) (directory, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return directory{}, fmt.Errorf("decompressing directory: %w", err)
	}
	defer gr.Close()
	raw, err := io.ReadAll(gr)
	if err != nil {
		return directory{}, fmt.Errorf("decompressing directory: %w", err)
	}
	dir := directory{Attributes: attr.New()}
	if err := json.Unmarshal(raw, &dir); err != nil {
		return directory{}, fmt.Errorf("parsing directory: %w", err)
	}
	if dir.Attributes == nil {
		dir.Attributes = attr.New()
	}
	return dir, nil
}
