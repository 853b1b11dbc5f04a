package encode

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pspoerri/geocode/internal/coord"
)

// WorldFile holds the six parameters of an ESRI world file.
//
// Line 1: pixel width
// Line 2: rotation about y-axis (always 0 here)
// Line 3: rotation about x-axis (always 0 here)
// Line 4: pixel height (negative for north-up)
// Line 5: longitude of the center of the upper-left pixel
// Line 6: latitude of the center of the upper-left pixel
type WorldFile struct {
	PixelSizeX float64
	RotationY  float64
	RotationX  float64
	PixelSizeY float64
	OriginX    float64
	OriginY    float64
}

// WorldFileFromGrid describes g. The grid stores pixel edges; a world file
// anchors on the first pixel's centre.
func WorldFileFromGrid(g coord.Grid) WorldFile {
	return WorldFile{
		PixelSizeX: g.DX,
		PixelSizeY: g.DY,
		OriginX:    g.CenterLon(0),
		OriginY:    g.CenterLat(0),
	}
}

// Grid converts the world file back to an edge-anchored grid of the given
// size.
func (w WorldFile) Grid(length, width int) coord.Grid {
	return coord.Grid{
		Y0:     w.OriginY - w.PixelSizeY/2,
		X0:     w.OriginX - w.PixelSizeX/2,
		DY:     w.PixelSizeY,
		DX:     w.PixelSizeX,
		Length: length,
		Width:  width,
	}
}

// String formats the six lines of the file.
func (w WorldFile) String() string {
	var b strings.Builder
	for _, v := range []float64{w.PixelSizeX, w.RotationY, w.RotationX, w.PixelSizeY, w.OriginX, w.OriginY} {
		b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteWorldFile writes w to path.
func WriteWorldFile(path string, w WorldFile) error {
	return os.WriteFile(path, []byte(w.String()), 0o644)
}

// ReadWorldFile parses a world file. Rotated files are rejected.
func ReadWorldFile(path string) (WorldFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WorldFile{}, fmt.Errorf("reading world file %s: %w", path, err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 6 {
		return WorldFile{}, fmt.Errorf("world file %s: expected 6 lines, got %d", path, len(lines))
	}

	vals := make([]float64, 6)
	for i := range vals {
		v, err := strconv.ParseFloat(strings.TrimSpace(lines[i]), 64)
		if err != nil {
			return WorldFile{}, fmt.Errorf("world file %s line %d: %w", path, i+1, err)
		}
		vals[i] = v
	}

	w := WorldFile{
		PixelSizeX: vals[0],
		RotationY:  vals[1],
		RotationX:  vals[2],
		PixelSizeY: vals[3],
		OriginX:    vals[4],
		OriginY:    vals[5],
	}
	if w.RotationX != 0 || w.RotationY != 0 {
		return WorldFile{}, fmt.Errorf("world file %s: rotated world files are not supported (rotation: %f, %f)",
			path, w.RotationX, w.RotationY)
	}
	return w, nil
}
