package encode

import (
	"fmt"
	"os"
	"strings"

	"github.com/pspoerri/geocode/internal/attr"
	"github.com/pspoerri/geocode/internal/raster"
)

// WorldFileExt is the extension of the world file written next to previews
// of geocoded outputs.
const WorldFileExt = ".wld"

// Preview writes quicklooks of freshly written containers.
type Preview struct {
	Encoder Encoder
}

// NewPreview returns a Preview encoding in format at quality.
func NewPreview(format string, quality int) (*Preview, error) {
	enc, err := NewEncoder(format, quality)
	if err != nil {
		return nil, err
	}
	return &Preview{Encoder: enc}, nil
}

// PreviewPath returns the image path for a container path.
func (p *Preview) PreviewPath(outPath string) string {
	return strings.TrimSuffix(outPath, raster.Ext) + p.Encoder.FileExtension()
}

// WritePreview renders the first dataset of ds next to outPath and returns
// the image path. When meta describes a lat/lon grid a world file is written
// as well.
func (p *Preview) WritePreview(outPath string, ds *raster.Datasets, meta *attr.Map) (string, error) {
	names := ds.Names()
	if len(names) == 0 {
		return "", fmt.Errorf("no dataset to preview")
	}
	a, _ := ds.Get(names[0])
	img, err := Quicklook(a)
	if err != nil {
		return "", fmt.Errorf("dataset %s: %w", names[0], err)
	}
	data, err := p.Encoder.Encode(img)
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", p.Encoder.Format(), err)
	}

	path := p.PreviewPath(outPath)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}

	grid, ok, err := meta.GeoGrid()
	if err != nil {
		return "", err
	}
	if ok {
		wld := strings.TrimSuffix(path, p.Encoder.FileExtension()) + WorldFileExt
		if err := WriteWorldFile(wld, WorldFileFromGrid(grid)); err != nil {
			return "", err
		}
	}
	return path, nil
}
