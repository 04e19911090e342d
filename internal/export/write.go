package export

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"
	"gopkg.in/yaml.v3"
)

// ImageFormat is an output container.
type ImageFormat uint8

const (
	FormatPNG ImageFormat = iota
	FormatTIFF
)

// String returns the format name.
func (f ImageFormat) String() string {
	switch f {
	case FormatPNG:
		return "png"
	case FormatTIFF:
		return "tiff"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// ParseImageFormat converts a name into an ImageFormat.
func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	default:
		return FormatPNG, fmt.Errorf("unknown image format %q", s)
	}
}

// FormatFromPath picks the format from a file extension. ok is false for unknown extensions.
func FormatFromPath(path string) (f ImageFormat, ok bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return FormatPNG, true
	case ".tif", ".tiff":
		return FormatTIFF, true
	default:
		return FormatPNG, false
	}
}

// WriteImage encodes img to w.
func WriteImage(w io.Writer, img image.Image, f ImageFormat) error {
	switch f {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unknown image format %s", f)
	}
}

// Files lists what Save wrote.
type Files struct {
	Image   string
	Mask    string // Empty when no mask was built
	Sidecar string // Empty when the sidecar was disabled
}

// Save writes the heightmap to path, plus "<stem>_mask.png" when a mask was built and
// "<stem>.yaml" when sidecar is set.
func (hm *Heightmap) Save(path string, f ImageFormat, sidecar bool) (Files, error) {
	files := Files{Image: path}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return files, fmt.Errorf("creating output dir: %w", err)
		}
	}

	if err := writeFile(path, hm.Image, f); err != nil {
		return files, err
	}

	stem := strings.TrimSuffix(path, filepath.Ext(path))
	if hm.Mask != nil {
		files.Mask = stem + "_mask.png"
		if err := writeFile(files.Mask, hm.Mask, FormatPNG); err != nil {
			return files, err
		}
	}

	if sidecar {
		files.Sidecar = stem + ".yaml"
		meta := hm.Sidecar(filepath.Base(path), f)
		if files.Mask != "" {
			meta.Mask = filepath.Base(files.Mask)
		}
		if err := meta.Save(files.Sidecar); err != nil {
			return files, err
		}
	}
	return files, nil
}

func writeFile(path string, img image.Image, f ImageFormat) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	if err := WriteImage(file, img, f); err != nil {
		file.Close()
		return fmt.Errorf("encoding %s: %w", f, err)
	}
	return file.Close()
}

// Sidecar is the scale metadata written next to an exported image.
type Sidecar struct {
	Image         string       `yaml:"image"`
	Format        string       `yaml:"format"`
	BitDepth      int          `yaml:"bit_depth"`
	Orientation   string       `yaml:"orientation"`
	MetersPerCell float64      `yaml:"meters_per_cell"`
	Width         int          `yaml:"width"`
	Height        int          `yaml:"height"`
	TileWidth     int          `yaml:"tile_width"`
	TileHeight    int          `yaml:"tile_height"`
	Sectors       SidecarPoint `yaml:"sectors"`
	Origin        SidecarPoint `yaml:"origin_sector"`

	Encoding  SidecarEncoding  `yaml:"encoding"`
	Elevation SidecarElevation `yaml:"elevation"`

	Mask string `yaml:"mask,omitempty"`
}

// SidecarPoint is an integer pair.
type SidecarPoint struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// SidecarEncoding records how pixel values map to meters.
type SidecarEncoding struct {
	Mode   string  `yaml:"mode"`
	Step   float64 `yaml:"step,omitempty"`
	Offset float64 `yaml:"offset"`
	NoData int     `yaml:"nodata"`
	Clip   bool    `yaml:"clip"`
}

// SidecarElevation is the grid's elevation range in meters.
type SidecarElevation struct {
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
	Coverage float64 `yaml:"coverage"`
	Clipped  int     `yaml:"clipped_cells"`
}

// Sidecar builds the metadata of hm for an image file called name.
func (hm *Heightmap) Sidecar(name string, f ImageFormat) Sidecar {
	g := hm.grid
	s := Sidecar{
		Image:         name,
		Format:        f.String(),
		BitDepth:      hm.Options.BitDepth,
		Orientation:   "north-up",
		MetersPerCell: g.Scale.MetersPerCell(),
		Width:         g.Width,
		Height:        g.Height,
		TileWidth:     g.Scale.TileWidth,
		TileHeight:    g.Scale.TileHeight,
		Sectors:       SidecarPoint{X: g.SectorsX, Y: g.SectorsY},
		Origin:        SidecarPoint{X: g.Scale.Origin.X, Y: g.Scale.Origin.Y},
		Encoding: SidecarEncoding{
			Mode:   hm.Options.Mode.String(),
			NoData: NoDataValue,
			Clip:   hm.Options.Clip,
		},
		Elevation: SidecarElevation{
			Coverage: hm.Coverage,
			Clipped:  hm.Clipped,
		},
	}
	if hm.Options.Mode == ModeRaw {
		s.Encoding.Step = hm.Options.Step
		s.Encoding.Offset = hm.Options.Offset
	}
	if hm.HasData {
		s.Elevation.Min = float64(hm.Min)
		s.Elevation.Max = float64(hm.Max)
	}
	return s
}

// Save writes the sidecar as YAML.
func (s Sidecar) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling sidecar: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing sidecar: %w", err)
	}
	return nil
}

// LoadSidecar reads a sidecar file.
func LoadSidecar(path string) (*Sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sidecar: %w", err)
	}
	var s Sidecar
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing sidecar: %w", err)
	}
	return &s, nil
}
