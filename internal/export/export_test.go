package export

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"

	"github.com/Faultbox/sdat-terrain/internal/catalog"
	"github.com/Faultbox/sdat-terrain/internal/terrain"
	"github.com/Faultbox/sdat-terrain/pkg/formats"
	"github.com/Faultbox/sdat-terrain/pkg/scale"
)

type tiles map[scale.SectorID]*formats.Tile

func (m tiles) Load(_ context.Context, e *catalog.Entry) (*formats.Tile, error) {
	return m[e.ID], nil
}

func buildGrid(t *testing.T, m tiles) *terrain.WorldGrid {
	t.Helper()
	cat := catalog.New()
	for id := range m {
		require.NoError(t, cat.Add(&catalog.Entry{ID: id, Path: id.String()}))
	}
	grid, report, err := terrain.NewAssembler(terrain.Options{Workers: 1, Source: m}).Assemble(context.Background(), cat)
	require.NoError(t, err)
	require.NoError(t, report.Err())
	return grid
}

// 2x2 grid: south row 0, 1; north row 2, no-data.
func smallGrid(t *testing.T) *terrain.WorldGrid {
	return buildGrid(t, tiles{
		{}: {Width: 2, Height: 2, Samples: []float32{0, 1, 2, formats.NoData}},
	})
}

func TestEncodeRaw16(t *testing.T) {
	hm, err := Encode(smallGrid(t), Options{Mask: true})
	require.NoError(t, err)
	assert.Equal(t, 16, hm.Options.BitDepth)
	assert.Equal(t, DefaultStep16, hm.Options.Step)
	assert.Equal(t, 65535, hm.MaxValue)
	require.IsType(t, &image.Gray16{}, hm.Image)

	// North up: image row 0 is grid row 1.
	assert.Equal(t, uint16(256), hm.Pixel(0, 0))
	assert.Equal(t, uint16(NoDataValue), hm.Pixel(1, 0))
	assert.Equal(t, uint16(0), hm.Pixel(0, 1))
	assert.Equal(t, uint16(128), hm.Pixel(1, 1))

	require.NotNil(t, hm.Mask)
	assert.Equal(t, uint8(255), hm.Mask.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(0), hm.Mask.GrayAt(1, 0).Y)
	assert.Equal(t, uint8(255), hm.Mask.GrayAt(0, 1).Y)

	h, ok := hm.Elevation(hm.Pixel(0, 0))
	require.True(t, ok)
	assert.InDelta(t, 2.0, h, 1e-9)
}

func TestEncodeNormalize(t *testing.T) {
	hm, err := Encode(smallGrid(t), Options{Mode: ModeNormalize})
	require.NoError(t, err)
	assert.Nil(t, hm.Mask)
	assert.Equal(t, uint16(65535), hm.Pixel(0, 0))
	assert.Equal(t, uint16(NoDataValue), hm.Pixel(1, 0))
	assert.Equal(t, uint16(1), hm.Pixel(0, 1))
	assert.Equal(t, uint16(32768), hm.Pixel(1, 1))

	_, ok := hm.Elevation(NoDataValue)
	assert.False(t, ok)
	h, ok := hm.Elevation(65535)
	require.True(t, ok)
	assert.InDelta(t, 2.0, h, 1e-9)

	hm, err = Encode(smallGrid(t), Options{Mode: ModeNormalize, BitDepth: 8})
	require.NoError(t, err)
	require.IsType(t, &image.Gray{}, hm.Image)
	assert.Equal(t, uint16(255), hm.Pixel(0, 0))
	assert.Equal(t, uint16(128), hm.Pixel(1, 1))
	assert.Equal(t, uint16(1), hm.Pixel(0, 1))
}

func TestEncodeNormalizeFlat(t *testing.T) {
	grid := buildGrid(t, tiles{{}: {Width: 1, Height: 1, Samples: []float32{7}}})
	hm, err := Encode(grid, Options{Mode: ModeNormalize})
	require.NoError(t, err)
	assert.Equal(t, uint16(1), hm.Pixel(0, 0))
}

func TestEncodeRangeOverflow(t *testing.T) {
	grid := buildGrid(t, tiles{{}: {Width: 2, Height: 1, Samples: []float32{600, -1}}})

	_, err := Encode(grid, Options{})
	require.ErrorIs(t, err, formats.ErrRangeOverflow)
	assert.Equal(t, formats.KindRangeOverflow, formats.KindOf(err))

	hm, err := Encode(grid, Options{Clip: true})
	require.NoError(t, err)
	assert.Equal(t, uint16(65535), hm.Pixel(0, 0))
	assert.Equal(t, uint16(0), hm.Pixel(1, 0))
	assert.Equal(t, 2, hm.Clipped)

	// An offset and a coarser step bring both values into range.
	hm, err = Encode(grid, Options{Step: 0.5, Offset: -1})
	require.NoError(t, err)
	assert.Equal(t, uint16(1202), hm.Pixel(0, 0))
	assert.Equal(t, uint16(0), hm.Pixel(1, 0))
	assert.Zero(t, hm.Clipped)

	_, err = Encode(grid, Options{BitDepth: 8})
	assert.ErrorIs(t, err, formats.ErrRangeOverflow)
}

func TestOptionsValidation(t *testing.T) {
	grid := smallGrid(t)
	_, err := Encode(grid, Options{BitDepth: 12})
	assert.Error(t, err)
	_, err = Encode(grid, Options{Step: -1})
	assert.Error(t, err)

	hm, err := Encode(grid, Options{BitDepth: 8})
	require.NoError(t, err)
	assert.Equal(t, DefaultStep8, hm.Options.Step)
}

func TestParse(t *testing.T) {
	m, err := ParseMode("Normalize")
	require.NoError(t, err)
	assert.Equal(t, ModeNormalize, m)
	_, err = ParseMode("log")
	assert.Error(t, err)

	f, err := ParseImageFormat("tif")
	require.NoError(t, err)
	assert.Equal(t, FormatTIFF, f)
	_, err = ParseImageFormat("jpeg")
	assert.Error(t, err)

	f, ok := FormatFromPath("out/map.TIFF")
	assert.True(t, ok)
	assert.Equal(t, FormatTIFF, f)
	_, ok = FormatFromPath("map.bmp")
	assert.False(t, ok)
}

func TestSavePNG(t *testing.T) {
	grid := buildGrid(t, tiles{
		{X: 0, Y: 0}: {Width: 2, Height: 2, Samples: []float32{0, 1, 2, 3}},
		{X: 1, Y: 0}: {Width: 2, Height: 2, Samples: []float32{4, 5, 6, formats.NoData}},
	})
	hm, err := Encode(grid, Options{Mask: true})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "world.png")
	files, err := hm.Save(path, FormatPNG, true)
	require.NoError(t, err)
	assert.Equal(t, path, files.Image)
	assert.FileExists(t, files.Mask)
	assert.FileExists(t, files.Sidecar)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	gray, ok := img.(*image.Gray16)
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 4, 2), gray.Bounds())
	assert.Equal(t, uint16(6*128), gray.Gray16At(2, 0).Y)
	assert.Equal(t, uint16(NoDataValue), gray.Gray16At(3, 0).Y)

	meta, err := LoadSidecar(files.Sidecar)
	require.NoError(t, err)
	assert.Equal(t, "world.png", meta.Image)
	assert.Equal(t, "world_mask.png", meta.Mask)
	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, 16, meta.BitDepth)
	assert.Equal(t, "north-up", meta.Orientation)
	assert.Equal(t, 1.0, meta.MetersPerCell)
	assert.Equal(t, 4, meta.Width)
	assert.Equal(t, 2, meta.Height)
	assert.Equal(t, 2, meta.TileWidth)
	assert.Equal(t, SidecarPoint{X: 2, Y: 1}, meta.Sectors)
	assert.Equal(t, SidecarPoint{}, meta.Origin)
	assert.Equal(t, "raw", meta.Encoding.Mode)
	assert.Equal(t, DefaultStep16, meta.Encoding.Step)
	assert.Equal(t, 0.0, meta.Elevation.Min)
	assert.Equal(t, 6.0, meta.Elevation.Max)
	assert.InDelta(t, 7.0/8.0, meta.Elevation.Coverage, 1e-9)
}

func TestSaveTIFF(t *testing.T) {
	hm, err := Encode(smallGrid(t), Options{})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "world.tiff")
	files, err := hm.Save(path, FormatTIFF, false)
	require.NoError(t, err)
	assert.Empty(t, files.Mask)
	assert.Empty(t, files.Sidecar)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := tiff.Decode(f)
	require.NoError(t, err)
	gray, ok := img.(*image.Gray16)
	require.True(t, ok)
	assert.Equal(t, uint16(256), gray.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(128), gray.Gray16At(1, 1).Y)
}
