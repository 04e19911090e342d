package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/sdat-terrain/internal/export"
	"github.com/Faultbox/sdat-terrain/pkg/formats/sdattest"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	sdattest.WriteFile(t, dir, "sd_0_0.sdat", sdattest.Sector{Width: 4, Height: 4, Heights: sdattest.Flat(4, 4, 10)}.Bytes())
	sdattest.WriteFile(t, dir, "sd_1_0.sdat", sdattest.Sector{Width: 4, Height: 4, Heights: sdattest.Flat(4, 4, 20)}.Bytes())
	sdattest.WriteFile(t, dir, "sd_0_1.sdat", []byte("SDAT\x01\x01"))
	sdattest.WriteFile(t, dir, "notes.txt", []byte("hello"))

	outDir := t.TempDir()
	output := filepath.Join(outDir, "world.png")
	text, err := run(t, "build", dir, "-o", output, "--mask")
	require.NoError(t, err)
	assert.Contains(t, text, "2/3 sectors placed, TruncatedData=1")
	assert.Contains(t, text, "(0, 1)")
	assert.Contains(t, text, "notes.txt")
	assert.Contains(t, text, "8.00 m x 8.00 m")

	assert.FileExists(t, output)
	assert.FileExists(t, filepath.Join(outDir, "world_mask.png"))
	meta, err := export.LoadSidecar(filepath.Join(outDir, "world.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8, meta.Width)
	assert.Equal(t, 8, meta.Height)
	assert.Equal(t, 10.0, meta.Elevation.Min)
	assert.Equal(t, 20.0, meta.Elevation.Max)
}

func TestMeasure(t *testing.T) {
	dir := t.TempDir()
	sdattest.WriteFile(t, dir, "sd_0_0.sdat", sdattest.Sector{Width: 8, Height: 8, Heights: sdattest.Flat(8, 8, 5)}.Bytes())

	text, err := run(t, "measure", dir, "--from", "0,0", "--to", "3,4")
	require.NoError(t, err)
	assert.Contains(t, text, "Distance: 5.00 m")
	assert.Contains(t, text, "elevation 5.00 m")
	assert.Contains(t, text, "in sector (0, 0) cell (3, 4)")

	_, err = run(t, "measure", dir, "--from", "1,1", "--to", "")
	assert.Error(t, err)
}

func TestInspectAndWater(t *testing.T) {
	dir := t.TempDir()
	heights := make([]float32, 65*65)
	path := sdattest.WriteFile(t, dir, "sd0.csdat", sdattest.CSDAT(heights, 12.5, `graphics\_materials\editor\water_sea.material`))

	text, err := run(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, text, "Format:    csdat")
	assert.Contains(t, text, "65x65")
	assert.Contains(t, text, "water_sea.material")

	text, err = run(t, "water", dir)
	require.NoError(t, err)
	assert.Contains(t, text, "12.500")
	assert.Contains(t, text, "1 of 1 legacy sectors declare water")
}

func TestLayouts(t *testing.T) {
	text, err := run(t, "layouts")
	require.NoError(t, err)
	assert.Contains(t, text, "bottom-left")
	assert.Contains(t, text, "blocks-vertical-swap03")
}

func TestConfigSaveAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sdatool.yaml")
	text, err := run(t, "config", "save", path, "--layout", "top-left")
	require.NoError(t, err)
	assert.Contains(t, text, "Saved "+path)
	assert.FileExists(t, path)

	text, err = run(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, text, "# loaded from "+path)
	assert.Contains(t, text, "layout: top-left")
}
