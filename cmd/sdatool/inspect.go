package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Faultbox/sdat-terrain/internal/catalog"
	"github.com/Faultbox/sdat-terrain/pkg/formats"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>...",
	Short: "Show the header, chunk table and elevation range of sector files",
	Long: `Decode individual sector files and print what they contain. The format is taken
from the file name (.sdat or .csdat) unless --format is set.

Examples:
  sdatool inspect world/sd12.sdat
  sdatool inspect --format csdat dump/*.bin`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		forced, err := formats.ParseFormat(cfg.Dataset.Format)
		if err != nil {
			return err
		}

		failed := 0
		for i, path := range args {
			if i > 0 {
				fmt.Fprintln(out)
			}
			format := forced
			if format == formats.FormatAuto {
				if n, err := catalog.ParseName(filepath.Base(path)); err == nil {
					format = n.Format
				}
			}
			if err := inspectFile(out, path, format); err != nil {
				fmt.Fprintf(out, "  Error: %v\n", err)
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed to decode", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func inspectFile(out io.Writer, path string, format formats.Format) error {
	fmt.Fprintf(out, "%s\n", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  Size:      %d bytes\n", len(data))

	if formats.HasSDATMagic(data) {
		s, err := formats.ParseSDAT(data)
		if err != nil {
			return err
		}
		printSDATHeader(out, s)
	}

	tile, err := formats.Decode(data, format)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  Format:    %s\n", tile.Format)
	if tile.Empty {
		fmt.Fprintf(out, "  Tile:      empty\n")
		return nil
	}
	fmt.Fprintf(out, "  Tile:      %dx%d, %d/%d cells with data\n",
		tile.Width, tile.Height, tile.CountValid(), len(tile.Samples))
	if lo, hi, ok := tile.ElevationRange(); ok {
		fmt.Fprintf(out, "  Elevation: %.3f .. %.3f m\n", lo, hi)
	}
	if tile.HasCoords {
		fmt.Fprintf(out, "  Declares:  (%d, %d)\n", tile.SectorX, tile.SectorY)
	}
	if w := tile.Water; w != nil {
		printWater(out, w)
	}
	return nil
}

func printSDATHeader(out io.Writer, s *formats.SDAT) {
	h := s.Header
	enc := h.Encoding
	fmt.Fprintf(out, "  Version:   %s\n", h.Version)
	fmt.Fprintf(out, "  Flags:     0x%04x\n", h.Flags)
	fmt.Fprintf(out, "  Cells:     %dx%d, %d chunks\n", h.Width, h.Height, h.ChunkCount)
	fmt.Fprintf(out, "  Encoding:  %s %d-bit, stride %d, scale %g, bias %g",
		enc.Kind, int(enc.Width)*8, enc.Stride, enc.Scale, enc.Bias)
	if enc.HasNoData {
		fmt.Fprintf(out, ", no-data 0x%x", enc.NoData)
	}
	fmt.Fprintln(out)

	if len(s.Chunks) == 0 {
		return
	}
	fmt.Fprintf(out, "  Chunks:\n")
	fmt.Fprintf(out, "    %4s %5s %5s %5s %5s %10s %10s  %s\n", "#", "row", "col", "rows", "cols", "offset", "length", "codec")
	for i, c := range s.Chunks {
		fmt.Fprintf(out, "    %4d %5d %5d %5d %5d %10d %10d  %s\n",
			i, c.Row, c.Col, c.Rows, c.Cols, c.Offset, c.Length, c.Codec)
	}
}

func printWater(out io.Writer, w *formats.WaterInfo) {
	if !w.HasWater() {
		fmt.Fprintf(out, "  Water:     none\n")
		return
	}
	fmt.Fprintf(out, "  Water:     %.3f m (offset 0x%x)\n", w.Height, w.HeightOffset)
	if w.Material != "" {
		fmt.Fprintf(out, "  Material:  %s (offset 0x%x)\n", w.Material, w.MaterialOffset)
	}
}
