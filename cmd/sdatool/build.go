package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Faultbox/sdat-terrain/internal/export"
)

var buildCmd = &cobra.Command{
	Use:   "build [dir]",
	Short: "Reconstruct the heightmap and export it as an image",
	Long: `Decode every sector of a directory, stitch them into one grid and write a
grayscale heightmap. Sectors that fail to decode are reported and left as no-data
unless --strict is set.

In raw mode pixel = round((elevation - offset) / step); elevations that do not fit
the bit depth abort the export unless --clip is set. In normalize mode the grid's
elevation range is stretched over 1..max. No-data cells are always written as 0;
--mask writes a separate 8-bit mask to tell them apart.

A YAML sidecar with meters-per-cell, tile size and encoding is written next to the
image unless --no-sidecar is set.

Examples:
  sdatool build ./world -o world.png
  sdatool build ./world -o world.tiff --mode normalize --bit-depth 8
  sdatool build ./world -o world.png --offset -100 --step 0.05 --mask`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	f := buildCmd.Flags()
	f.StringP("output", "o", "heightmap.png", "Output image path")
	f.String("image-format", "", "Image format: png, tiff (default from the output extension)")
	f.Int("bit-depth", 16, "Bits per pixel: 8 or 16")
	f.String("mode", "raw", "Value mapping: raw, normalize")
	f.Bool("clip", false, "Clamp out-of-range elevations instead of failing")
	f.Float64("step", 0, "Meters per pixel unit in raw mode (0 = 1/128 for 16-bit, 1 for 8-bit)")
	f.Float64("offset", 0, "Elevation written as 0 in raw mode")
	f.Bool("mask", false, "Also write <name>_mask.png")
	f.Bool("no-sidecar", false, "Do not write the YAML sidecar")
}

func runBuild(cmd *cobra.Command, args []string) error {
	dir, err := datasetDir(args)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	output, _ := f.GetString("output")
	if f.Changed("image-format") {
		cfg.Export.Format, _ = f.GetString("image-format")
	} else if format, ok := export.FormatFromPath(output); ok {
		cfg.Export.Format = format.String()
	}
	if f.Changed("bit-depth") {
		cfg.Export.BitDepth, _ = f.GetInt("bit-depth")
	}
	if f.Changed("mode") {
		cfg.Export.Mode, _ = f.GetString("mode")
	}
	if f.Changed("clip") {
		cfg.Export.Clip, _ = f.GetBool("clip")
	}
	if f.Changed("step") {
		cfg.Export.Step, _ = f.GetFloat64("step")
	}
	if f.Changed("offset") {
		cfg.Export.Offset, _ = f.GetFloat64("offset")
	}
	if f.Changed("mask") {
		cfg.Export.Mask, _ = f.GetBool("mask")
	}
	if noSidecar, _ := f.GetBool("no-sidecar"); noSidecar {
		cfg.Export.Sidecar = false
	}

	opts, format, err := cfg.ExportOptions()
	if err != nil {
		return err
	}

	p, err := openPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	grid, report, err := p.reconstruct(cmd.Context(), dir)
	out := cmd.OutOrStdout()
	if report != nil {
		printReport(out, report)
	}
	if err != nil {
		return err
	}

	hm, err := export.Encode(grid, opts)
	if err != nil {
		return err
	}
	files, err := hm.Save(output, format, cfg.Export.Sidecar)
	if err != nil {
		return err
	}

	size := grid.Scale.MapSize(grid.SectorsX, grid.SectorsY)
	fmt.Fprintf(out, "\nMap:       %s\n", size.Format(cfg.Units()))
	fmt.Fprintf(out, "Sectors:   %dx%d from %s\n", grid.SectorsX, grid.SectorsY, grid.Scale.Origin)
	if hm.HasData {
		fmt.Fprintf(out, "Elevation: %.2f .. %.2f m, coverage %.1f%%\n", hm.Min, hm.Max, hm.Coverage*100)
	}
	fmt.Fprintf(out, "Image:     %s (%d-bit %s, %s)\n", files.Image, hm.Options.BitDepth, format, hm.Options.Mode)
	if hm.Clipped > 0 {
		fmt.Fprintf(out, "Clipped:   %d cells\n", hm.Clipped)
	}
	if files.Mask != "" {
		fmt.Fprintf(out, "Mask:      %s\n", files.Mask)
	}
	if files.Sidecar != "" {
		fmt.Fprintf(out, "Sidecar:   %s\n", files.Sidecar)
	}
	return nil
}
