package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Faultbox/sdat-terrain/internal/terrain"
	vmath "github.com/Faultbox/sdat-terrain/pkg/math"
	"github.com/Faultbox/sdat-terrain/pkg/scale"
)

var measureCmd = &cobra.Command{
	Use:   "measure [dir]",
	Short: "Measure the distance between two grid points",
	Long: `Reconstruct the grid and report the straight-line distance between two points
given in grid cells (x east, y north, from the south-west corner), one cell being
one meter. Elevations at both points are interpolated from the grid.

Without --from/--to only the map size is printed.

Examples:
  sdatool measure ./world --from 0,0 --to 300,400
  sdatool measure ./world --from 10.5,20 --to 64,64 --units both`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := datasetDir(args)
		if err != nil {
			return err
		}
		from, _ := cmd.Flags().GetFloat64Slice("from")
		to, _ := cmd.Flags().GetFloat64Slice("to")
		if (len(from) == 0) != (len(to) == 0) {
			return errors.New("--from and --to must be given together")
		}
		if len(from) > 0 && (len(from) != 2 || len(to) != 2) {
			return errors.New("points are given as X,Y")
		}

		p, err := openPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		grid, report, err := p.reconstruct(cmd.Context(), dir)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		units := cfg.Units()
		fmt.Fprintf(out, "Result:   %s\n", report.Summary())
		fmt.Fprintf(out, "Map:      %s\n", grid.Scale.MapSize(grid.SectorsX, grid.SectorsY).Format(units))
		if len(from) == 0 {
			return nil
		}

		a := vmath.Vec2{X: from[0], Y: from[1]}
		b := vmath.Vec2{X: to[0], Y: to[1]}
		printPoint(out, "From", grid, a)
		printPoint(out, "To", grid, b)
		fmt.Fprintf(out, "Distance: %s\n", scale.FormatDistance(scale.DistanceMeters(a, b), units))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(measureCmd)

	measureCmd.Flags().Float64Slice("from", nil, "Start point as X,Y in grid cells")
	measureCmd.Flags().Float64Slice("to", nil, "End point as X,Y in grid cells")
}

func printPoint(out io.Writer, label string, grid *terrain.WorldGrid, p vmath.Vec2) {
	fmt.Fprintf(out, "%-9s (%g, %g)", label+":", p.X, p.Y)

	x, y := p.Floor()
	cell := scale.Cell{X: x, Y: y}
	if pl, ok := grid.SectorAt(cell); ok {
		_, lx, ly := grid.Scale.LocalCell(cell)
		fmt.Fprintf(out, " in sector %s cell (%d, %d)", pl.ID, lx, ly)
	}
	if h, ok := grid.HeightAt(p.X, p.Y); ok {
		fmt.Fprintf(out, ", elevation %.2f m", h)
	} else {
		fmt.Fprintf(out, ", no data")
	}
	fmt.Fprintln(out)
}
