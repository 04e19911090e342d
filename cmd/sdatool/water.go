package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Faultbox/sdat-terrain/pkg/formats"
)

var waterCmd = &cobra.Command{
	Use:   "water [dir]",
	Short: "List the water planes declared by legacy sectors",
	Long: `Read the water block of every legacy (.csdat) sector and list the sectors that
declare a water plane, with its height and material path.

Examples:
  sdatool water ./world
  sdatool water ./world --all`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := datasetDir(args)
		if err != nil {
			return err
		}
		all, _ := cmd.Flags().GetBool("all")

		p, err := openPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		ctx := cmd.Context()
		cat, err := p.scan(ctx, dir)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%-12s %10s  %-24s %s\n", "Sector", "Water (m)", "File", "Material")
		var legacy, wet, failed int
		for e := range cat.All() {
			if err := ctx.Err(); err != nil {
				return err
			}
			tile, err := p.source.Load(ctx, e)
			if err != nil {
				failed++
				continue
			}
			if tile.Format != formats.FormatCSDAT {
				continue
			}
			legacy++

			w := tile.Water
			if w.HasWater() {
				wet++
			} else if !all {
				continue
			}
			height := "-"
			material := ""
			if w.HasWater() {
				height = fmt.Sprintf("%.3f", w.Height)
				material = w.Material
			}
			fmt.Fprintf(out, "%-12s %10s  %-24s %s\n", e.ID, height, filepath.Base(e.Path), material)
		}

		fmt.Fprintf(out, "\n%d of %d legacy sectors declare water", wet, legacy)
		if failed > 0 {
			fmt.Fprintf(out, ", %d sectors failed to decode", failed)
		}
		fmt.Fprintln(out)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(waterCmd)

	waterCmd.Flags().Bool("all", false, "Also list legacy sectors without water")
}
