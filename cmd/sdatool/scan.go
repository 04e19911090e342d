package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan [dir]",
	Short: "Index a sector directory without decoding",
	Long: `List every sector file found in a directory together with the SectorID its name
resolves to. Files that do not follow the naming convention are reported and skipped;
duplicate SectorIDs are resolved with --tie-break (or rejected with --strict).

Examples:
  sdatool scan ./world
  sdatool scan ./world --layout blocks-vertical --columns 8 --rows 8`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := datasetDir(args)
		if err != nil {
			return err
		}
		p, err := openPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		cat, err := p.scan(cmd.Context(), dir)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Directory: %s\n", cat.Dir)
		fmt.Fprintf(out, "Sectors:   %d\n", cat.Len())
		if cat.Columns > 0 {
			fmt.Fprintf(out, "Grid:      %dx%d (%s)\n", cat.Columns, cat.Rows, cat.Layout)
		}
		if lo, hi, ok := cat.Bounds(); ok {
			fmt.Fprintf(out, "Bounds:    %s .. %s\n", lo, hi)
		}

		fmt.Fprintf(out, "\n%-12s %6s  %-6s %10s  %s\n", "Sector", "Index", "Format", "Size", "File")
		for e := range cat.All() {
			index := "-"
			if e.Index >= 0 {
				index = fmt.Sprint(e.Index)
			}
			fmt.Fprintf(out, "%-12s %6s  %-6s %10d  %s\n", e.ID, index, e.Format, e.Size, filepath.Base(e.Path))
		}

		if len(cat.Conflicts) > 0 {
			fmt.Fprintf(out, "\nDuplicates (%s):\n", cfg.Dataset.TieBreak)
			for _, c := range cat.Conflicts {
				fmt.Fprintf(out, "  %s kept %s, dropped %v\n", c.ID, filepath.Base(c.Kept), c.Dropped)
			}
		}
		if len(cat.Warnings) > 0 {
			fmt.Fprintf(out, "\nSkipped files:\n")
			for _, w := range cat.Warnings {
				fmt.Fprintf(out, "  %s\n", w)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
