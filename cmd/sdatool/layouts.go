package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Faultbox/sdat-terrain/internal/catalog"
)

var layoutsCmd = &cobra.Command{
	Use:   "layouts",
	Short: "Show how each layout places numbered sectors",
	Long: `Print every sector layout with a preview of where sd<N> files land on a small
grid, north at the top. Use it to find the layout matching a dataset, then pass it
with --layout.

Examples:
  sdatool layouts
  sdatool layouts --columns 6 --rows 4`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		columns, rows := cfg.Dataset.Columns, cfg.Dataset.Rows
		if columns <= 0 {
			columns = 4
		}
		if rows <= 0 {
			rows = 4
		}

		out := cmd.OutOrStdout()
		for i, l := range catalog.Layouts() {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "%s: %s\n", l, l.Description())
			if _, err := catalog.NewGrid(l, columns, rows); err != nil {
				fmt.Fprintf(out, "  (%v)\n", err)
				continue
			}
			printLayout(out, l, columns, rows)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(layoutsCmd)
}

func printLayout(out io.Writer, l catalog.Layout, columns, rows int) {
	for r := 0; r < rows; r++ {
		fmt.Fprint(out, " ")
		for c := 0; c < columns; c++ {
			fmt.Fprintf(out, " %3d", l.IndexAt(r, c, columns, rows))
		}
		fmt.Fprintln(out)
	}
}
