package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Faultbox/sdat-terrain/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or save the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after defaults, the config file and flags are merged.

Examples:
  sdatool config show
  sdatool config show --layout top-left --workers 4`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if path := config.Locate(); path != "" {
			fmt.Fprintf(out, "# loaded from %s\n", path)
		}
		data, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	},
}

var configSaveCmd = &cobra.Command{
	Use:   "save [path]",
	Short: "Write the effective configuration to a file",
	Long: `Write the merged configuration to path, or to the user config directory when no
path is given. Flags passed alongside are saved too.

Examples:
  sdatool config save --layout blocks-vertical --columns 8
  sdatool config save ./sdatool.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		var err error
		if len(args) > 0 {
			path = args[0]
			err = cfg.SaveTo(path)
		} else {
			path, err = cfg.Save()
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSaveCmd)
}
