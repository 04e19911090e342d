// sdatool reconstructs terrain heightmaps from game sector files.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Faultbox/sdat-terrain/internal/config"
	"github.com/Faultbox/sdat-terrain/internal/logger"
)

// cfg is loaded before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "sdatool",
	Short: "Terrain heightmap reconstruction from sector files",
	Long: `sdatool scans a directory of terrain sector files (.sdat containers or legacy
.csdat dumps), decodes every sector and stitches them into one heightmap where one
cell is one meter.

Sector files are named sd<N>.<ext> (numbered, placed through --layout) or
sd_<X>_<Y>.<ext> (explicit coordinates, Y grows north).

Settings are read from sdatool.yaml in the working directory or the user config
directory; flags override the file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return err
		}
		cfg = c

		opts := logger.Options{Level: cfg.Logging.Level, Console: cmd.ErrOrStderr()}
		if cfg.Logging.LogFile != "" {
			opts.File = logger.DefaultFileConfig(cfg.Logging.LogFile)
		}
		return logger.Setup(opts)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().AddFlagSet(config.Flags())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

// datasetDir returns the directory argument, falling back to the configured one.
func datasetDir(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Dataset.Dir != "" {
		return cfg.Dataset.Dir, nil
	}
	return "", errors.New("no sector directory: pass one or set dataset.dir")
}
