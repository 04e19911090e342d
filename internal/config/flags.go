package config

import "github.com/spf13/pflag"

// flags holds the settings that can be overridden on the command line. The CLI adds the set
// to its root command.
var flags = pflag.NewFlagSet("config", pflag.ContinueOnError)

var (
	flagConfig    = flags.String("config", "", "Path to config file")
	flagDebug     = flags.Bool("debug", false, "Enable debug logging")
	flagLogFile   = flags.String("log-file", "", "Also write JSON logs to this file")
	flagFormat    = flags.String("format", "", "Sector format: auto, sdat, csdat")
	flagLayout    = flags.String("layout", "", "Sector ordering for numbered names (see 'layouts')")
	flagColumns   = flags.Int("columns", 0, "Sector grid columns for numbered names")
	flagRows      = flags.Int("rows", 0, "Sector grid rows for numbered names")
	flagRecursive = flags.BoolP("recursive", "r", false, "Scan subdirectories")
	flagTieBreak  = flags.String("tie-break", "", "Duplicate sector rule: first, newest")
	flagWorkers   = flags.IntP("workers", "j", 0, "Concurrent sector decodes (0 = one per CPU)")
	flagStrict    = flags.Bool("strict", false, "Abort on the first failing or duplicate sector")
	flagTileSize  = flags.IntSlice("tile-size", nil, "Tile size as WIDTH,HEIGHT instead of discovering it")
	flagCacheDir  = flags.String("cache-dir", "", "Directory of the decoded tile cache")
	flagMetrics   = flags.String("metrics-textfile", "", "Write run metrics to this file")
	flagUnits     = flags.String("units", "", "Distance units: metric, imperial, both")
)

// Flags returns the flag set bound to the configuration.
func Flags() *pflag.FlagSet {
	return flags
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	if *flagFormat != "" {
		cfg.Dataset.Format = *flagFormat
	}
	if *flagLayout != "" {
		cfg.Dataset.Layout = *flagLayout
	}
	if *flagColumns > 0 {
		cfg.Dataset.Columns = *flagColumns
	}
	if *flagRows > 0 {
		cfg.Dataset.Rows = *flagRows
	}
	if flags.Changed("recursive") {
		cfg.Dataset.Recursive = *flagRecursive
	}
	if *flagTieBreak != "" {
		cfg.Dataset.TieBreak = *flagTieBreak
	}
	if *flagWorkers > 0 {
		cfg.Assembly.Workers = *flagWorkers
	}
	if flags.Changed("strict") {
		cfg.Assembly.Strict = *flagStrict
	}
	if len(*flagTileSize) == 2 {
		cfg.Assembly.TileWidth = (*flagTileSize)[0]
		cfg.Assembly.TileHeight = (*flagTileSize)[1]
	}
	if *flagCacheDir != "" {
		cfg.Cache.Dir = *flagCacheDir
	}
	if *flagMetrics != "" {
		cfg.Metrics.Textfile = *flagMetrics
	}
	if *flagUnits != "" {
		cfg.Measure.Units = *flagUnits
	}
}
