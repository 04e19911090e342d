// Package config handles sdatool configuration loading and management.
package config

import (
	"fmt"
	"time"

	"github.com/Faultbox/sdat-terrain/internal/catalog"
	"github.com/Faultbox/sdat-terrain/internal/export"
	"github.com/Faultbox/sdat-terrain/internal/logger"
	"github.com/Faultbox/sdat-terrain/internal/terrain"
	"github.com/Faultbox/sdat-terrain/pkg/formats"
	"github.com/Faultbox/sdat-terrain/pkg/scale"
)

// Config holds all tool settings.
type Config struct {
	Dataset  DatasetConfig  `yaml:"dataset"`
	Assembly AssemblyConfig `yaml:"assembly"`
	Export   ExportConfig   `yaml:"export"`
	Measure  MeasureConfig  `yaml:"measure"`
	Cache    CacheConfig    `yaml:"cache"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatasetConfig describes the sector directory and its naming convention.
type DatasetConfig struct {
	Dir       string `yaml:"dir"`
	Format    string `yaml:"format"`    // auto, sdat, csdat
	Layout    string `yaml:"layout"`    // Sector ordering for numbered names
	Columns   int    `yaml:"columns"`   // Zero means suggested from the sector count
	Rows      int    `yaml:"rows"`      // Zero means suggested from the sector count
	Recursive bool   `yaml:"recursive"` // Descend into subdirectories
	TieBreak  string `yaml:"tie_break"` // first, newest
}

// AssemblyConfig controls grid reconstruction.
type AssemblyConfig struct {
	Workers     int           `yaml:"workers"` // Zero means one per CPU
	Strict      bool          `yaml:"strict"`
	TileWidth   int           `yaml:"tile_width"`  // Zero means discovered
	TileHeight  int           `yaml:"tile_height"` // Zero means discovered
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// ExportConfig controls heightmap output.
type ExportConfig struct {
	Format   string  `yaml:"format"` // png, tiff
	BitDepth int     `yaml:"bit_depth"`
	Mode     string  `yaml:"mode"` // raw, normalize
	Clip     bool    `yaml:"clip"`
	Step     float64 `yaml:"step"`   // Meters per unit in raw mode; zero means the bit depth default
	Offset   float64 `yaml:"offset"` // Elevation written as zero in raw mode
	Mask     bool    `yaml:"mask"`
	Sidecar  bool    `yaml:"sidecar"`
}

// MeasureConfig holds distance display settings.
type MeasureConfig struct {
	Units string `yaml:"units"` // metric, imperial, both
}

// CacheConfig holds the decoded tile cache settings.
type CacheConfig struct {
	Dir string `yaml:"dir"` // Empty disables the cache
}

// MetricsConfig holds metrics output settings.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // Empty disables the dump
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Dataset: DatasetConfig{
			Format:   "auto",
			Layout:   catalog.LayoutBottomLeft.String(),
			TieBreak: catalog.TieBreakFirst.String(),
		},
		Assembly: AssemblyConfig{
			ReadTimeout: terrain.DefaultReadTimeout,
		},
		Export: ExportConfig{
			Format:   "png",
			BitDepth: 16,
			Mode:     "raw",
			Sidecar:  true,
		},
		Measure: MeasureConfig{
			Units: "metric",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks every enumerated setting.
func (c *Config) Validate() error {
	if _, err := c.ScanOptions(); err != nil {
		return err
	}
	if _, _, err := c.ExportOptions(); err != nil {
		return err
	}
	if _, err := scale.ParseUnits(c.Measure.Units); err != nil {
		return err
	}
	if c.Assembly.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Assembly.Workers)
	}
	if c.Assembly.TileWidth < 0 || c.Assembly.TileHeight < 0 {
		return fmt.Errorf("invalid tile size %dx%d", c.Assembly.TileWidth, c.Assembly.TileHeight)
	}
	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// ScanOptions converts the dataset section into catalog options.
func (c *Config) ScanOptions() (catalog.Options, error) {
	format, err := formats.ParseFormat(c.Dataset.Format)
	if err != nil {
		return catalog.Options{}, err
	}
	layout, err := catalog.ParseLayout(c.Dataset.Layout)
	if err != nil {
		return catalog.Options{}, err
	}
	tb, err := catalog.ParseTieBreak(c.Dataset.TieBreak)
	if err != nil {
		return catalog.Options{}, err
	}
	return catalog.Options{
		Format:    format,
		Layout:    layout,
		Columns:   c.Dataset.Columns,
		Rows:      c.Dataset.Rows,
		Recursive: c.Dataset.Recursive,
		TieBreak:  tb,
		Strict:    c.Assembly.Strict,
	}, nil
}

// AssemblyOptions converts the assembly section into assembler options.
func (c *Config) AssemblyOptions() terrain.Options {
	return terrain.Options{
		Workers:     c.Assembly.Workers,
		Strict:      c.Assembly.Strict,
		TileWidth:   c.Assembly.TileWidth,
		TileHeight:  c.Assembly.TileHeight,
		ReadTimeout: c.Assembly.ReadTimeout,
	}
}

// ExportOptions converts the export section into encoder options and an image format.
func (c *Config) ExportOptions() (export.Options, export.ImageFormat, error) {
	mode, err := export.ParseMode(c.Export.Mode)
	if err != nil {
		return export.Options{}, 0, err
	}
	f, err := export.ParseImageFormat(c.Export.Format)
	if err != nil {
		return export.Options{}, 0, err
	}
	switch c.Export.BitDepth {
	case 0, 8, 16:
	default:
		return export.Options{}, 0, fmt.Errorf("unsupported bit depth %d", c.Export.BitDepth)
	}
	return export.Options{
		Mode:     mode,
		BitDepth: c.Export.BitDepth,
		Clip:     c.Export.Clip,
		Step:     c.Export.Step,
		Offset:   c.Export.Offset,
		Mask:     c.Export.Mask,
	}, f, nil
}

// Units returns the configured measurement units, metric when unset or invalid.
func (c *Config) Units() scale.Units {
	u, err := scale.ParseUnits(c.Measure.Units)
	if err != nil {
		return scale.UnitsMetric
	}
	return u
}
