// Package config reads process-level defaults from the environment. Scenario
// parameters come from the simulation input instead.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"

	"github.com/cxd309/lawnmower-engine/internal/logging"
	"github.com/cxd309/lawnmower-engine/internal/odometry"
)

// Config holds the defaults of the command-line tools.
type Config struct {
	LogLevel  string `env:"LAWNMOWER_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LAWNMOWER_LOG_FORMAT" envDefault:"console"`

	PlotWidth  float64 `env:"LAWNMOWER_PLOT_WIDTH" envDefault:"6"`  // inches
	PlotHeight float64 `env:"LAWNMOWER_PLOT_HEIGHT" envDefault:"6"` // inches

	// Method, when set, overrides the odometry method of every robot run.
	Method odometry.Method `env:"LAWNMOWER_METHOD"`

	// TrailTolerance is the minimum displacement recorded in the path trail.
	TrailTolerance float64 `env:"LAWNMOWER_TRAIL_TOLERANCE" envDefault:"0.001"` // metres
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var err error
	if _, perr := zapcore.ParseLevel(c.LogLevel); perr != nil {
		err = multierr.Append(err, fmt.Errorf("LAWNMOWER_LOG_LEVEL: %w", perr))
	}
	if c.LogFormat != logging.FormatJSON && c.LogFormat != logging.FormatConsole {
		err = multierr.Append(err, fmt.Errorf("LAWNMOWER_LOG_FORMAT: unknown format %q", c.LogFormat))
	}
	if !(c.PlotWidth > 0) || !(c.PlotHeight > 0) {
		err = multierr.Append(err, fmt.Errorf("plot size must be positive (got %vx%v)", c.PlotWidth, c.PlotHeight))
	}
	if c.TrailTolerance < 0 {
		err = multierr.Append(err, fmt.Errorf("LAWNMOWER_TRAIL_TOLERANCE must be non-negative (got %v)", c.TrailTolerance))
	}
	return err
}
