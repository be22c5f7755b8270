// Command lawnmower reads a SimulationInput JSON from a file argument (or stdin),
// runs the simulation, and writes the SimulationLog JSON to stdout.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gonum.org/v1/plot/vg"

	"github.com/cxd309/lawnmower-engine/internal/config"
	"github.com/cxd309/lawnmower-engine/internal/engine"
	"github.com/cxd309/lawnmower-engine/internal/logging"
	"github.com/cxd309/lawnmower-engine/internal/odometry"
	"github.com/cxd309/lawnmower-engine/internal/trail"
)

const (
	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
	flagMethod    = "method"
	flagPlot      = "plot"
	flagPretty    = "pretty"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := newApp(cfg).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Environment settings are the flag defaults.
func newApp(cfg config.Config) *cli.App {
	logger := zap.NewNop()

	return &cli.App{
		Name:  "lawnmower",
		Usage: "simulate the odometry of a teleoperated lawnmower",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagLogLevel,
				Value: cfg.LogLevel,
				Usage: "log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  flagLogFormat,
				Value: cfg.LogFormat,
				Usage: "log format (console, json)",
			},
		},
		Before: func(c *cli.Context) error {
			l, err := logging.New(c.String(flagLogLevel), c.String(flagLogFormat))
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		After: func(*cli.Context) error {
			_ = logger.Sync()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "run a simulation and print its log",
				ArgsUsage: "[input.json]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagMethod,
						Value: string(cfg.Method),
						Usage: "override the robot's odometry method (first_order, second_order, analytical)",
					},
					&cli.StringFlag{
						Name:  flagPlot,
						Usage: "render the driven path to `FILE` (.png, .svg, .pdf)",
					},
					&cli.BoolFlag{
						Name:  flagPretty,
						Usage: "indent the JSON output",
					},
				},
				Action: func(c *cli.Context) error {
					return runAction(c, cfg, logger)
				},
			},
			{
				Name:      "compare",
				Usage:     "run a simulation with every odometry method and compare the final poses",
				ArgsUsage: "[input.json]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  flagPretty,
						Usage: "indent the JSON output",
					},
				},
				Action: func(c *cli.Context) error {
					input, err := readInput(c, cfg)
					if err != nil {
						return err
					}
					comparison, err := engine.Compare(input, logger)
					if err != nil {
						return fmt.Errorf("comparison error: %w", err)
					}
					return writeJSON(c.App.Writer, comparison, c.Bool(flagPretty))
				},
			},
			{
				Name:  "methods",
				Usage: "list the odometry methods",
				Action: func(c *cli.Context) error {
					for _, m := range odometry.Methods {
						fmt.Fprintln(c.App.Writer, m)
					}
					return nil
				},
			},
		},
	}
}

func runAction(c *cli.Context, cfg config.Config, logger *zap.Logger) error {
	input, err := readInput(c, cfg)
	if err != nil {
		return err
	}
	if name := c.String(flagMethod); name != "" {
		m, err := odometry.ParseMethod(name)
		if err != nil {
			return err
		}
		input.Robot.Odometry.Method = m
	}

	sim, err := engine.NewSimulation(input, logger)
	if err != nil {
		return fmt.Errorf("simulation error: %w", err)
	}
	simLog, err := sim.Run()
	if err != nil {
		return fmt.Errorf("simulation error: %w", err)
	}

	if path := c.String(flagPlot); path != "" {
		pose := simLog.Summary.FinalPose
		err := sim.Trail().Plot(path, trail.PlotOptions{
			Title:         fmt.Sprintf("%s (%s)", input.Robot.Name, simLog.Summary.Method),
			Width:         vg.Length(cfg.PlotWidth) * vg.Inch,
			Height:        vg.Length(cfg.PlotHeight) * vg.Inch,
			Workspace:     input.Workspace,
			Pose:          &pose,
			HeadingLength: input.Robot.Platform.Chassis.Length,
		})
		if err != nil {
			return err
		}
		logger.Info("trail plotted", zap.String("path", path), zap.Int("points", sim.Trail().Len()))
	}

	return writeJSON(c.App.Writer, simLog, c.Bool(flagPretty))
}

// readInput reads the input file named by the first argument, or stdin.
func readInput(c *cli.Context, cfg config.Config) (engine.SimulationInput, error) {
	var (
		data []byte
		err  error
	)
	if c.Args().Present() {
		data, err = os.ReadFile(c.Args().First())
	} else {
		data, err = io.ReadAll(c.App.Reader)
	}
	if err != nil {
		return engine.SimulationInput{}, fmt.Errorf("reading input: %w", err)
	}

	input, err := engine.ParseInput(data)
	if err != nil {
		return engine.SimulationInput{}, err
	}
	if input.TrailTolerance == 0 {
		input.TrailTolerance = cfg.TrailTolerance
	}
	return input, nil
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	var (
		out []byte
		err error
	)
	if pretty {
		out, err = json.MarshalIndent(v, "", "  ")
	} else {
		out, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("marshaling output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
