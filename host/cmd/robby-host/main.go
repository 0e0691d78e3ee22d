// Command robby-host drives the chess playing arm from a computer connected
// to its controller over USB serial.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/02alexander/robby-fischer/host/board"
	"github.com/02alexander/robby-fischer/host/motion"
	"github.com/02alexander/robby-fischer/protocol"
)

const (
	flagConfig  = "config"
	flagDevice  = "device"
	flagBaud    = "baud"
	flagDriver  = "driver"
	flagSim     = "sim"
	flagVerbose = "verbose"

	flagEngine     = "engine"
	flagMoveTime   = "movetime"
	flagSkipButton = "skip-button"
	flagFEN        = "fen"
	flagNoCal      = "no-calibrate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	var logger *zap.SugaredLogger

	return &cli.App{
		Name:  "robby-host",
		Usage: "control the chess playing arm",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE`",
			},
			&cli.StringFlag{
				Name:  flagDevice,
				Usage: "serial device of the controller, overrides the config",
			},
			&cli.IntFlag{
				Name:  flagBaud,
				Usage: "baud rate, overrides the config",
			},
			&cli.StringFlag{
				Name:  flagDriver,
				Usage: "serial driver: tarm or bugst",
			},
			&cli.BoolFlag{
				Name:  flagSim,
				Usage: "talk to a simulated controller instead of the hardware",
			},
			&cli.BoolFlag{
				Name:    flagVerbose,
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			logger, err = newLogger(c.Bool(flagVerbose))
			return err
		},
		After: func(c *cli.Context) error {
			if logger != nil {
				_ = logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "calibrate",
				Usage: "home the rail and both links",
				Action: func(c *cli.Context) error {
					return withSession(c, logger, func(s *session) error {
						if err := s.calibrate(c); err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "calibrated, claw at %s\n", formatVec(s.mover.Claw()))
						return nil
					})
				},
			},
			{
				Name:  "status",
				Usage: "print what the controller reports",
				Action: func(c *cli.Context) error {
					return withSession(c, logger, func(s *session) error { return s.status(c) })
				},
			},
			{
				Name:      "move",
				Usage:     "move the claw smoothly to a point in the board frame",
				ArgsUsage: "X Y Z",
				Action: func(c *cli.Context) error {
					pos, err := parseVec(c.Args().Slice())
					if err != nil {
						return err
					}
					return withSession(c, logger, func(s *session) error {
						if err := s.mover.SyncPos(c.Context); err != nil {
							return err
						}
						if err := s.mover.SmoothMoveTo(c.Context, pos); err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "claw at %s\n", formatVec(s.mover.Claw()))
						return nil
					})
				},
			},
			{
				Name:      "axis",
				Usage:     "move one axis directly: bottom or top in degrees, rail in metres",
				ArgsUsage: "AXIS VALUE",
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 2 {
						return errors.New("expected AXIS VALUE")
					}
					axis, err := parseAxis(c.Args().Get(0))
					if err != nil {
						return err
					}
					value, err := strconv.ParseFloat(c.Args().Get(1), 64)
					if err != nil {
						return errors.Wrapf(err, "invalid value %q", c.Args().Get(1))
					}
					return withSession(c, logger, func(s *session) error {
						return s.mover.MoveAxis(axis, value)
					})
				},
			},
			{
				Name:  "grip",
				Usage: "close the claw",
				Action: func(c *cli.Context) error {
					return withSession(c, logger, func(s *session) error { return s.mover.Grip(c.Context) })
				},
			},
			{
				Name:  "release",
				Usage: "open the claw",
				Action: func(c *cli.Context) error {
					return withSession(c, logger, func(s *session) error { return s.mover.Release(c.Context) })
				},
			},
			{
				Name:      "piece",
				Usage:     "carry the piece on one square to another",
				ArgsUsage: "SRC DST",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagFEN,
						Value: board.StartFEN,
						Usage: "placement of the pieces on the board",
					},
					&cli.BoolFlag{
						Name:  flagNoCal,
						Usage: "assume the arm is already calibrated",
					},
				},
				Action: func(c *cli.Context) error {
					return withSession(c, logger, func(s *session) error { return s.movePiece(c) })
				},
			},
			{
				Name:  "play",
				Usage: "play a game against the engine, moves are typed on stdin",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  flagEngine,
						Usage: "UCI engine binary, overrides the config",
					},
					&cli.DurationFlag{
						Name:  flagMoveTime,
						Usage: "engine thinking time per move, overrides the config",
					},
					&cli.BoolFlag{
						Name:  flagSkipButton,
						Usage: "do not wait for the chess clock button",
					},
					&cli.BoolFlag{
						Name:  flagNoCal,
						Usage: "assume the arm is already calibrated",
					},
				},
				Action: func(c *cli.Context) error {
					return withSession(c, logger, func(s *session) error { return s.play(c) })
				},
			},
			{
				Name:  "repl",
				Usage: "send raw protocol commands and print the replies",
				Action: func(c *cli.Context) error {
					return withSession(c, logger, func(s *session) error { return s.repl(c) })
				},
			},
			{
				Name:  "boot",
				Usage: "restart the controller into its USB bootloader",
				Action: func(c *cli.Context) error {
					return withSession(c, logger, func(s *session) error {
						return s.link.Send(protocol.RestartToBoot{})
					})
				},
			},
			{
				Name:  "config",
				Usage: "print the effective configuration",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					data, err := json.MarshalIndent(cfg, "", "  ")
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, string(data))
					return nil
				},
			},
		},
	}
}

func newLogger(verbose bool) (*zap.SugaredLogger, error) {
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		return l.Sugar(), nil
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

func parseVec(args []string) (r3.Vec, error) {
	if len(args) != 3 {
		return r3.Vec{}, errors.Errorf("expected X Y Z, got %d values", len(args))
	}
	var v [3]float64
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return r3.Vec{}, errors.Wrapf(err, "invalid coordinate %q", a)
		}
		v[i] = f
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}, nil
}

func parseAxis(name string) (motion.Axis, error) {
	for _, a := range []motion.Axis{motion.AxisBottom, motion.AxisTop, motion.AxisRail} {
		if a.String() == name {
			return a, nil
		}
	}
	return 0, errors.Errorf("unknown axis %q, expected bottom, top or rail", name)
}

func formatVec(v r3.Vec) string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f)", v.X, v.Y, v.Z)
}
