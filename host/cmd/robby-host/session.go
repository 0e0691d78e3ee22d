package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/02alexander/robby-fischer/host/board"
	"github.com/02alexander/robby-fischer/host/calibration"
	"github.com/02alexander/robby-fischer/host/config"
	"github.com/02alexander/robby-fischer/host/mcu"
	"github.com/02alexander/robby-fischer/host/motion"
	"github.com/02alexander/robby-fischer/host/sim"
	"github.com/02alexander/robby-fischer/protocol"
)

// session is an open link to the controller and the host components on top
// of it
type session struct {
	cfg    *config.Config
	logger *zap.SugaredLogger
	link   *mcu.MCU
	sim    *sim.Sim // set with --sim
	mover  *motion.Manager
	cal    *calibration.Coordinator
}

// loadConfig reads the config file and applies the serial flags
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String(flagConfig))
	if err != nil {
		return nil, err
	}
	if c.IsSet(flagDevice) {
		cfg.Serial.Device = c.String(flagDevice)
	}
	if c.IsSet(flagBaud) {
		cfg.Serial.Baud = c.Int(flagBaud)
	}
	if c.IsSet(flagDriver) {
		cfg.Serial.Driver = c.String(flagDriver)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openSession(c *cli.Context, logger *zap.SugaredLogger) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	var (
		link      *mcu.MCU
		simulated *sim.Sim
	)
	if c.Bool(flagSim) {
		simulated, err = sim.New(sim.Options{Logger: logger.Named("sim")})
		if err != nil {
			return nil, err
		}
		link = mcu.New(simulated, logger.Named("mcu"))
	} else {
		link, err = mcu.Connect(&cfg.Serial, logger.Named("mcu"))
		if err != nil {
			return nil, err
		}
	}

	mover := motion.NewManager(link, cfg.Arm.Kinematics(), cfg.Motion, nil, logger.Named("motion"))
	mover.SetOffset(cfg.Arm.TranslationOffset)
	return &session{
		cfg:    cfg,
		logger: logger,
		link:   link,
		sim:    simulated,
		mover:  mover,
		cal:    calibration.NewCoordinator(link, mover, cfg.Calibration, nil, logger.Named("calibration")),
	}, nil
}

// withSession opens a session for the duration of f
func withSession(c *cli.Context, logger *zap.SugaredLogger, f func(s *session) error) error {
	s, err := openSession(c, logger)
	if err != nil {
		return err
	}
	return multierr.Combine(f(s), s.link.Close())
}

func (s *session) calibrate(c *cli.Context) error {
	if err := s.cal.Run(c.Context); err != nil {
		return errors.Wrap(err, "calibration failed")
	}
	return s.mover.SyncPos(c.Context)
}

// prepare calibrates unless told the arm already is
func (s *session) prepare(c *cli.Context) error {
	if c.Bool(flagNoCal) {
		return s.mover.SyncPos(c.Context)
	}
	return s.calibrate(c)
}

func (s *session) status(c *cli.Context) error {
	ctx := c.Context
	w := c.App.Writer

	cal, err := mcu.Query[protocol.CalibrationState](s.link, protocol.IsCalibrated{})
	if err != nil {
		return err
	}
	depth, capacity, err := s.mover.QueueSize(ctx)
	if err != nil {
		return err
	}
	pos, err := mcu.Query[protocol.PositionReport](s.link, protocol.Position{})
	if err != nil {
		return err
	}
	if err := s.mover.SyncPos(ctx); err != nil {
		return err
	}
	pressed, err := s.mover.ChessButton(ctx)
	if err != nil {
		return err
	}
	a, b, err := s.mover.Magnets(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "rail calibrated: %t\n", cal.Calibrated)
	fmt.Fprintf(w, "queue:           %d/%d\n", depth, capacity)
	fmt.Fprintf(w, "joints:          bottom %.3f° top %.3f° rail %.4f m\n", pos.Bottom, pos.Top, pos.Rail)
	fmt.Fprintf(w, "claw:            %s\n", formatVec(s.mover.Claw()))
	fmt.Fprintf(w, "chess button:    %t\n", pressed)
	fmt.Fprintf(w, "magnets:         %.3f %.3f\n", a, b)
	return nil
}

func (s *session) movePiece(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return errors.New("expected SRC DST")
	}
	src, err := board.ParseSquare(c.Args().Get(0))
	if err != nil {
		return err
	}
	dst, err := board.ParseSquare(c.Args().Get(1))
	if err != nil {
		return err
	}
	b, err := board.FromFEN(c.String(flagFEN))
	if err != nil {
		return err
	}
	if err := s.prepare(c); err != nil {
		return err
	}
	if err := b.MovePiece(c.Context, s.mover, src, dst, s.cfg.Game.SafeMargin); err != nil {
		return err
	}
	fmt.Fprint(c.App.Writer, b)
	return nil
}

// repl reads protocol lines and shows what the controller answers
func (s *session) repl(c *cli.Context) error {
	w := c.App.Writer
	fmt.Fprintln(w, "enter protocol commands, 'help' lists them, 'quit' exits")
	scanner := bufio.NewScanner(c.App.Reader)
	for {
		fmt.Fprint(w, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(w)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "quit", "exit":
			return nil
		case "help", "?":
			fmt.Fprintln(w, strings.Join(protocol.CommandTokens(), " "))
			continue
		}

		cmd, err := protocol.DecodeCommand(line)
		if err != nil {
			fmt.Fprintln(w, "error:", err)
			continue
		}
		if !protocol.ExpectsReply(cmd) {
			if err := s.link.Send(cmd); err != nil {
				return err
			}
			continue
		}
		resp, err := s.link.Request(cmd)
		var fault *mcu.FaultError
		switch {
		case errors.As(err, &fault):
			fmt.Fprintln(w, "error:", err)
		case mcu.Retryable(err):
			fmt.Fprintln(w, "no reply:", err)
		case err != nil:
			return err
		default:
			fmt.Fprintln(w, protocol.Encode(resp))
		}
	}
}
