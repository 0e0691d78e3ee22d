package board

import (
	"context"
	"sync"
	"time"

	clk "github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// Arm is what the game needs from the motion layer
type Arm interface {
	Mover
	ChessButton(ctx context.Context) (bool, error)
}

// Recalibrator homes the arm links again to remove accumulated drift
type Recalibrator interface {
	RecalibrateArm(ctx context.Context) error
}

// GameConfig tunes the play loop
type GameConfig struct {
	// Robot moves between arm recalibrations, 0 to never recalibrate
	RecalibrateEvery int `json:"recalibrate_every"`
	// Where the claw waits for the player, in the board frame
	HomePose   r3.Vec  `json:"home_pose"`
	SafeMargin float64 `json:"safe_margin"`
	// How often the chess clock button is polled
	ButtonPoll time.Duration `json:"button_poll"`
	// Do not wait for the button; any change on the board is a move
	SkipButton bool `json:"skip_button"`
}

// DefaultGameConfig returns the standard play loop settings
func DefaultGameConfig() GameConfig {
	return GameConfig{
		RecalibrateEvery: 10,
		HomePose:         r3.Vec{X: 0.1, Y: 0.48, Z: 0.15},
		SafeMargin:       DefaultSafeMargin,
		ButtonPoll:       100 * time.Millisecond,
	}
}

// Validate reports every invalid field
func (c *GameConfig) Validate() error {
	var err error
	if c.RecalibrateEvery < 0 {
		err = multierr.Append(err, errors.Errorf("recalibrate_every cannot be negative, got %d", c.RecalibrateEvery))
	}
	if c.SafeMargin < 0 {
		err = multierr.Append(err, errors.Errorf("safe_margin cannot be negative, got %v", c.SafeMargin))
	}
	if c.ButtonPoll <= 0 {
		err = multierr.Append(err, errors.New("button_poll must be positive"))
	}
	return err
}

// Game plays the robot's side against a player at the board
type Game struct {
	arm    Arm
	recal  Recalibrator
	engine Engine
	feed   *Feed
	cfg    GameConfig
	clock  clk.Clock
	logger *zap.SugaredLogger

	mu         sync.Mutex
	board      *Board
	robotMoves int
}

// NewGame starts from b with the player to move
func NewGame(b *Board, arm Arm, recal Recalibrator, engine Engine, feed *Feed, cfg GameConfig, clock clk.Clock, logger *zap.SugaredLogger) *Game {
	if clock == nil {
		clock = clk.New()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Game{
		arm:    arm,
		recal:  recal,
		engine: engine,
		feed:   feed,
		cfg:    cfg,
		clock:  clock,
		logger: logger,
		board:  b.Clone(),
	}
}

// Board returns a snapshot of the board. It may be called from any
// goroutine.
func (g *Game) Board() *Board {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.board.Clone()
}

func (g *Game) setBoard(b *Board) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.board = b
}

// Run plays turns until ctx is done or a turn fails for a reason other than
// an unrecognised board
func (g *Game) Run(ctx context.Context) error {
	if err := g.arm.SmoothMoveTo(ctx, g.cfg.HomePose); err != nil {
		return err
	}
	for {
		reply, err := g.Turn(ctx)
		switch {
		case errors.Is(err, ErrNoMatchingMove):
			g.logger.Warnw("could not recognise the move, play again and press the clock", "error", err)
		case err != nil:
			return err
		default:
			g.logger.Infow("robot moved", "move", reply)
		}
	}
}

// Turn waits for the player's move, answers it and returns the robot's move
func (g *Game) Turn(ctx context.Context) (Move, error) {
	if err := g.waitForButton(ctx); err != nil {
		return Move{}, err
	}
	current := g.Board()
	obs, err := g.feed.Next(ctx)
	// Without the button the first frame that differs is the move
	for err == nil && g.cfg.SkipButton && obs == current.Observe() {
		obs, err = g.feed.Next(ctx)
	}
	if err != nil {
		return Move{}, err
	}

	played, afterPlayer, err := InferMove(current, obs, g.engine.LegalMoves(current))
	if err != nil {
		return Move{}, err
	}
	g.logger.Infow("player moved", "move", played)
	g.setBoard(afterPlayer)

	reply, err := g.engine.BestMove(ctx, afterPlayer)
	if err != nil {
		return Move{}, errors.Wrap(err, "engine failed")
	}
	target, err := afterPlayer.Play(reply)
	if err != nil {
		return Move{}, errors.Wrapf(err, "cannot play %s", reply)
	}
	steps, err := afterPlayer.Diff(target)
	if err != nil {
		return Move{}, err
	}

	work := afterPlayer.Clone()
	for _, s := range steps {
		if err := work.MovePiece(ctx, g.arm, s.From, s.To, g.cfg.SafeMargin); err != nil {
			g.setBoard(work)
			return Move{}, err
		}
		g.setBoard(work.Clone())
	}
	work.Turn = target.Turn
	g.setBoard(work)

	g.robotMoves++
	if g.cfg.RecalibrateEvery > 0 && g.robotMoves%g.cfg.RecalibrateEvery == 0 && g.recal != nil {
		if err := g.recal.RecalibrateArm(ctx); err != nil {
			return reply, errors.Wrap(err, "recalibration failed")
		}
	}
	return reply, g.arm.SmoothMoveTo(ctx, g.cfg.HomePose)
}

func (g *Game) waitForButton(ctx context.Context) error {
	if g.cfg.SkipButton {
		return nil
	}
	for {
		pressed, err := g.arm.ChessButton(ctx)
		if err != nil {
			return err
		}
		if pressed {
			return nil
		}
		t := g.clock.Timer(g.cfg.ButtonPoll)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
