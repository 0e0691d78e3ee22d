package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/02alexander/robby-fischer/host/board"
)

// framePeriod paces the typed move feed like a camera
const framePeriod = 100 * time.Millisecond

var errInputClosed = errors.New("input closed")

// typedVision stands in for the camera: it reports the board with the last
// typed move played until the game has taken it in
type typedVision struct {
	game *board.Game

	mu      sync.Mutex
	base    board.Observation
	typed   board.Observation
	pending bool
}

// Detect implements board.Vision
func (v *typedVision) Detect() (board.Observation, bool) {
	current := v.game.Board().Observe()

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.pending && current == v.base {
		return v.typed, true
	}
	v.pending = false
	return current, true
}

func (v *typedVision) set(before, after *board.Board) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.base = before.Observe()
	v.typed = after.Observe()
	v.pending = true
}

func (s *session) play(c *cli.Context) (err error) {
	cfg := *s.cfg
	if c.IsSet(flagEngine) {
		cfg.Engine.Path = c.String(flagEngine)
	}
	if c.IsSet(flagMoveTime) {
		cfg.Engine.MoveTime = c.Duration(flagMoveTime)
	}
	if c.IsSet(flagSkipButton) {
		cfg.Game.SkipButton = c.Bool(flagSkipButton)
	}
	if err := s.prepare(c); err != nil {
		return err
	}

	engine, err := board.StartUCI(c.Context, cfg.Engine.Path, cfg.Engine.Args, cfg.Engine.MoveTime, s.logger.Named("engine"))
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, engine.Close())
	}()

	feed := board.NewFeed()
	game := board.NewGame(board.Standard(), s.mover, s.cal, engine, feed, cfg.Game, nil, s.logger.Named("game"))
	vision := &typedVision{game: game}

	lines := make(chan string)
	go scanLines(c.App.Reader, lines)

	fmt.Fprintln(c.App.Writer, "you play white, type moves like e2e4, 'board' shows the position, 'quit' stops")
	if !cfg.Game.SkipButton {
		fmt.Fprintln(c.App.Writer, "press the chess clock after each move")
	}

	g, ctx := errgroup.WithContext(c.Context)
	g.Go(func() error {
		return board.RunFeed(ctx, vision, feed, framePeriod, nil)
	})
	g.Go(func() error {
		return game.Run(ctx)
	})
	g.Go(func() error {
		return s.readMoves(ctx, c.App.Writer, lines, game, vision)
	})
	err = g.Wait()
	if errors.Is(err, errInputClosed) {
		return nil
	}
	return err
}

func scanLines(r io.Reader, lines chan<- string) {
	defer close(lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines <- strings.TrimSpace(scanner.Text())
	}
}

// readMoves applies typed moves to the board the typed vision reports
func (s *session) readMoves(ctx context.Context, w io.Writer, lines <-chan string, game *board.Game, vision *typedVision) error {
	for {
		var line string
		select {
		case <-ctx.Done():
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				return errInputClosed
			}
			line = l
		}

		switch line {
		case "":
			continue
		case "quit", "exit":
			return errInputClosed
		case "board":
			fmt.Fprint(w, game.Board())
			continue
		}

		m, err := board.ParseMove(line)
		if err != nil {
			fmt.Fprintln(w, "error:", err)
			continue
		}
		current := game.Board()
		if current.Turn != board.White {
			fmt.Fprintln(w, "wait for the robot to move")
			continue
		}
		if !lo.Contains(board.PseudoMoves(current, board.White), m) {
			fmt.Fprintf(w, "%s is not a legal move\n", m)
			continue
		}
		after, err := current.PlayByHand(m)
		if err != nil {
			fmt.Fprintln(w, "error:", err)
			continue
		}
		vision.set(current, after)
		if s.sim != nil {
			s.sim.PressChessButton()
		}
	}
}
