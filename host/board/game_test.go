package board

import (
	"context"
	"errors"
	"testing"
	"time"

	clk "github.com/benbjohnson/clock"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"
)

type scriptedEngine struct {
	replies []Move
	boards  []string
}

func (e *scriptedEngine) LegalMoves(b *Board) []Move {
	return PseudoMoves(b, b.Turn)
}

func (e *scriptedEngine) BestMove(ctx context.Context, b *Board) (Move, error) {
	e.boards = append(e.boards, b.FEN())
	if len(e.replies) == 0 {
		return Move{}, errors.New("out of moves")
	}
	m := e.replies[0]
	e.replies = e.replies[1:]
	return m, nil
}

type countingRecal struct{ calls int }

func (r *countingRecal) RecalibrateArm(ctx context.Context) error {
	r.calls++
	return nil
}

func mustMove(t *testing.T, s string) Move {
	t.Helper()
	m, err := ParseMove(s)
	test.That(t, err, test.ShouldBeNil)
	return m
}

// camera publishes frames until ctx is done: first stale, then fresh
func camera(ctx context.Context, f *Feed, stale int, frames ...Observation) {
	for i := 0; ctx.Err() == nil; {
		obs := frames[len(frames)-1]
		if i < stale {
			obs = frames[0]
		}
		if f.Publish(obs) {
			i++
		}
		time.Sleep(time.Millisecond)
	}
}

func TestGameTurn(t *testing.T) {
	start := Standard()
	seen := start.Clone()
	seen.Set(sq(t, "e2"), Piece{})
	seen.Set(sq(t, "e4"), Piece{White, Pawn})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed := NewFeed()
	go camera(ctx, feed, 0, seen.Observe())

	arm := &fakeMover{}
	recal := &countingRecal{}
	engine := &scriptedEngine{replies: []Move{mustMove(t, "e7e5")}}
	cfg := DefaultGameConfig()
	cfg.RecalibrateEvery = 1
	g := NewGame(start, arm, recal, engine, feed, cfg, clk.NewMock(), zaptest.NewLogger(t).Sugar())

	reply, err := g.Turn(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reply.String(), test.ShouldEqual, "e7e5")
	test.That(t, engine.boards, test.ShouldResemble, []string{
		"rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1",
	})

	b := g.Board()
	test.That(t, b.Placement(), test.ShouldEqual, "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR")
	test.That(t, b.Turn, test.ShouldEqual, White)
	test.That(t, recal.calls, test.ShouldEqual, 1)
	test.That(t, arm.claw, test.ShouldResemble, cfg.HomePose)
	test.That(t, arm.events, test.ShouldResemble, []string{
		"move", "move", "move", "grip", "move", "move", "move", "release", "move", "move",
	})
}

func TestGameTurnUnrecognised(t *testing.T) {
	start := Standard()
	seen := start.Clone()
	// A pawn vanished
	seen.Set(sq(t, "e2"), Piece{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed := NewFeed()
	go camera(ctx, feed, 0, seen.Observe())

	arm := &fakeMover{}
	engine := &scriptedEngine{}
	g := NewGame(start, arm, nil, engine, feed, DefaultGameConfig(), clk.NewMock(), zaptest.NewLogger(t).Sugar())

	_, err := g.Turn(ctx)
	test.That(t, errors.Is(err, ErrNoMatchingMove), test.ShouldBeTrue)
	test.That(t, arm.events, test.ShouldBeEmpty)
	test.That(t, engine.boards, test.ShouldBeEmpty)
	test.That(t, g.Board().Placement(), test.ShouldEqual, StartFEN)
}

func TestGameWaitsForButton(t *testing.T) {
	start := Standard()
	seen := start.Clone()
	seen.Set(sq(t, "g1"), Piece{})
	seen.Set(sq(t, "f3"), Piece{White, Knight})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed := NewFeed()
	go camera(ctx, feed, 0, seen.Observe())

	mc := clk.NewMock()
	arm := &fakeMover{pressed: []bool{false, false, false, true}}
	engine := &scriptedEngine{replies: []Move{mustMove(t, "g8f6")}}
	cfg := DefaultGameConfig()
	cfg.RecalibrateEvery = 0
	g := NewGame(start, arm, nil, engine, feed, cfg, mc, zaptest.NewLogger(t).Sugar())

	var reply Move
	var err error
	drive(mc, func() { reply, err = g.Turn(ctx) })
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reply.String(), test.ShouldEqual, "g8f6")
	test.That(t, arm.pressed, test.ShouldBeEmpty)
	test.That(t, g.Board().At(sq(t, "f6")), test.ShouldResemble, Piece{Black, Knight})
}

func TestGameSkipButtonIgnoresStaleFrames(t *testing.T) {
	start := Standard()
	seen := start.Clone()
	seen.Set(sq(t, "d2"), Piece{})
	seen.Set(sq(t, "d4"), Piece{White, Pawn})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed := NewFeed()
	go camera(ctx, feed, 5, start.Observe(), seen.Observe())

	arm := &fakeMover{pressed: []bool{false}}
	engine := &scriptedEngine{replies: []Move{mustMove(t, "d7d5")}}
	cfg := DefaultGameConfig()
	cfg.SkipButton = true
	g := NewGame(start, arm, nil, engine, feed, cfg, clk.NewMock(), zaptest.NewLogger(t).Sugar())

	reply, err := g.Turn(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, reply.String(), test.ShouldEqual, "d7d5")
	// The button was never polled
	test.That(t, arm.pressed, test.ShouldHaveLength, 1)
}

func TestGameRunStopsOnEngineFailure(t *testing.T) {
	start := Standard()
	seen := start.Clone()
	seen.Set(sq(t, "e2"), Piece{})
	seen.Set(sq(t, "e3"), Piece{White, Pawn})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed := NewFeed()
	go camera(ctx, feed, 0, seen.Observe())

	arm := &fakeMover{}
	g := NewGame(start, arm, nil, &scriptedEngine{}, feed, DefaultGameConfig(), clk.NewMock(), zaptest.NewLogger(t).Sugar())

	err := g.Run(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "engine failed")
	// Run moved home first
	test.That(t, arm.path[0], test.ShouldResemble, DefaultGameConfig().HomePose)
	test.That(t, g.Board().Turn, test.ShouldEqual, Black)
}

func TestGameConfigValidate(t *testing.T) {
	cfg := DefaultGameConfig()
	test.That(t, cfg.Validate(), test.ShouldBeNil)

	cfg.RecalibrateEvery = -1
	cfg.SafeMargin = -0.01
	cfg.ButtonPoll = 0
	err := cfg.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "recalibrate_every")
	test.That(t, err.Error(), test.ShouldContainSubstring, "safe_margin")
	test.That(t, err.Error(), test.ShouldContainSubstring, "button_poll")
}

// drive runs f while advancing the mock clock
func drive(mc *clk.Mock, f func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		f()
	}()
	for {
		select {
		case <-done:
			return
		default:
			mc.Add(10 * time.Millisecond)
		}
	}
}
