package board

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Engine is the chess logic the game consults
type Engine interface {
	// LegalMoves lists the moves available to the side to move
	LegalMoves(b *Board) []Move
	// BestMove picks the reply for the side to move
	BestMove(ctx context.Context, b *Board) (Move, error)
}

// UCIEngine drives an external engine over the UCI protocol. Move candidates
// come from PseudoMoves; the engine only chooses replies.
type UCIEngine struct {
	cmd      *exec.Cmd
	stdin    io.WriteCloser
	lines    chan string
	moveTime time.Duration
	logger   *zap.SugaredLogger
}

// StartUCI launches the engine binary and waits for it to become ready
func StartUCI(ctx context.Context, path string, args []string, moveTime time.Duration, logger *zap.SugaredLogger) (*UCIEngine, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	cmd := exec.Command(path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "engine stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "engine stdout")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "failed to start engine %s", path)
	}

	e := &UCIEngine{
		cmd:      cmd,
		stdin:    stdin,
		lines:    make(chan string, 64),
		moveTime: moveTime,
		logger:   logger,
	}
	go e.readLines(stdout)

	if err := e.send("uci"); err != nil {
		return nil, multierr.Combine(err, e.Close())
	}
	if _, err := e.await(ctx, "uciok"); err != nil {
		return nil, multierr.Combine(err, e.Close())
	}
	if err := e.send("isready"); err != nil {
		return nil, multierr.Combine(err, e.Close())
	}
	if _, err := e.await(ctx, "readyok"); err != nil {
		return nil, multierr.Combine(err, e.Close())
	}
	return e, nil
}

func (e *UCIEngine) readLines(r io.Reader) {
	defer close(e.lines)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		e.lines <- scanner.Text()
	}
}

func (e *UCIEngine) send(line string) error {
	e.logger.Debugw("uci send", "line", line)
	_, err := fmt.Fprintln(e.stdin, line)
	return errors.Wrap(err, "error writing to engine")
}

// await reads lines until one starts with token and returns its fields
func (e *UCIEngine) await(ctx context.Context, token string) ([]string, error) {
	for {
		select {
		case line, ok := <-e.lines:
			if !ok {
				return nil, errors.Errorf("engine exited while waiting for %s", token)
			}
			fields := strings.Fields(line)
			if len(fields) > 0 && fields[0] == token {
				return fields, nil
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// LegalMoves implements Engine
func (e *UCIEngine) LegalMoves(b *Board) []Move {
	return PseudoMoves(b, b.Turn)
}

// BestMove implements Engine. Cancelling ctx stops the search and returns the
// move found so far.
func (e *UCIEngine) BestMove(ctx context.Context, b *Board) (Move, error) {
	if err := e.send("position fen " + b.FEN()); err != nil {
		return Move{}, err
	}
	if err := e.send(fmt.Sprintf("go movetime %d", e.moveTime.Milliseconds())); err != nil {
		return Move{}, err
	}
	fields, err := e.await(ctx, "bestmove")
	if err != nil {
		if ctx.Err() == nil {
			return Move{}, err
		}
		if err := e.send("stop"); err != nil {
			return Move{}, err
		}
		fields, err = e.await(context.Background(), "bestmove")
		if err != nil {
			return Move{}, err
		}
	}
	if len(fields) < 2 || fields[1] == "(none)" {
		return Move{}, errors.New("engine has no move")
	}
	return ParseMove(fields[1])
}

// Close asks the engine to quit and waits for it to exit
func (e *UCIEngine) Close() error {
	err := e.send("quit")
	err = multierr.Append(err, e.stdin.Close())
	return multierr.Append(err, e.cmd.Wait())
}
