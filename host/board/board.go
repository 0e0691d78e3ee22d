package board

import (
	"strings"

	"github.com/pkg/errors"
)

// StartFEN is the placement of the standard starting position
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR"

var (
	// ErrPieceUnavailable means a position needs a piece the holders do not
	// have
	ErrPieceUnavailable = errors.New("piece not available in holders")

	// ErrUnreachablePosition means Diff found no sequence of moves
	ErrUnreachablePosition = errors.New("target position cannot be reached")
)

// holderLayout lists the holder files (8-13), rank 1 first
var holderLayout = [Files - BoardFiles]string{
	"...KNBRQ",
	"...NNBRQ",
	"...knbrq",
	"..dnnbrq",
	"PPPPPPPP",
	"pppppppp",
}

// Board is every piece the arm can reach: the 64 playing squares and the
// holders. Pieces never appear or vanish; they only move between squares.
type Board struct {
	Squares [Files][Ranks]Piece
	Turn    Color
}

// Stored returns the board with every piece in its holder slot
func Stored() *Board {
	b := &Board{}
	for i, col := range holderLayout {
		for rank := 0; rank < Ranks; rank++ {
			if p, ok := PieceFromFEN(col[rank]); ok {
				b.Squares[BoardFiles+i][rank] = p
			}
		}
	}
	return b
}

// FromFEN takes the pieces of a FEN placement out of the holders. Only the
// placement field is read.
func FromFEN(fen string) (*Board, error) {
	placement, err := parsePlacement(fen)
	if err != nil {
		return nil, err
	}
	return fromPlacement(placement)
}

// Standard returns the starting position with white to move
func Standard() *Board {
	b, err := FromFEN(StartFEN)
	if err != nil {
		panic(err)
	}
	return b
}

func parsePlacement(fen string) ([BoardFiles][Ranks]Piece, error) {
	var placement [BoardFiles][Ranks]Piece
	fields := strings.Fields(fen)
	if len(fields) == 0 {
		return placement, errors.New("empty FEN")
	}
	rows := strings.Split(fields[0], "/")
	if len(rows) != Ranks {
		return placement, errors.Errorf("FEN %q has %d ranks", fields[0], len(rows))
	}
	for i, row := range rows {
		rank := Ranks - 1 - i
		file := 0
		for j := 0; j < len(row); j++ {
			ch := row[j]
			if ch >= '1' && ch <= '8' {
				file += int(ch - '0')
				continue
			}
			p, ok := PieceFromFEN(ch)
			if !ok {
				return placement, errors.Errorf("invalid FEN piece %q", ch)
			}
			if file >= BoardFiles {
				return placement, errors.Errorf("FEN rank %d is too long", rank+1)
			}
			placement[file][rank] = p
			file++
		}
		if file != BoardFiles {
			return placement, errors.Errorf("FEN rank %d has %d files", rank+1, file)
		}
	}
	return placement, nil
}

// fromPlacement builds the physical board for a placement, taking each
// piece from the highest holder file that has one
func fromPlacement(placement [BoardFiles][Ranks]Piece) (*Board, error) {
	b := Stored()
	for file := 0; file < BoardFiles; file++ {
	next:
		for rank := 0; rank < Ranks; rank++ {
			p := placement[file][rank]
			if p.IsZero() {
				continue
			}
			for hf := Files - 1; hf >= BoardFiles; hf-- {
				for hr := 0; hr < Ranks; hr++ {
					if b.Squares[hf][hr] == p {
						b.Squares[hf][hr] = Piece{}
						b.Squares[file][rank] = p
						continue next
					}
				}
			}
			return nil, errors.Wrapf(ErrPieceUnavailable, "%c for %s", p.FEN(), Square{file, rank})
		}
	}
	return b, nil
}

// At returns the piece on sq
func (b *Board) At(sq Square) Piece {
	return b.Squares[sq.File][sq.Rank]
}

// Set puts p on sq
func (b *Board) Set(sq Square, p Piece) {
	b.Squares[sq.File][sq.Rank] = p
}

// Clone returns a copy of b
func (b *Board) Clone() *Board {
	c := *b
	return &c
}

// Placement returns the FEN placement field of the playing squares
func (b *Board) Placement() string {
	var sb strings.Builder
	for rank := Ranks - 1; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < BoardFiles; file++ {
			p := b.Squares[file][rank]
			if p.IsZero() {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteByte(byte('0' + empty))
				empty = 0
			}
			sb.WriteByte(p.FEN())
		}
		if empty > 0 {
			sb.WriteByte(byte('0' + empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}
	return sb.String()
}

// FEN returns a full FEN string. Castling rights are derived from king and
// rook placement since the board keeps no history.
func (b *Board) FEN() string {
	side := "w"
	if b.Turn == Black {
		side = "b"
	}
	return b.Placement() + " " + side + " " + b.castlingRights() + " - 0 1"
}

func (b *Board) castlingRights() string {
	var rights string
	for _, c := range []struct {
		color     Color
		rank      int
		kingSide  byte
		queenSide byte
	}{
		{White, 0, 'K', 'Q'},
		{Black, 7, 'k', 'q'},
	} {
		if b.Squares[4][c.rank] != (Piece{c.color, King}) {
			continue
		}
		if b.Squares[7][c.rank] == (Piece{c.color, Rook}) {
			rights += string(c.kingSide)
		}
		if b.Squares[0][c.rank] == (Piece{c.color, Rook}) {
			rights += string(c.queenSide)
		}
	}
	if rights == "" {
		return "-"
	}
	return rights
}

// String draws the board and holders, rank 8 on top
func (b *Board) String() string {
	var sb strings.Builder
	for rank := Ranks - 1; rank >= 0; rank-- {
		for file := 0; file < Files; file++ {
			sb.WriteByte(b.Squares[file][rank].FEN())
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Step moves one piece
type Step struct {
	From, To Square
}

func (s Step) String() string {
	return s.From.String() + s.To.String()
}

// squares visits every square rank by rank
func squares(f func(sq Square) bool) {
	for rank := 0; rank < Ranks; rank++ {
		for file := 0; file < Files; file++ {
			if !f(Square{file, rank}) {
				return
			}
		}
	}
}

// Diff returns the piece moves that turn b into target. Empty target squares
// are filled first from pieces that are out of place; a piece blocking a
// square the target needs is parked on the first free square.
func (b *Board) Diff(target *Board) ([]Step, error) {
	pos := b.Squares
	var steps []Step

	// Each pass places or parks one piece
	for pass := 0; pass < 4*Files*Ranks; pass++ {
		moved, err := fillOne(&pos, &target.Squares, &steps)
		if err != nil {
			return nil, err
		}
		if moved {
			continue
		}
		moved, err = parkOne(&pos, &target.Squares, &steps)
		if err != nil {
			return nil, err
		}
		if !moved {
			return steps, nil
		}
	}
	return nil, ErrUnreachablePosition
}

func fillOne(pos, target *[Files][Ranks]Piece, steps *[]Step) (bool, error) {
	var moved bool
	var err error
	squares(func(dst Square) bool {
		want := target[dst.File][dst.Rank]
		if want.IsZero() || !pos[dst.File][dst.Rank].IsZero() {
			return true
		}
		found := false
		squares(func(src Square) bool {
			if pos[src.File][src.Rank] == want && target[src.File][src.Rank] != want {
				*steps = append(*steps, Step{src, dst})
				pos[dst.File][dst.Rank] = want
				pos[src.File][src.Rank] = Piece{}
				found = true
				return false
			}
			return true
		})
		if !found {
			err = errors.Wrapf(ErrUnreachablePosition, "no spare %c for %s", want.FEN(), dst)
		}
		moved = found
		return false
	})
	return moved, err
}

func parkOne(pos, target *[Files][Ranks]Piece, steps *[]Step) (bool, error) {
	var moved bool
	var err error
	squares(func(src Square) bool {
		p := pos[src.File][src.Rank]
		if p == target[src.File][src.Rank] {
			return true
		}
		// Only move pieces blocking a square the target wants filled;
		// anything else has no home in the target
		if target[src.File][src.Rank].IsZero() {
			err = errors.Wrapf(ErrUnreachablePosition, "no place for %c on %s", p.FEN(), src)
			return true
		}
		err = nil
		squares(func(dst Square) bool {
			if pos[dst.File][dst.Rank].IsZero() {
				*steps = append(*steps, Step{src, dst})
				pos[dst.File][dst.Rank] = p
				pos[src.File][src.Rank] = Piece{}
				moved = true
				return false
			}
			return true
		})
		if !moved {
			err = errors.Wrap(ErrUnreachablePosition, "no empty square")
		}
		return false
	})
	return moved, err
}

// Occupancy is what the camera can tell about a square
type Occupancy uint8

// Occupancy values
const (
	Empty Occupancy = iota
	OccupiedWhite
	OccupiedBlack
)

// ObservedFiles is the number of files the camera sees: the board and the
// first holder file, where captured pieces are put
const ObservedFiles = BoardFiles + 1

// Observation is the camera's view of the observed files
type Observation [ObservedFiles][Ranks]Occupancy

// Observe returns what the camera should see for b. The duck reads as white.
func (b *Board) Observe() Observation {
	var o Observation
	for file := 0; file < ObservedFiles; file++ {
		for rank := 0; rank < Ranks; rank++ {
			o[file][rank] = occupancyOf(b.Squares[file][rank])
		}
	}
	return o
}

func occupancyOf(p Piece) Occupancy {
	switch {
	case p.IsZero():
		return Empty
	case p.Color == White || p.Role == Duck:
		return OccupiedWhite
	}
	return OccupiedBlack
}
