package board

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

// Board geometry
const (
	Files       = 14 // 8 board files followed by 6 holder files
	BoardFiles  = 8
	Ranks       = 8
	SquareSize  = 0.05
	holderShift = 0.8
)

// Square addresses the board (files 0-7) or a holder slot (files 8-13)
type Square struct {
	File int
	Rank int
}

// ParseSquare parses algebraic notation. Holder files continue the
// alphabet, so "i1" is the first holder slot.
func ParseSquare(s string) (Square, error) {
	if len(s) != 2 {
		return Square{}, errors.Errorf("invalid square %q", s)
	}
	sq := Square{File: int(s[0] - 'a'), Rank: int(s[1] - '1')}
	if !sq.Valid() {
		return Square{}, errors.Errorf("invalid square %q", s)
	}
	return sq, nil
}

// Valid reports whether sq lies on the board or a holder
func (sq Square) Valid() bool {
	return sq.File >= 0 && sq.File < Files && sq.Rank >= 0 && sq.Rank < Ranks
}

// OnBoard reports whether sq is one of the 64 playing squares
func (sq Square) OnBoard() bool {
	return sq.Valid() && sq.File < BoardFiles
}

func (sq Square) String() string {
	return string([]byte{byte('a' + sq.File), byte('1' + sq.Rank)})
}

// Translate returns the square offset by (df, dr) on the playing area
func (sq Square) Translate(df, dr int) (Square, bool) {
	t := Square{File: sq.File + df, Rank: sq.Rank + dr}
	return t, t.OnBoard()
}

// RealWorldCoordinate is the centre of the square at board level in the
// board frame, in metres. Holder slots sit slightly lower, and the second
// group of holders is set off by a gap.
func RealWorldCoordinate(sq Square) r3.Vec {
	x := float64(7-sq.Rank) * SquareSize
	if sq.File >= BoardFiles {
		y := (float64(sq.File) + holderShift) * SquareSize
		if sq.File >= 11 {
			y += 0.01
		}
		return r3.Vec{X: x, Y: y, Z: -0.005}
	}
	return r3.Vec{X: x, Y: float64(sq.File) * SquareSize}
}
