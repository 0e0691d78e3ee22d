// Package board models the physical chess board next to the arm, including
// the holders for captured and spare pieces, and plays games on it.
package board

import "strings"

// Color of a piece
type Color uint8

// Piece colors
const (
	White Color = iota
	Black
)

// Opposite returns the other color
func (c Color) Opposite() Color {
	if c == White {
		return Black
	}
	return White
}

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// Role of a piece. The zero Role marks an empty square.
type Role uint8

// Piece roles
const (
	NoRole Role = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
	Duck
)

// MaxRoleHeight is the height of the tallest piece in metres
const MaxRoleHeight = 0.079

// Height of the piece in metres
func (r Role) Height() float64 {
	switch r {
	case Pawn:
		return 0.038
	case Knight:
		return 0.054
	case Bishop:
		return 0.056
	case Rook:
		return 0.041
	case Queen:
		return 0.065
	case King:
		return 0.079
	case Duck:
		return 0.045
	}
	return 0
}

// GripHeight is where the claw closes on the piece
func (r Role) GripHeight() float64 {
	switch r {
	case Bishop:
		return 0.032
	case Queen, King:
		return 0.045
	}
	return 0.025
}

// Piece on a square. The zero Piece is no piece.
type Piece struct {
	Color Color
	Role  Role
}

// IsZero reports whether p is no piece
func (p Piece) IsZero() bool {
	return p.Role == NoRole
}

// roleLetters is indexed by Role
const roleLetters = ".pnbrqkd"

// FEN returns the FEN letter of the piece, '.' for no piece
func (p Piece) FEN() byte {
	if int(p.Role) >= len(roleLetters) {
		return '?'
	}
	ch := roleLetters[p.Role]
	if p.Color == White && p.Role != NoRole && p.Role != Duck {
		ch -= 'a' - 'A'
	}
	return ch
}

// PieceFromFEN parses a FEN piece letter. 'd' is the duck.
func PieceFromFEN(ch byte) (Piece, bool) {
	color := Black
	if ch >= 'A' && ch <= 'Z' {
		color = White
		ch += 'a' - 'A'
	}
	i := strings.IndexByte(roleLetters, ch)
	if i <= int(NoRole) {
		return Piece{}, false
	}
	if Role(i) == Duck {
		if color == White {
			return Piece{}, false
		}
		color = White
	}
	return Piece{Color: color, Role: Role(i)}, true
}
