package board

import (
	"github.com/pkg/errors"
)

// Move is a chess move in the engine's terms. Castling is the king moving two
// files; the rook follows.
type Move struct {
	From, To Square
	Promote  Role
}

// ParseMove parses long algebraic notation such as "e2e4" or "e7e8q"
func ParseMove(s string) (Move, error) {
	if len(s) != 4 && len(s) != 5 {
		return Move{}, errors.Errorf("invalid move %q", s)
	}
	from, err := ParseSquare(s[:2])
	if err != nil {
		return Move{}, errors.Wrapf(err, "invalid move %q", s)
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return Move{}, errors.Wrapf(err, "invalid move %q", s)
	}
	if !from.OnBoard() || !to.OnBoard() {
		return Move{}, errors.Errorf("move %q leaves the board", s)
	}
	m := Move{From: from, To: to}
	if len(s) == 5 {
		p, ok := PieceFromFEN(s[4])
		if !ok || p.Role == Pawn || p.Role == King || p.Role == Duck {
			return Move{}, errors.Errorf("invalid promotion in %q", s)
		}
		m.Promote = p.Role
	}
	return m, nil
}

func (m Move) String() string {
	s := m.From.String() + m.To.String()
	if m.Promote != NoRole {
		s += string(roleLetters[m.Promote])
	}
	return s
}

// castleRook returns the rook's move when m castles
func (b *Board) castleRook(m Move) (Step, bool) {
	if b.At(m.From).Role != King || m.From.Rank != m.To.Rank {
		return Step{}, false
	}
	switch m.To.File - m.From.File {
	case 2:
		return Step{Square{7, m.From.Rank}, Square{5, m.From.Rank}}, true
	case -2:
		return Step{Square{0, m.From.Rank}, Square{3, m.From.Rank}}, true
	}
	return Step{}, false
}

// captured returns the square of the piece m captures
func (b *Board) captured(m Move) (Square, bool) {
	if !b.At(m.To).IsZero() {
		return m.To, true
	}
	// en passant
	if b.At(m.From).Role == Pawn && m.From.File != m.To.File {
		sq := Square{m.To.File, m.From.Rank}
		if !b.At(sq).IsZero() {
			return sq, true
		}
	}
	return Square{}, false
}

// Play returns the physical board after m: captured pieces and promoted pawns
// go back to the holders and a promoted piece is taken from them
func (b *Board) Play(m Move) (*Board, error) {
	p := b.At(m.From)
	if p.IsZero() {
		return nil, errors.Errorf("no piece on %s", m.From)
	}

	var placement [BoardFiles][Ranks]Piece
	for file := 0; file < BoardFiles; file++ {
		placement[file] = b.Squares[file]
	}
	if sq, ok := b.captured(m); ok {
		placement[sq.File][sq.Rank] = Piece{}
	}
	if rook, ok := b.castleRook(m); ok {
		placement[rook.To.File][rook.To.Rank] = placement[rook.From.File][rook.From.Rank]
		placement[rook.From.File][rook.From.Rank] = Piece{}
	}
	placement[m.From.File][m.From.Rank] = Piece{}
	if m.Promote != NoRole {
		p.Role = m.Promote
	}
	placement[m.To.File][m.To.Rank] = p

	next, err := fromPlacement(placement)
	if err != nil {
		return nil, err
	}
	next.Turn = b.Turn.Opposite()
	return next, nil
}

var (
	knightDeltas = [][2]int{{-1, -2}, {1, -2}, {-2, -1}, {2, -1}, {-2, 1}, {2, 1}, {-1, 2}, {1, 2}}
	bishopDeltas = [][2]int{{-1, -1}, {1, -1}, {-1, 1}, {1, 1}}
	rookDeltas   = [][2]int{{0, -1}, {-1, 0}, {1, 0}, {0, 1}}
	royalDeltas  = append(append([][2]int{}, bishopDeltas...), rookDeltas...)
)

// PseudoMoves lists the moves of side ignoring check. They are enough to
// match an observed board change against.
func PseudoMoves(b *Board, side Color) []Move {
	var moves []Move
	for file := 0; file < BoardFiles; file++ {
		for rank := 0; rank < Ranks; rank++ {
			from := Square{file, rank}
			p := b.At(from)
			if p.IsZero() || p.Color != side || p.Role == Duck {
				continue
			}
			switch p.Role {
			case Pawn:
				moves = pawnMoves(b, from, side, moves)
			case Knight:
				moves = pieceMoves(b, from, side, knightDeltas, false, moves)
			case Bishop:
				moves = pieceMoves(b, from, side, bishopDeltas, true, moves)
			case Rook:
				moves = pieceMoves(b, from, side, rookDeltas, true, moves)
			case Queen:
				moves = pieceMoves(b, from, side, royalDeltas, true, moves)
			case King:
				moves = pieceMoves(b, from, side, royalDeltas, false, moves)
				moves = castleMoves(b, from, side, moves)
			}
		}
	}
	return moves
}

func pawnMoves(b *Board, from Square, side Color, moves []Move) []Move {
	dir, start, last := 1, 1, 7
	if side == Black {
		dir, start, last = -1, 6, 0
	}
	add := func(to Square) {
		if to.Rank == last {
			for _, r := range []Role{Queen, Knight, Rook, Bishop} {
				moves = append(moves, Move{From: from, To: to, Promote: r})
			}
			return
		}
		moves = append(moves, Move{From: from, To: to})
	}

	if to, ok := from.Translate(0, dir); ok && b.At(to).IsZero() {
		add(to)
		if to2, ok := to.Translate(0, dir); ok && from.Rank == start && b.At(to2).IsZero() {
			add(to2)
		}
	}
	for _, df := range []int{-1, 1} {
		to, ok := from.Translate(df, dir)
		if !ok {
			continue
		}
		if t := b.At(to); !t.IsZero() && t.Color != side && t.Role != Duck {
			add(to)
			continue
		}
		// en passant, without history any pawn that could have just
		// double stepped is a candidate
		beside := Square{to.File, from.Rank}
		if b.At(to).IsZero() && from.Rank == start+3*dir && b.At(beside) == (Piece{side.Opposite(), Pawn}) {
			add(to)
		}
	}
	return moves
}

func pieceMoves(b *Board, from Square, side Color, deltas [][2]int, sliding bool, moves []Move) []Move {
	for _, d := range deltas {
		to := from
		for {
			var ok bool
			to, ok = to.Translate(d[0], d[1])
			if !ok {
				break
			}
			t := b.At(to)
			if !t.IsZero() {
				if t.Color != side && t.Role != Duck {
					moves = append(moves, Move{From: from, To: to})
				}
				break
			}
			moves = append(moves, Move{From: from, To: to})
			if !sliding {
				break
			}
		}
	}
	return moves
}

func castleMoves(b *Board, from Square, side Color, moves []Move) []Move {
	home := 0
	if side == Black {
		home = 7
	}
	if from != (Square{4, home}) {
		return moves
	}
	rook := Piece{side, Rook}
	empty := func(files ...int) bool {
		for _, f := range files {
			if !b.At(Square{f, home}).IsZero() {
				return false
			}
		}
		return true
	}
	if b.At(Square{7, home}) == rook && empty(5, 6) {
		moves = append(moves, Move{From: from, To: Square{6, home}})
	}
	if b.At(Square{0, home}) == rook && empty(1, 2, 3) {
		moves = append(moves, Move{From: from, To: Square{2, home}})
	}
	return moves
}
