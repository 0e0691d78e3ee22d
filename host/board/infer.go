package board

import (
	"github.com/pkg/errors"
)

// ErrNoMatchingMove means no candidate move explains the observation
var ErrNoMatchingMove = errors.New("observation matches no legal move")

// InferMove finds the move among candidates that turns b into what the camera
// sees. The player puts pieces it captures on a free slot of the first holder
// file and takes a promoted piece from there, leaving the pawn in its place.
// The returned board has the move applied and the turn passed.
func InferMove(b *Board, obs Observation, candidates []Move) (Move, *Board, error) {
	if b.Observe() == obs {
		return Move{}, nil, errors.Wrap(ErrNoMatchingMove, "nothing moved")
	}
	for _, m := range candidates {
		next, ok := b.playObserved(m, obs)
		if ok && next.Observe() == obs {
			next.Turn = b.Turn.Opposite()
			return m, next, nil
		}
	}
	return Move{}, nil, ErrNoMatchingMove
}

// playObserved applies m physically, choosing holder slots that agree with
// obs
func (b *Board) playObserved(m Move, obs Observation) (*Board, bool) {
	const holder = BoardFiles
	side := b.At(m.From).Color

	// freeSlot finds an empty holder slot the camera sees filled with want
	freeSlot := func(pos *Board, want Occupancy) (Square, bool) {
		for rank := 0; rank < Ranks; rank++ {
			sq := Square{holder, rank}
			if pos.At(sq).IsZero() && obs[holder][rank] == want {
				return sq, true
			}
		}
		return Square{}, false
	}

	pos := b.Clone()
	if capSq, ok := b.captured(m); ok {
		p := pos.At(capSq)
		slot, ok := freeSlot(pos, occupancyOf(p))
		if !ok {
			return nil, false
		}
		pos.Set(slot, p)
		pos.Set(capSq, Piece{})
	}
	if rook, ok := b.castleRook(m); ok {
		pos.Set(rook.To, pos.At(rook.From))
		pos.Set(rook.From, Piece{})
	}
	pawn := pos.At(m.From)
	pos.Set(m.From, Piece{})
	pos.Set(m.To, pawn)

	if m.Promote != NoRole {
		promoted := Piece{side, m.Promote}
		var src Square
		found := false
		for rank := 0; rank < Ranks; rank++ {
			sq := Square{holder, rank}
			if pos.At(sq) == promoted && obs[holder][rank] == Empty {
				src, found = sq, true
				break
			}
		}
		if !found {
			return nil, false
		}
		pos.Set(src, Piece{})
		slot, ok := freeSlot(pos, occupancyOf(pawn))
		if !ok {
			return nil, false
		}
		pos.Set(slot, pawn)
		pos.Set(m.To, promoted)
	}
	return pos, true
}

// PlayByHand applies m the way the player is asked to: a captured piece goes
// on the first free slot of the first holder file, and a promoted piece is
// taken from that file with the pawn left in the first free slot. InferMove
// recognises the result.
func (b *Board) PlayByHand(m Move) (*Board, error) {
	const holder = BoardFiles
	p := b.At(m.From)
	if p.IsZero() {
		return nil, errors.Errorf("no piece on %s", m.From)
	}
	firstFree := func(pos *Board) (Square, error) {
		for rank := 0; rank < Ranks; rank++ {
			if sq := (Square{holder, rank}); pos.At(sq).IsZero() {
				return sq, nil
			}
		}
		return Square{}, errors.New("holder file is full")
	}

	pos := b.Clone()
	if capSq, ok := b.captured(m); ok {
		slot, err := firstFree(pos)
		if err != nil {
			return nil, err
		}
		pos.Set(slot, pos.At(capSq))
		pos.Set(capSq, Piece{})
	}
	if rook, ok := b.castleRook(m); ok {
		pos.Set(rook.To, pos.At(rook.From))
		pos.Set(rook.From, Piece{})
	}
	pos.Set(m.From, Piece{})
	pos.Set(m.To, p)

	if m.Promote != NoRole {
		promoted := Piece{p.Color, m.Promote}
		src, found := Square{}, false
		for rank := 0; rank < Ranks && !found; rank++ {
			if sq := (Square{holder, rank}); pos.At(sq) == promoted {
				src, found = sq, true
			}
		}
		if !found {
			return nil, errors.Wrapf(ErrPieceUnavailable, "no spare %c in the first holder file", promoted.FEN())
		}
		// the pawn must not land where the camera expects the gap
		slot, err := firstFree(pos)
		if err != nil {
			return nil, err
		}
		pos.Set(slot, p)
		pos.Set(src, Piece{})
		pos.Set(m.To, promoted)
	}
	pos.Turn = b.Turn.Opposite()
	return pos, nil
}
