package board

import (
	"errors"
	"testing"

	"go.viam.com/test"
)

func TestInferSimpleMove(t *testing.T) {
	b := Standard()
	seen := b.Clone()
	seen.Set(Square{4, 1}, Piece{})
	seen.Set(Square{4, 3}, Piece{White, Pawn})

	m, next, err := InferMove(b, seen.Observe(), PseudoMoves(b, White))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.String(), test.ShouldEqual, "e2e4")
	test.That(t, next.Turn, test.ShouldEqual, Black)
	test.That(t, next.Squares, test.ShouldResemble, seen.Squares)
}

func TestInferCaptureIntoHolder(t *testing.T) {
	b, err := FromFEN("4k3/8/8/3p4/4P3/8/8/4K3")
	test.That(t, err, test.ShouldBeNil)

	// The captured pawn was put on the third holder slot
	seen := b.Clone()
	seen.Set(Square{4, 3}, Piece{})
	seen.Set(Square{3, 4}, Piece{White, Pawn})
	seen.Set(Square{8, 2}, Piece{Black, Pawn})

	m, next, err := InferMove(b, seen.Observe(), PseudoMoves(b, White))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.String(), test.ShouldEqual, "e4d5")
	test.That(t, next.At(Square{8, 2}), test.ShouldResemble, Piece{Black, Pawn})
	test.That(t, next.Squares, test.ShouldResemble, seen.Squares)
}

func TestInferCaptureWithoutHolder(t *testing.T) {
	b, err := FromFEN("4k3/8/8/3p4/4P3/8/8/4K3")
	test.That(t, err, test.ShouldBeNil)

	// The captured pawn vanished from view
	seen := b.Clone()
	seen.Set(Square{4, 3}, Piece{})
	seen.Set(Square{3, 4}, Piece{White, Pawn})

	_, _, err = InferMove(b, seen.Observe(), PseudoMoves(b, White))
	test.That(t, errors.Is(err, ErrNoMatchingMove), test.ShouldBeTrue)
}

func TestInferCastle(t *testing.T) {
	b, err := FromFEN("4k3/8/8/8/8/8/8/4K2R")
	test.That(t, err, test.ShouldBeNil)

	seen := b.Clone()
	seen.Set(Square{6, 0}, seen.At(Square{4, 0}))
	seen.Set(Square{5, 0}, seen.At(Square{7, 0}))
	seen.Set(Square{4, 0}, Piece{})
	seen.Set(Square{7, 0}, Piece{})

	m, _, err := InferMove(b, seen.Observe(), PseudoMoves(b, White))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.String(), test.ShouldEqual, "e1g1")
}

func TestInferPromotion(t *testing.T) {
	b, err := FromFEN("4k3/6P1/8/8/8/8/8/4K3")
	test.That(t, err, test.ShouldBeNil)
	// The spare queen waits on i8
	test.That(t, b.At(Square{8, 7}), test.ShouldResemble, Piece{White, Queen})

	// Queen from i8 to g8, pawn put on i1
	seen := b.Clone()
	seen.Set(Square{6, 6}, Piece{})
	seen.Set(Square{6, 7}, Piece{White, Queen})
	seen.Set(Square{8, 7}, Piece{})
	seen.Set(Square{8, 0}, Piece{White, Pawn})

	m, next, err := InferMove(b, seen.Observe(), PseudoMoves(b, White))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, m.String(), test.ShouldEqual, "g7g8q")
	test.That(t, next.Squares, test.ShouldResemble, seen.Squares)
}

func TestInferNothingMoved(t *testing.T) {
	b := Standard()
	_, _, err := InferMove(b, b.Observe(), PseudoMoves(b, White))
	test.That(t, errors.Is(err, ErrNoMatchingMove), test.ShouldBeTrue)
}

func TestPlayByHandIsRecognised(t *testing.T) {
	for _, tc := range []struct {
		fen  string
		turn Color
		move string
	}{
		{StartFEN, White, "g1f3"},
		{"4k3/8/8/3p4/4P3/8/8/4K3", White, "e4d5"},
		{"4k3/8/8/3p4/4P3/8/8/4K3", Black, "d5e4"},
		{"r3k2r/8/8/8/8/8/8/R3K2R", White, "e1c1"},
		{"4k3/8/8/3pP3/8/8/8/4K3", White, "e5d6"},
		{"4k3/6P1/8/8/8/8/8/4K3", White, "g7g8q"},
	} {
		t.Run(tc.move, func(t *testing.T) {
			b, err := FromFEN(tc.fen)
			test.That(t, err, test.ShouldBeNil)
			b.Turn = tc.turn

			m := mustMove(t, tc.move)
			after, err := b.PlayByHand(m)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, after.Turn, test.ShouldEqual, tc.turn.Opposite())

			got, next, err := InferMove(b, after.Observe(), PseudoMoves(b, tc.turn))
			test.That(t, err, test.ShouldBeNil)
			test.That(t, got, test.ShouldResemble, m)
			test.That(t, next.Squares, test.ShouldResemble, after.Squares)
		})
	}
}

func TestPlayByHandMissingPromotionPiece(t *testing.T) {
	b, err := FromFEN("4k3/8/8/8/8/8/1p6/4K3")
	test.That(t, err, test.ShouldBeNil)
	b.Turn = Black

	// black spares live in the far holders
	_, err = b.PlayByHand(mustMove(t, "b2b1q"))
	test.That(t, errors.Is(err, ErrPieceUnavailable), test.ShouldBeTrue)

	_, err = b.PlayByHand(mustMove(t, "a1a2"))
	test.That(t, err, test.ShouldNotBeNil)
}
