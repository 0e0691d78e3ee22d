package board

import (
	"context"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mover is the part of the motion manager pick and place needs
type Mover interface {
	Claw() r3.Vec
	SmoothMoveTo(ctx context.Context, pos r3.Vec) error
	Grip(ctx context.Context) error
	Release(ctx context.Context) error
}

// DefaultSafeMargin is the clearance kept above the tallest piece while
// carrying
const DefaultSafeMargin = 0.01

// MovePiece carries the piece on src to dst: lift, travel above the pieces,
// descend to grip height, grip, and the same in reverse to release. The board
// is updated as the piece leaves and arrives.
func (b *Board) MovePiece(ctx context.Context, mover Mover, src, dst Square, safeMargin float64) error {
	if !src.Valid() || !dst.Valid() {
		return errors.Errorf("invalid move %s to %s", src, dst)
	}
	piece := b.At(src)
	if piece.IsZero() {
		return errors.Errorf("no piece on %s", src)
	}
	if !b.At(dst).IsZero() {
		return errors.Errorf("%s is occupied", dst)
	}
	safe := MaxRoleHeight + safeMargin
	grip := piece.Role.GripHeight()

	if err := travel(ctx, mover, src, safe, grip); err != nil {
		return errors.Wrapf(err, "moving to %s", src)
	}
	if err := mover.Grip(ctx); err != nil {
		return err
	}
	b.Set(src, Piece{})

	if err := travel(ctx, mover, dst, safe, grip); err != nil {
		return errors.Wrapf(err, "carrying %c to %s", piece.FEN(), dst)
	}
	if err := mover.Release(ctx); err != nil {
		return err
	}
	b.Set(dst, piece)

	lift := mover.Claw()
	lift.Z = safe
	return mover.SmoothMoveTo(ctx, lift)
}

// travel lifts the claw to safe height, moves over sq and descends to z
func travel(ctx context.Context, mover Mover, sq Square, safe, z float64) error {
	up := mover.Claw()
	up.Z = safe
	over := RealWorldCoordinate(sq)
	over.Z = safe
	down := over
	down.Z = z

	for _, p := range []r3.Vec{up, over, down} {
		if err := mover.SmoothMoveTo(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
