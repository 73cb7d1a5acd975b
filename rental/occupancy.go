package rental

import (
	"context"
	"fmt"

	"rentflow/query"
)

// Occupancy is the only writer of rentals.is_rented. Every method is a single
// conditional UPDATE so concurrent callers serialize on the rental row.
type Occupancy struct{}

func NewOccupancy() *Occupancy {
	return &Occupancy{}
}

// Occupy flips a visible, vacant rental to rented. It returns ErrUnavailable when the
// rental is already rented, deleted or missing.
func (o *Occupancy) Occupy(ctx context.Context, q query.Querier, rentalID string) error {
	tag, err := q.Exec(ctx, `
UPDATE rentals
SET is_rented = true, updated_at = now()
WHERE id = $1 AND is_rented = false AND is_deleted = false`, rentalID)
	if err != nil {
		return fmt.Errorf("rental: occupy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUnavailable
	}
	return nil
}

// Release clears the rented flag unconditionally.
func (o *Occupancy) Release(ctx context.Context, q query.Querier, rentalID string) error {
	if _, err := q.Exec(ctx, `
UPDATE rentals
SET is_rented = false, updated_at = now()
WHERE id = $1`, rentalID); err != nil {
		return fmt.Errorf("rental: release: %w", err)
	}
	return nil
}

// Recompute sets the rented flag from whether a non-deleted approved agreement
// references the rental. The row is locked first so the UPDATE runs on a snapshot
// taken after any concurrent occupancy write has committed.
func (o *Occupancy) Recompute(ctx context.Context, q query.Querier, rentalID string) error {
	if _, err := q.Exec(ctx, `SELECT 1 FROM rentals WHERE id = $1 FOR UPDATE`, rentalID); err != nil {
		return fmt.Errorf("rental: lock for recompute: %w", err)
	}
	if _, err := q.Exec(ctx, `
UPDATE rentals r
SET is_rented = EXISTS (
        SELECT 1 FROM agreements a
        WHERE a.rental_id = r.id AND a.status = 'approved' AND a.is_deleted = false
    ),
    updated_at = now()
WHERE r.id = $1`, rentalID); err != nil {
		return fmt.Errorf("rental: recompute occupancy: %w", err)
	}
	return nil
}
