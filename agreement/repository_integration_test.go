package agreement

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"rentflow/apperr"
	"rentflow/identity"
	"rentflow/logging"
	"rentflow/query"
	"rentflow/test/infra"
)

// TestAgreementWorkflow_Integration runs the workflow against a real PostgreSQL from
// DATABASE_URL and checks occupancy stays consistent under concurrent approvals.
func TestAgreementWorkflow_Integration(t *testing.T) {
	pool := infra.OpenTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	landlordID, landlordEmail, err := infra.SeedUser(ctx, pool, "landlord")
	require.NoError(t, err)
	_, tenantAEmail, err := infra.SeedUser(ctx, pool, "tenant")
	require.NoError(t, err)
	_, tenantBEmail, err := infra.SeedUser(ctx, pool, "tenant")
	require.NoError(t, err)
	rentalID, err := infra.SeedRental(ctx, pool, landlordID, "Mirpur", 5000)
	require.NoError(t, err)

	svc := NewService(pool, Deps{Users: identity.NewRepository(pool), Logger: logging.Nop()})
	landlord := identity.Identity{Email: landlordEmail, Role: identity.RoleLandlord}
	in := RequestInput{RentalID: rentalID, MoveInDate: time.Now().AddDate(0, 1, 0), DurationMonths: 12}

	a, err := svc.RequestAgreement(ctx, identity.Identity{Email: tenantAEmail, Role: identity.RoleTenant}, in)
	require.NoError(t, err)
	b, err := svc.RequestAgreement(ctx, identity.Identity{Email: tenantBEmail, Role: identity.RoleTenant}, in)
	require.NoError(t, err)

	_, err = svc.RequestAgreement(ctx, identity.Identity{Email: tenantAEmail, Role: identity.RoleTenant}, in)
	assert.True(t, apperr.Is(err, http.StatusConflict), "duplicate request: %v", err)

	var g errgroup.Group
	results := make([]error, 2)
	for i, id := range []string{a.ID, b.ID} {
		g.Go(func() error {
			_, results[i] = svc.SetAgreementStatus(ctx, landlord, id, StatusApproved)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	approved := 0
	for _, err := range results {
		if err == nil {
			approved++
			continue
		}
		assert.True(t, apperr.Is(err, http.StatusForbidden), "losing approval: %v", err)
	}
	assert.Equal(t, 1, approved, "exactly one approval must win")
	assert.True(t, isRented(ctx, t, pool, rentalID))

	_, err = svc.RequestAgreement(ctx, identity.Identity{Email: tenantBEmail, Role: identity.RoleTenant}, in)
	assert.True(t, apperr.Is(err, http.StatusConflict), "request on rented rental: %v", err)

	winner, loser := a.ID, b.ID
	if results[0] != nil {
		winner, loser = b.ID, a.ID
	}

	// rejecting the still-pending loser must not free the rental
	_, err = svc.SetAgreementStatus(ctx, landlord, loser, StatusRejected)
	require.NoError(t, err)
	assert.True(t, isRented(ctx, t, pool, rentalID))

	list, meta, err := svc.LandlordAgreements(ctx, landlord, query.Params{"searchTerm": "mirp", "status": "approved"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, winner, list[0].ID)
	assert.Equal(t, 1, meta.Total)
	require.NotNil(t, list[0].RentalLocation)
	assert.Equal(t, "Mirpur", *list[0].RentalLocation)

	// deleting requests that never held the rental keeps the winner's occupancy
	require.NoError(t, svc.DeleteAgreement(ctx, landlord, loser))
	assert.True(t, isRented(ctx, t, pool, rentalID))

	tenantCID, _, err := infra.SeedUser(ctx, pool, "tenant")
	require.NoError(t, err)
	stale, err := NewRepository().Insert(ctx, pool, NewAgreement{
		RentalID:       rentalID,
		LandlordID:     landlordID,
		TenantID:       tenantCID,
		MoveInDate:     in.MoveInDate,
		DurationMonths: in.DurationMonths,
	})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteAgreement(ctx, landlord, stale.ID))
	assert.True(t, isRented(ctx, t, pool, rentalID))

	require.NoError(t, svc.DeleteAgreement(ctx, landlord, winner))
	assert.False(t, isRented(ctx, t, pool, rentalID))

	err = svc.DeleteAgreement(ctx, landlord, winner)
	assert.True(t, apperr.Is(err, http.StatusForbidden), "second delete: %v", err)
}

func isRented(ctx context.Context, t *testing.T, q query.Querier, rentalID string) bool {
	t.Helper()
	var rented bool
	require.NoError(t, q.QueryRow(ctx, `SELECT is_rented FROM rentals WHERE id = $1`, rentalID).Scan(&rented))
	return rented
}
