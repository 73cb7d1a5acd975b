package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentflow/logging"
	"rentflow/query"
	"rentflow/test/infra"
)

func TestDirectory_Integration(t *testing.T) {
	pool := infra.OpenTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, adminEmail, err := infra.SeedUser(ctx, pool, "admin")
	require.NoError(t, err)
	tenantID, tenantEmail, err := infra.SeedUser(ctx, pool, "tenant")
	require.NoError(t, err)
	_, _, err = infra.SeedUser(ctx, pool, "landlord")
	require.NoError(t, err)

	repo := NewRepository(pool)
	svc := NewService(pool, repo, logging.Nop())
	admin := Identity{Email: adminEmail, Role: RoleAdmin}

	list, meta, err := svc.ListUsers(ctx, admin, query.Params{"searchTerm": "tenant"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, tenantID, list[0].ID)
	assert.Equal(t, 1, meta.Total)

	promoted, err := svc.ChangeRole(ctx, admin, tenantID, RoleLandlord)
	require.NoError(t, err)
	assert.Equal(t, RoleLandlord, promoted.Role)

	blocked, err := svc.ChangeStatus(ctx, admin, tenantID, StatusBlocked)
	require.NoError(t, err)
	assert.Equal(t, StatusBlocked, blocked.Status)

	_, err = Resolve(ctx, repo, Identity{Email: tenantEmail, Role: RoleLandlord, IssuedAt: time.Now()})
	require.Error(t, err, "blocked account must be refused")

	list, _, err = svc.ListUsers(ctx, admin, query.Params{"status": "blocked"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, tenantID, list[0].ID)
}
