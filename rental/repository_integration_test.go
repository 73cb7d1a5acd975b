package rental

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentflow/query"
	"rentflow/test/infra"
)

func TestRepository_Integration(t *testing.T) {
	pool := infra.OpenTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	landlordID, _, err := infra.SeedUser(ctx, pool, "landlord")
	require.NoError(t, err)

	repo := NewRepository()
	rec, err := repo.Insert(ctx, pool, landlordID, CreateInput{
		Location: "Banani", Description: "Corner flat", Rent: decimal.NewFromInt(5000), Bedrooms: 3, Images: []string{"a.jpg"},
	})
	require.NoError(t, err)
	assert.True(t, rec.Rent.Equal(decimal.NewFromInt(5000)))

	more := decimal.NewFromInt(5500)
	updated, err := repo.Update(ctx, pool, rec.ID, UpdateInput{Rent: &more, Images: []string{"b.jpg"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, updated.Images)
	assert.True(t, updated.Rent.Equal(more))

	occupancy := NewOccupancy()
	require.NoError(t, occupancy.Occupy(ctx, pool, rec.ID))
	assert.True(t, errors.Is(occupancy.Occupy(ctx, pool, rec.ID), ErrUnavailable), "second occupy must lose")
	assert.True(t, errors.Is(repo.SoftDelete(ctx, pool, rec.ID), ErrUnavailable), "rented rental cannot be deleted")

	require.NoError(t, occupancy.Recompute(ctx, pool, rec.ID))
	got, err := repo.Get(ctx, pool, rec.ID, GetOptions{})
	require.NoError(t, err)
	assert.False(t, got.IsRented, "no approved agreement means vacant")

	require.NoError(t, repo.SoftDelete(ctx, pool, rec.ID))
	_, err = repo.Get(ctx, pool, rec.ID, GetOptions{})
	assert.ErrorIs(t, err, ErrNotFound)

	audit, err := repo.Get(ctx, pool, rec.ID, GetOptions{IncludeDeleted: true})
	require.NoError(t, err)
	assert.True(t, audit.IsDeleted)

	list, meta, err := repo.List(ctx, pool, query.Params{"landlord": landlordID})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 0, meta.Total)
	assert.ErrorIs(t, occupancy.Occupy(ctx, pool, rec.ID), ErrUnavailable)
}

func TestList_PaginationAndSort_Integration(t *testing.T) {
	pool := infra.OpenTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	landlordID, _, err := infra.SeedUser(ctx, pool, "landlord")
	require.NoError(t, err)
	for i := 1; i <= 25; i++ {
		_, err := infra.SeedRental(ctx, pool, landlordID, fmt.Sprintf("Block %02d", i), 1000+i*100)
		require.NoError(t, err)
	}

	repo := NewRepository()
	page, meta, err := repo.List(ctx, pool, query.Params{"limit": "10", "page": "2", "sort": "rent"})
	require.NoError(t, err)
	assert.Equal(t, query.Meta{Page: 2, Limit: 10, Total: 25, TotalPage: 3}, meta)
	require.Len(t, page, 10)
	assert.Equal(t, "Block 11", page[0].Location)
	assert.Equal(t, "Block 20", page[9].Location)

	asc, _, err := repo.List(ctx, pool, query.Params{"limit": "25", "sort": "rent"})
	require.NoError(t, err)
	desc, _, err := repo.List(ctx, pool, query.Params{"limit": "25", "sort": "-rent"})
	require.NoError(t, err)
	require.Len(t, asc, 25)
	require.Len(t, desc, 25)
	for i := range asc {
		assert.True(t, asc[i].Rent.Equal(desc[len(desc)-1-i].Rent))
	}

	ranged, meta, err := repo.List(ctx, pool, query.Params{"minPrice": "2000", "maxPrice": "2500", "searchTerm": "block"})
	require.NoError(t, err)
	assert.Equal(t, 6, meta.Total)
	assert.Len(t, ranged, 6)

	projected, _, err := repo.List(ctx, pool, query.Params{"fields": "location", "limit": "1"})
	require.NoError(t, err)
	require.Len(t, projected, 1)
	assert.NotEmpty(t, projected[0].ID)
	assert.NotEmpty(t, projected[0].Location)
	assert.Empty(t, projected[0].Description)
}
