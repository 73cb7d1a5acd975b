package rental

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"rentflow/query"
)

var (
	// ErrNotFound is returned when no rental row is visible for the identifier.
	ErrNotFound = errors.New("rental: not found")
	// ErrUnavailable signals that a conditional occupancy or deletion write matched no row.
	ErrUnavailable = errors.New("rental: unavailable")
)

// Schema is the list schema for rentals; every read scopes it to non-deleted rows.
var Schema = query.Schema{
	From: "rentals r",
	Fields: []query.Field{
		{Name: "id", Expr: "r.id", Alias: "id"},
		{Name: "location", Expr: "r.location", Alias: "location"},
		{Name: "description", Expr: "r.description", Alias: "description"},
		{Name: "rent", Expr: "r.rent", Alias: "rent"},
		{Name: "bedrooms", Expr: "r.bedrooms", Alias: "bedrooms"},
		{Name: "images", Expr: "r.images", Alias: "images"},
		{Name: "landlord", Expr: "r.landlord_id", Alias: "landlord_id"},
		{Name: "isRented", Expr: "r.is_rented", Alias: "is_rented"},
		{Name: "isDeleted", Expr: "r.is_deleted", Alias: "is_deleted"},
		{Name: "createdAt", Expr: "r.created_at", Alias: "created_at"},
		{Name: "updatedAt", Expr: "r.updated_at", Alias: "updated_at"},
	},
	IDField:    "id",
	Searchable: []string{"location", "description"},
	RangeField: "rent",
}

// NotDeleted is the default soft-delete predicate for rental reads.
var NotDeleted = query.Raw("r.is_deleted = false")

const rentalColumns = `id, location, description, rent, bedrooms, images, landlord_id, is_rented, is_deleted, created_at, updated_at`

// Repository is the PostgreSQL rental store. Methods take the querier so they can
// join a caller's transaction.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Insert(ctx context.Context, q query.Querier, landlordID string, in CreateInput) (Rental, error) {
	const insertSQL = `
INSERT INTO rentals (location, description, rent, bedrooms, images, landlord_id)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + rentalColumns

	rows, err := q.Query(ctx, insertSQL, in.Location, in.Description, in.Rent, in.Bedrooms, in.Images, landlordID)
	if err != nil {
		return Rental{}, fmt.Errorf("rental: insert: %w", err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[Rental])
	if err != nil {
		return Rental{}, fmt.Errorf("rental: insert: %w", err)
	}
	return rec, nil
}

// Get loads one rental. Soft-deleted rows are invisible unless opts.IncludeDeleted is set.
func (r *Repository) Get(ctx context.Context, q query.Querier, id string, opts GetOptions) (Rental, error) {
	selectSQL := `SELECT ` + rentalColumns + ` FROM rentals WHERE id = $1`
	if !opts.IncludeDeleted {
		selectSQL += ` AND is_deleted = false`
	}

	rows, err := q.Query(ctx, selectSQL, id)
	if err != nil {
		return Rental{}, fmt.Errorf("rental: get: %w", err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[Rental])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rental{}, ErrNotFound
		}
		return Rental{}, fmt.Errorf("rental: get: %w", err)
	}
	return rec, nil
}

// Update applies a partial update to a non-deleted rental, appending any new images.
func (r *Repository) Update(ctx context.Context, q query.Querier, id string, in UpdateInput) (Rental, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if in.Location != nil {
		add("location", *in.Location)
	}
	if in.Description != nil {
		add("description", *in.Description)
	}
	if in.Rent != nil {
		add("rent", *in.Rent)
	}
	if in.Bedrooms != nil {
		add("bedrooms", *in.Bedrooms)
	}
	if len(in.Images) > 0 {
		args = append(args, in.Images)
		sets = append(sets, fmt.Sprintf("images = images || $%d::text[]", len(args)))
	}

	updateSQL := `UPDATE rentals SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 AND is_deleted = false RETURNING ` + rentalColumns
	rows, err := q.Query(ctx, updateSQL, args...)
	if err != nil {
		return Rental{}, fmt.Errorf("rental: update: %w", err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[Rental])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Rental{}, ErrNotFound
		}
		return Rental{}, fmt.Errorf("rental: update: %w", err)
	}
	return rec, nil
}

// SoftDelete marks the rental deleted only while it is neither rented nor already deleted.
// It returns ErrUnavailable when the guard did not match.
func (r *Repository) SoftDelete(ctx context.Context, q query.Querier, id string) error {
	tag, err := q.Exec(ctx, `
UPDATE rentals
SET is_deleted = true, updated_at = now()
WHERE id = $1 AND is_rented = false AND is_deleted = false`, id)
	if err != nil {
		return fmt.Errorf("rental: soft delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUnavailable
	}
	return nil
}

// List runs a Query Builder request over non-deleted rentals plus any extra scope.
func (r *Repository) List(ctx context.Context, q query.Querier, params query.Params, scope ...query.Predicate) ([]Rental, query.Meta, error) {
	b := query.New(Schema, params, append([]query.Predicate{NotDeleted}, scope...)...).Apply()
	return query.Run[Rental](ctx, q, b)
}
