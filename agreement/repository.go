package agreement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"rentflow/query"
)

var (
	// ErrAgreementNotFound is returned when no agreement row exists for the provided identifier.
	ErrAgreementNotFound = errors.New("agreement: not found")
	// ErrNotPending signals a guarded status write found the agreement already decided.
	ErrNotPending = errors.New("agreement: not pending")
)

// Schema lists agreements joined to their rental so searches and the rent range
// apply to the rental's columns.
var Schema = query.Schema{
	From: "agreements a JOIN rentals r ON r.id = a.rental_id",
	Fields: []query.Field{
		{Name: "id", Expr: "a.id", Alias: "id"},
		{Name: "rental", Expr: "a.rental_id", Alias: "rental_id"},
		{Name: "landlord", Expr: "a.landlord_id", Alias: "landlord_id"},
		{Name: "tenant", Expr: "a.tenant_id", Alias: "tenant_id"},
		{Name: "landlordContactNo", Expr: "a.landlord_contact_no", Alias: "landlord_contact_no"},
		{Name: "status", Expr: "a.status", Alias: "status"},
		{Name: "moveInDate", Expr: "a.move_in_date", Alias: "move_in_date"},
		{Name: "durationMonth", Expr: "a.duration_months", Alias: "duration_months"},
		{Name: "isDeleted", Expr: "a.is_deleted", Alias: "is_deleted"},
		{Name: "createdAt", Expr: "a.created_at", Alias: "created_at"},
		{Name: "updatedAt", Expr: "a.updated_at", Alias: "updated_at"},
		{Name: "location", Expr: "r.location", Alias: "rental_location"},
		{Name: "description", Expr: "r.description", Alias: "rental_description"},
		{Name: "rent", Expr: "r.rent", Alias: "rental_rent"},
	},
	IDField:    "id",
	Searchable: []string{"location", "description"},
	RangeField: "rent",
}

// NotDeleted hides soft-deleted agreements from lists.
var NotDeleted = query.Raw("a.is_deleted = false")

const agreementColumns = `id, rental_id, landlord_id, tenant_id, landlord_contact_no, status, move_in_date, duration_months, is_deleted, created_at, updated_at`

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) Insert(ctx context.Context, q query.Querier, in NewAgreement) (Agreement, error) {
	const insertSQL = `
INSERT INTO agreements (rental_id, landlord_id, tenant_id, status, move_in_date, duration_months)
VALUES ($1, $2, $3, 'pending', $4, $5)
RETURNING ` + agreementColumns

	return collectOne(q.Query(ctx, insertSQL, in.RentalID, in.LandlordID, in.TenantID, in.MoveInDate, in.DurationMonths))
}

// Get loads an agreement regardless of its deleted flag; callers decide how to treat deleted rows.
func (r *Repository) Get(ctx context.Context, q query.Querier, id string) (Agreement, error) {
	return collectOne(q.Query(ctx, `SELECT `+agreementColumns+` FROM agreements WHERE id = $1`, id))
}

// GetForUpdate is Get with the row locked until the surrounding transaction ends.
func (r *Repository) GetForUpdate(ctx context.Context, q query.Querier, id string) (Agreement, error) {
	return collectOne(q.Query(ctx, `SELECT `+agreementColumns+` FROM agreements WHERE id = $1 FOR UPDATE`, id))
}

// FindByRentalTenant returns the tenant's non-deleted agreement on the rental, if any.
func (r *Repository) FindByRentalTenant(ctx context.Context, q query.Querier, rentalID, tenantID string) (Agreement, error) {
	const selectSQL = `
SELECT ` + agreementColumns + `
FROM agreements
WHERE rental_id = $1 AND tenant_id = $2 AND is_deleted = false
ORDER BY created_at DESC
LIMIT 1`
	return collectOne(q.Query(ctx, selectSQL, rentalID, tenantID))
}

// SetStatus moves a pending agreement to next. It returns ErrNotPending if the guard
// did not match.
func (r *Repository) SetStatus(ctx context.Context, q query.Querier, id string, next Status) (Agreement, error) {
	const updateSQL = `
UPDATE agreements
SET status = $2, updated_at = now()
WHERE id = $1 AND status = 'pending' AND is_deleted = false
RETURNING ` + agreementColumns

	rec, err := collectOne(q.Query(ctx, updateSQL, id, next))
	if errors.Is(err, ErrAgreementNotFound) {
		return Agreement{}, ErrNotPending
	}
	return rec, err
}

func (r *Repository) SetLandlordContact(ctx context.Context, q query.Querier, id, contactNo string) (Agreement, error) {
	const updateSQL = `
UPDATE agreements
SET landlord_contact_no = $2, updated_at = now()
WHERE id = $1 AND is_deleted = false
RETURNING ` + agreementColumns

	return collectOne(q.Query(ctx, updateSQL, id, contactNo))
}

func (r *Repository) SoftDelete(ctx context.Context, q query.Querier, id string) error {
	tag, err := q.Exec(ctx, `UPDATE agreements SET is_deleted = true, updated_at = now() WHERE id = $1 AND is_deleted = false`, id)
	if err != nil {
		return fmt.Errorf("agreement: soft delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAgreementNotFound
	}
	return nil
}

// List runs a Query Builder request over non-deleted agreements plus any extra scope.
func (r *Repository) List(ctx context.Context, q query.Querier, params query.Params, scope ...query.Predicate) ([]Agreement, query.Meta, error) {
	b := query.New(Schema, params, append([]query.Predicate{NotDeleted}, scope...)...).Apply()
	return query.Run[Agreement](ctx, q, b)
}

func collectOne(rows pgx.Rows, err error) (Agreement, error) {
	if err != nil {
		return Agreement{}, fmt.Errorf("agreement: query: %w", err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[Agreement])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Agreement{}, ErrAgreementNotFound
		}
		return Agreement{}, fmt.Errorf("agreement: scan: %w", err)
	}
	return rec, nil
}
