package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"rentflow/query"
)

var (
	// ErrPaymentNotFound is returned when no payment row is visible for the identifier.
	ErrPaymentNotFound = errors.New("payment: not found")
	// ErrDuplicateTransaction signals the insert hit the transaction id unique constraint.
	ErrDuplicateTransaction = errors.New("payment: duplicate transaction id")
	// ErrNotPending signals the reconciliation compare-and-swap found the payment already settled.
	ErrNotPending = errors.New("payment: not pending")
)

// Schema lists payments joined to their rental for search.
var Schema = query.Schema{
	From: "payments p JOIN rentals r ON r.id = p.rental_id",
	Fields: []query.Field{
		{Name: "id", Expr: "p.id", Alias: "id"},
		{Name: "agreement", Expr: "p.agreement_id", Alias: "agreement_id"},
		{Name: "rental", Expr: "p.rental_id", Alias: "rental_id"},
		{Name: "landlord", Expr: "p.landlord_id", Alias: "landlord_id"},
		{Name: "tenant", Expr: "p.tenant_id", Alias: "tenant_id"},
		{Name: "months", Expr: "p.months", Alias: "months"},
		{Name: "amount", Expr: "p.amount", Alias: "amount"},
		{Name: "status", Expr: "p.status", Alias: "status"},
		{Name: "paymentMethod", Expr: "p.payment_method", Alias: "payment_method"},
		{Name: "transactionId", Expr: "p.transaction_id", Alias: "transaction_id"},
		{Name: "gatewayResponse", Expr: "p.gateway_response", Alias: "gateway_response"},
		{Name: "isDeleted", Expr: "p.is_deleted", Alias: "is_deleted"},
		{Name: "createdAt", Expr: "p.created_at", Alias: "created_at"},
		{Name: "updatedAt", Expr: "p.updated_at", Alias: "updated_at"},
		{Name: "location", Expr: "r.location", Alias: "rental_location"},
		{Name: "description", Expr: "r.description", Alias: "rental_description"},
	},
	IDField:    "id",
	Searchable: []string{"location", "description"},
	RangeField: "amount",
}

// NotDeleted hides soft-deleted payments from lists.
var NotDeleted = query.Raw("p.is_deleted = false")

const paymentColumns = `id, agreement_id, rental_id, landlord_id, tenant_id, months, amount, status, payment_method, transaction_id, gateway_response, is_deleted, created_at, updated_at`

const transactionIDConstraint = "payments_transaction_id_key"

type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

// Insert stores a Pending online payment.
func (r *Repository) Insert(ctx context.Context, q query.Querier, in NewPayment) (Payment, error) {
	const insertSQL = `
INSERT INTO payments (agreement_id, rental_id, landlord_id, tenant_id, months, amount, status, payment_method, transaction_id)
VALUES ($1, $2, $3, $4, $5, $6, 'Pending', 'Online', $7)
RETURNING ` + paymentColumns

	rows, err := q.Query(ctx, insertSQL, in.AgreementID, in.RentalID, in.LandlordID, in.TenantID, in.Months, in.Amount, in.TransactionID)
	rec, err := collectOne(rows, err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == transactionIDConstraint {
			return Payment{}, ErrDuplicateTransaction
		}
		return Payment{}, err
	}
	return rec, nil
}

func (r *Repository) Get(ctx context.Context, q query.Querier, id string) (Payment, error) {
	return collectOne(q.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 AND is_deleted = false`, id))
}

func (r *Repository) GetByTransaction(ctx context.Context, q query.Querier, transactionID string) (Payment, error) {
	return collectOne(q.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE transaction_id = $1 AND is_deleted = false`, transactionID))
}

// Reconcile settles a Pending payment with the gateway's verdict. Only the first caller
// wins; later callers get ErrNotPending and the stored response is left untouched.
func (r *Repository) Reconcile(ctx context.Context, q query.Querier, transactionID string, next Status, raw json.RawMessage) (Payment, error) {
	const updateSQL = `
UPDATE payments
SET status = $2, gateway_response = $3, updated_at = now()
WHERE transaction_id = $1 AND status = 'Pending' AND is_deleted = false
RETURNING ` + paymentColumns

	rec, err := collectOne(q.Query(ctx, updateSQL, transactionID, next, raw))
	if errors.Is(err, ErrPaymentNotFound) {
		return Payment{}, ErrNotPending
	}
	return rec, err
}

// SetStatus overwrites the status without consulting the gateway.
func (r *Repository) SetStatus(ctx context.Context, q query.Querier, id string, next Status) (Payment, error) {
	const updateSQL = `
UPDATE payments
SET status = $2, updated_at = now()
WHERE id = $1 AND is_deleted = false
RETURNING ` + paymentColumns

	return collectOne(q.Query(ctx, updateSQL, id, next))
}

// List runs a Query Builder request over non-deleted payments plus any extra scope.
func (r *Repository) List(ctx context.Context, q query.Querier, params query.Params, scope ...query.Predicate) ([]Payment, query.Meta, error) {
	b := query.New(Schema, params, append([]query.Predicate{NotDeleted}, scope...)...).Apply()
	return query.Run[Payment](ctx, q, b)
}

func collectOne(rows pgx.Rows, err error) (Payment, error) {
	if err != nil {
		return Payment{}, fmt.Errorf("payment: query: %w", err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByNameLax[Payment])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrPaymentNotFound
		}
		return Payment{}, fmt.Errorf("payment: scan: %w", err)
	}
	return rec, nil
}
