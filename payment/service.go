package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"rentflow/agreement"
	"rentflow/apperr"
	"rentflow/gateway"
	"rentflow/identity"
	"rentflow/metrics"
	"rentflow/notify"
	"rentflow/query"
	"rentflow/rental"
	"rentflow/tracing"
)

const defaultGatewayTimeout = 15 * time.Second

// Store defines the payment data access required by the service.
type Store interface {
	Insert(ctx context.Context, q query.Querier, in NewPayment) (Payment, error)
	Get(ctx context.Context, q query.Querier, id string) (Payment, error)
	GetByTransaction(ctx context.Context, q query.Querier, transactionID string) (Payment, error)
	Reconcile(ctx context.Context, q query.Querier, transactionID string, next Status, raw json.RawMessage) (Payment, error)
	SetStatus(ctx context.Context, q query.Querier, id string, next Status) (Payment, error)
	List(ctx context.Context, q query.Querier, params query.Params, scope ...query.Predicate) ([]Payment, query.Meta, error)
}

// AgreementReader is the agreement lookup the workflow needs.
type AgreementReader interface {
	Get(ctx context.Context, q query.Querier, id string) (agreement.Agreement, error)
}

// RentalReader is the rental lookup the workflow needs.
type RentalReader interface {
	Get(ctx context.Context, q query.Querier, id string, opts rental.GetOptions) (rental.Rental, error)
}

// Deps collects the collaborators of Service. Nil Store, Agreements and Rentals fall
// back to the PostgreSQL implementations.
type Deps struct {
	Store      Store
	Agreements AgreementReader
	Rentals    RentalReader
	Users      identity.Repository
	Gateway    gateway.Gateway
	Notifier   *notify.Dispatcher
	Logger     ectologger.Logger
	// GatewayTimeout bounds each gateway call.
	GatewayTimeout time.Duration
	// NewTransactionID mints transaction ids; defaults to NewTransactionID.
	NewTransactionID func() string
}

type Service struct {
	db             query.Querier
	store          Store
	agreements     AgreementReader
	rentals        RentalReader
	users          identity.Repository
	gateway        gateway.Gateway
	notifier       *notify.Dispatcher
	logger         ectologger.Logger
	gatewayTimeout time.Duration
	newTxID        func() string
}

func NewService(db query.Querier, deps Deps) *Service {
	if deps.Store == nil {
		deps.Store = NewRepository()
	}
	if deps.Agreements == nil {
		deps.Agreements = agreement.NewRepository()
	}
	if deps.Rentals == nil {
		deps.Rentals = rental.NewRepository()
	}
	if deps.GatewayTimeout <= 0 {
		deps.GatewayTimeout = defaultGatewayTimeout
	}
	if deps.NewTransactionID == nil {
		deps.NewTransactionID = NewTransactionID
	}
	return &Service{
		db:             db,
		store:          deps.Store,
		agreements:     deps.Agreements,
		rentals:        deps.Rentals,
		users:          deps.Users,
		gateway:        deps.Gateway,
		notifier:       deps.Notifier,
		logger:         deps.Logger,
		gatewayTimeout: deps.GatewayTimeout,
		newTxID:        deps.NewTransactionID,
	}
}

// Amount is the rent owed for the selected months. Repeated months are charged again.
func Amount(rent decimal.Decimal, months []string) decimal.Decimal {
	return rent.Mul(decimal.NewFromInt(int64(len(months))))
}

// CreatePayment records a Pending payment for an approved agreement and opens a gateway
// checkout for it.
func (s *Service) CreatePayment(ctx context.Context, caller identity.Identity, in CreateInput) (Checkout, error) {
	ctx, span := tracing.StartSpan(ctx, "payment.CreatePayment", attribute.String("agreement.id", in.AgreementID))
	out, err := s.createPayment(ctx, caller, in)
	tracing.End(span, err)
	return out, err
}

func (s *Service) createPayment(ctx context.Context, caller identity.Identity, in CreateInput) (Checkout, error) {
	if err := identity.Require(caller, identity.RoleTenant); err != nil {
		return Checkout{}, err
	}
	if len(in.Months) == 0 {
		return Checkout{}, apperr.BadRequest("Must select at least one month!")
	}

	tenant, err := identity.Resolve(ctx, s.users, caller)
	if err != nil {
		return Checkout{}, err
	}

	agr, err := s.agreements.Get(ctx, s.db, in.AgreementID)
	if err != nil {
		if errors.Is(err, agreement.ErrAgreementNotFound) {
			return Checkout{}, apperr.NotFound("Agreement not found!")
		}
		return Checkout{}, err
	}
	if agr.IsDeleted {
		return Checkout{}, apperr.NotFound("Agreement not found!")
	}
	if agr.TenantID != tenant.ID {
		return Checkout{}, apperr.Forbidden("You are not authorized to pay for this agreement!")
	}
	switch agr.Status {
	case agreement.StatusPending:
		return Checkout{}, apperr.BadRequest("Agreement is still pending!")
	case agreement.StatusRejected:
		return Checkout{}, apperr.BadRequest("Agreement is rejected!")
	}

	rent, err := s.rentals.Get(ctx, s.db, agr.RentalID, rental.GetOptions{IncludeDeleted: true})
	if err != nil {
		if errors.Is(err, rental.ErrNotFound) {
			return Checkout{}, apperr.NotFound("Rental not found!")
		}
		return Checkout{}, err
	}

	rec, err := s.store.Insert(ctx, s.db, NewPayment{
		AgreementID:   agr.ID,
		RentalID:      agr.RentalID,
		LandlordID:    agr.LandlordID,
		TenantID:      tenant.ID,
		Months:        in.Months,
		Amount:        Amount(rent.Rent, in.Months),
		TransactionID: s.newTxID(),
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateTransaction) {
			return Checkout{}, apperr.Conflict("Transaction id already in use, please retry!")
		}
		return Checkout{}, err
	}
	metrics.PaymentsCreatedTotal.Inc()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"payment_id":     rec.ID,
		"transaction_id": rec.TransactionID,
		"amount":         rec.Amount.String(),
	})

	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	url, err := s.gateway.Initialize(gctx, rec.Amount, rec.TransactionID)
	if err == nil && url == "" {
		err = gateway.ErrNoRedirect
	}
	if err != nil {
		log.WithError(err).Error("failed to initialize gateway checkout")
		return Checkout{}, apperr.BadGateway("Failed to generate payment gateway URL!")
	}
	log.Info("payment created")
	return Checkout{PaymentURL: url}, nil
}

// Reconcile asks the gateway for the outcome of transactionID and settles the Pending
// payment exactly once. A failed outcome is persisted and then reported as an error.
func (s *Service) Reconcile(ctx context.Context, caller identity.Identity, transactionID string) (Payment, error) {
	ctx, span := tracing.StartSpan(ctx, "payment.Reconcile", attribute.String("payment.transaction_id", transactionID))
	rec, err := s.reconcile(ctx, caller, transactionID)
	tracing.End(span, err)
	return rec, err
}

func (s *Service) reconcile(ctx context.Context, caller identity.Identity, transactionID string) (Payment, error) {
	if strings.TrimSpace(transactionID) == "" {
		return Payment{}, apperr.BadRequest("Transaction ID is required!")
	}
	user, err := identity.Resolve(ctx, s.users, caller)
	if err != nil {
		return Payment{}, err
	}

	current, err := s.store.GetByTransaction(ctx, s.db, transactionID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return Payment{}, apperr.NotFound("Payment not Found!")
		}
		return Payment{}, err
	}
	switch {
	case caller.Role == identity.RoleLandlord && current.LandlordID != user.ID:
		return Payment{}, apperr.Unauthorized("You are not authorized to update this payment!")
	case caller.Role == identity.RoleTenant && current.TenantID != user.ID:
		return Payment{}, apperr.Unauthorized("You are not authorized tenant to update this payment!")
	}
	if current.Status != StatusPending {
		metrics.ReconciliationsTotal.WithLabelValues("conflict").Inc()
		return Payment{}, apperr.Conflict("Payment is already %s!", current.Status)
	}
	if _, err := s.rentals.Get(ctx, s.db, current.RentalID, rental.GetOptions{IncludeDeleted: true}); err != nil {
		if errors.Is(err, rental.ErrNotFound) {
			return Payment{}, apperr.NotFound("Rental not Found!")
		}
		return Payment{}, err
	}

	gctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	res, err := s.gateway.Query(gctx, current.TransactionID)
	if err != nil {
		metrics.ReconciliationsTotal.WithLabelValues("gateway_error").Inc()
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"transaction_id": current.TransactionID,
		}).Error("failed to query gateway")
		return Payment{}, apperr.BadGateway("Failed to verify payment with the gateway!")
	}

	next := StatusFailed
	if res.Status.Confirmed() {
		next = StatusPaid
	}
	rec, err := s.store.Reconcile(ctx, s.db, current.TransactionID, next, res.Raw)
	if err != nil {
		if errors.Is(err, ErrNotPending) {
			metrics.ReconciliationsTotal.WithLabelValues("conflict").Inc()
			return Payment{}, apperr.Conflict("Payment is already reconciled!")
		}
		return Payment{}, fmt.Errorf("payment: reconcile: %w", err)
	}
	metrics.ReconciliationsTotal.WithLabelValues(strings.ToLower(string(next))).Inc()
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"payment_id":     rec.ID,
		"transaction_id": rec.TransactionID,
		"gateway_status": res.Status,
		"status":         next,
	}).Info("payment reconciled")

	if next == StatusFailed {
		return Payment{}, apperr.ExpectationFailed("Payment failed!")
	}
	s.confirm(ctx, rec)
	return rec, nil
}

func (s *Service) confirm(ctx context.Context, p Payment) {
	tenant, err := s.users.GetUserByID(ctx, p.TenantID)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"payment_id": p.ID}).Warn("payment confirmation skipped")
		return
	}
	s.notifier.Send(ctx, notify.TemplatePaymentConfirmed, tenant.Email, map[string]string{
		"userName":      tenant.Name,
		"amount":        p.Amount.StringFixed(2),
		"months":        strings.Join(p.Months, ", "),
		"transactionId": p.TransactionID,
	})
}

// ChangePaymentStatus lets an admin, or the payment's landlord, set the status directly.
func (s *Service) ChangePaymentStatus(ctx context.Context, caller identity.Identity, paymentID string, next Status) (Payment, error) {
	if err := identity.Require(caller, identity.RoleAdmin, identity.RoleLandlord); err != nil {
		return Payment{}, err
	}
	if !next.Valid() {
		return Payment{}, apperr.BadRequest("Update status must be one of 'Pending', 'Paid' and 'Failed'!")
	}

	current, err := s.store.Get(ctx, s.db, paymentID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return Payment{}, apperr.NotFound("Payment not Found!")
		}
		return Payment{}, err
	}
	if caller.Role == identity.RoleLandlord {
		user, err := identity.Resolve(ctx, s.users, caller)
		if err != nil {
			return Payment{}, err
		}
		if current.LandlordID != user.ID {
			return Payment{}, apperr.Unauthorized("You are not authorized to update this payment!")
		}
	}

	rec, err := s.store.SetStatus(ctx, s.db, current.ID, next)
	if err != nil {
		return Payment{}, err
	}
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"payment_id": rec.ID,
		"from":       current.Status,
		"to":         next,
		"by":         caller.Email,
	}).Info("payment status overridden")
	return rec, nil
}

// GetPaymentDetails returns a payment with its agreement, rental and parties resolved.
func (s *Service) GetPaymentDetails(ctx context.Context, caller identity.Identity, paymentID string) (Payment, error) {
	rec, err := s.store.Get(ctx, s.db, paymentID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return Payment{}, apperr.NotFound("Payment not Found!")
		}
		return Payment{}, err
	}

	if caller.Role != identity.RoleAdmin {
		user, err := identity.Resolve(ctx, s.users, caller)
		if err != nil {
			return Payment{}, err
		}
		if (caller.Role == identity.RoleLandlord && rec.LandlordID != user.ID) ||
			(caller.Role == identity.RoleTenant && rec.TenantID != user.ID) {
			return Payment{}, apperr.Forbidden("You are not authorized to view this payment!")
		}
	}

	if agr, err := s.agreements.Get(ctx, s.db, rec.AgreementID); err == nil {
		rec.Agreement = &agr
	} else if !errors.Is(err, agreement.ErrAgreementNotFound) {
		return Payment{}, err
	}
	if r, err := s.rentals.Get(ctx, s.db, rec.RentalID, rental.GetOptions{IncludeDeleted: true}); err == nil {
		rec.Rental = &r
	} else if !errors.Is(err, rental.ErrNotFound) {
		return Payment{}, err
	}
	rec.Landlord, err = s.summary(ctx, rec.LandlordID)
	if err != nil {
		return Payment{}, err
	}
	rec.Tenant, err = s.summary(ctx, rec.TenantID)
	if err != nil {
		return Payment{}, err
	}
	return rec, nil
}

func (s *Service) summary(ctx context.Context, userID string) (*identity.Summary, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	sum := u.Summary()
	return &sum, nil
}

// AllPayments lists every visible payment for admins.
func (s *Service) AllPayments(ctx context.Context, caller identity.Identity, params query.Params) ([]Payment, query.Meta, error) {
	if err := identity.Require(caller, identity.RoleAdmin); err != nil {
		return nil, query.Meta{}, err
	}
	return s.store.List(ctx, s.db, params)
}

// LandlordPayments lists payments received by the caller.
func (s *Service) LandlordPayments(ctx context.Context, caller identity.Identity, params query.Params) ([]Payment, query.Meta, error) {
	return s.listFor(ctx, caller, identity.RoleLandlord, "p.landlord_id", params)
}

// TenantPayments lists payments made by the caller.
func (s *Service) TenantPayments(ctx context.Context, caller identity.Identity, params query.Params) ([]Payment, query.Meta, error) {
	return s.listFor(ctx, caller, identity.RoleTenant, "p.tenant_id", params)
}

func (s *Service) listFor(ctx context.Context, caller identity.Identity, role identity.Role, column string, params query.Params) ([]Payment, query.Meta, error) {
	if err := identity.Require(caller, role); err != nil {
		return nil, query.Meta{}, err
	}
	user, err := identity.Resolve(ctx, s.users, caller)
	if err != nil {
		return nil, query.Meta{}, err
	}
	return s.store.List(ctx, s.db, params, query.Eq(column, user.ID))
}
