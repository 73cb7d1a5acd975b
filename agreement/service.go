package agreement

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"

	"rentflow/apperr"
	"rentflow/identity"
	"rentflow/metrics"
	"rentflow/notify"
	"rentflow/query"
	"rentflow/rental"
	"rentflow/tracing"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	query.Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store defines the agreement data access required by the service.
type Store interface {
	Insert(ctx context.Context, q query.Querier, in NewAgreement) (Agreement, error)
	Get(ctx context.Context, q query.Querier, id string) (Agreement, error)
	GetForUpdate(ctx context.Context, q query.Querier, id string) (Agreement, error)
	FindByRentalTenant(ctx context.Context, q query.Querier, rentalID, tenantID string) (Agreement, error)
	SetStatus(ctx context.Context, q query.Querier, id string, next Status) (Agreement, error)
	SetLandlordContact(ctx context.Context, q query.Querier, id, contactNo string) (Agreement, error)
	SoftDelete(ctx context.Context, q query.Querier, id string) error
	List(ctx context.Context, q query.Querier, params query.Params, scope ...query.Predicate) ([]Agreement, query.Meta, error)
}

// RentalReader is the rental lookup the workflow needs.
type RentalReader interface {
	Get(ctx context.Context, q query.Querier, id string, opts rental.GetOptions) (rental.Rental, error)
}

// Occupier writes rentals.is_rented.
type Occupier interface {
	Occupy(ctx context.Context, q query.Querier, rentalID string) error
	Release(ctx context.Context, q query.Querier, rentalID string) error
	Recompute(ctx context.Context, q query.Querier, rentalID string) error
}

// Links are the client pages referenced from notification emails.
type Links struct {
	LandlordAgreements string
	TenantAgreements   string
}

// Deps collects the collaborators of Service. Nil Store, Rentals and Occupancy fall back
// to the PostgreSQL implementations.
type Deps struct {
	Store     Store
	Rentals   RentalReader
	Occupancy Occupier
	Users     identity.Repository
	Notifier  *notify.Dispatcher
	Logger    ectologger.Logger
	Links     Links
}

type Service struct {
	pool      TxBeginner
	store     Store
	rentals   RentalReader
	occupancy Occupier
	users     identity.Repository
	notifier  *notify.Dispatcher
	logger    ectologger.Logger
	links     Links
}

func NewService(pool TxBeginner, deps Deps) *Service {
	if deps.Store == nil {
		deps.Store = NewRepository()
	}
	if deps.Rentals == nil {
		deps.Rentals = rental.NewRepository()
	}
	if deps.Occupancy == nil {
		deps.Occupancy = rental.NewOccupancy()
	}
	return &Service{
		pool:      pool,
		store:     deps.Store,
		rentals:   deps.Rentals,
		occupancy: deps.Occupancy,
		users:     deps.Users,
		notifier:  deps.Notifier,
		logger:    deps.Logger,
		links:     deps.Links,
	}
}

// RequestAgreement stores a pending agreement from the calling tenant and alerts the landlord.
func (s *Service) RequestAgreement(ctx context.Context, caller identity.Identity, in RequestInput) (Agreement, error) {
	ctx, span := tracing.StartSpan(ctx, "agreement.RequestAgreement", attribute.String("rental.id", in.RentalID))
	rec, err := s.requestAgreement(ctx, caller, in)
	tracing.End(span, err)
	return rec, err
}

func (s *Service) requestAgreement(ctx context.Context, caller identity.Identity, in RequestInput) (Agreement, error) {
	if err := identity.Require(caller, identity.RoleTenant); err != nil {
		return Agreement{}, err
	}
	if in.DurationMonths < 1 {
		return Agreement{}, apperr.BadRequest("Duration month must be at least 1")
	}
	if in.MoveInDate.IsZero() {
		return Agreement{}, apperr.BadRequest("Move-in date is required!")
	}

	tenant, err := identity.Resolve(ctx, s.users, caller)
	if err != nil {
		return Agreement{}, err
	}

	rent, err := s.rentals.Get(ctx, s.pool, in.RentalID, rental.GetOptions{})
	if err != nil {
		if errors.Is(err, rental.ErrNotFound) {
			return Agreement{}, apperr.NotFound("Rental not found!")
		}
		return Agreement{}, err
	}
	if rent.IsRented {
		return Agreement{}, apperr.Conflict("This Rental is already rented!")
	}

	landlord, err := s.users.GetUserByID(ctx, rent.LandlordID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return Agreement{}, apperr.BadRequest("Landlord not found!")
		}
		return Agreement{}, err
	}

	existing, err := s.store.FindByRentalTenant(ctx, s.pool, rent.ID, tenant.ID)
	switch {
	case err == nil:
		return Agreement{}, apperr.Conflict("You already have a %s agreement with this rental!", existing.Status)
	case !errors.Is(err, ErrAgreementNotFound):
		return Agreement{}, err
	}

	rec, err := s.store.Insert(ctx, s.pool, NewAgreement{
		RentalID:       rent.ID,
		LandlordID:     landlord.ID,
		TenantID:       tenant.ID,
		MoveInDate:     in.MoveInDate,
		DurationMonths: in.DurationMonths,
	})
	if err != nil {
		return Agreement{}, err
	}
	metrics.AgreementTransitionsTotal.WithLabelValues(string(StatusPending)).Inc()

	s.notifier.Send(ctx, notify.TemplateAgreementRequest, landlord.Email, map[string]string{
		"userName":      landlord.Name,
		"rentalAddress": rent.Location,
		"buttonLink":    s.links.LandlordAgreements,
	})

	attach(&rec, rent, landlord, tenant)
	return rec, nil
}

// SetAgreementStatus approves or rejects a pending agreement on behalf of its landlord.
// The agreement row is locked for the whole transaction and the rental's occupancy is
// written before the agreement so concurrent approvals on one rental serialize.
func (s *Service) SetAgreementStatus(ctx context.Context, caller identity.Identity, agreementID string, next Status) (Agreement, error) {
	ctx, span := tracing.StartSpan(ctx, "agreement.SetAgreementStatus",
		attribute.String("agreement.id", agreementID),
		attribute.String("agreement.status", string(next)))
	rec, err := s.setAgreementStatus(ctx, caller, agreementID, next)
	tracing.End(span, err)
	return rec, err
}

func (s *Service) setAgreementStatus(ctx context.Context, caller identity.Identity, agreementID string, next Status) (Agreement, error) {
	if err := identity.Require(caller, identity.RoleLandlord); err != nil {
		return Agreement{}, err
	}
	if !next.Decision() {
		return Agreement{}, apperr.BadRequest("Update status must be one of 'approved' and 'rejected'!")
	}
	landlord, err := identity.Resolve(ctx, s.users, caller)
	if err != nil {
		return Agreement{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Agreement{}, fmt.Errorf("agreement: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.lockOwned(ctx, tx, agreementID, landlord)
	if err != nil {
		return Agreement{}, err
	}
	if current.Status != StatusPending {
		return Agreement{}, apperr.Conflict("Agreement is already %s!", current.Status)
	}

	rent, err := s.rentals.Get(ctx, tx, current.RentalID, rental.GetOptions{IncludeDeleted: true})
	if err != nil {
		if errors.Is(err, rental.ErrNotFound) {
			return Agreement{}, apperr.NotFound("Rental not found!")
		}
		return Agreement{}, err
	}
	if rent.IsDeleted {
		return Agreement{}, apperr.Forbidden("This Rental is already deleted!")
	}
	if next == StatusApproved && rent.IsRented {
		return Agreement{}, apperr.Forbidden("This Rental is already rented!")
	}

	tenant, err := s.users.GetUserByID(ctx, current.TenantID)
	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return Agreement{}, apperr.NotFound("Tenant not found!")
		}
		return Agreement{}, err
	}
	if tenant.IsDeleted {
		return Agreement{}, apperr.Forbidden("Tenant is already deleted!")
	}
	if tenant.Status == identity.StatusBlocked {
		return Agreement{}, apperr.Forbidden("Tenant is already blocked!")
	}

	// the agreement being decided is still pending here and never counts toward occupancy
	if next == StatusApproved {
		if err := s.occupancy.Occupy(ctx, tx, rent.ID); err != nil {
			if errors.Is(err, rental.ErrUnavailable) {
				return Agreement{}, apperr.Forbidden("This Rental is already rented!")
			}
			return Agreement{}, err
		}
		rent.IsRented = true
	} else if err := s.occupancy.Recompute(ctx, tx, rent.ID); err != nil {
		return Agreement{}, err
	}

	rec, err := s.store.SetStatus(ctx, tx, current.ID, next)
	if err != nil {
		if errors.Is(err, ErrNotPending) {
			return Agreement{}, apperr.Conflict("Agreement is already decided!")
		}
		return Agreement{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Agreement{}, fmt.Errorf("agreement: commit tx: %w", err)
	}
	metrics.AgreementTransitionsTotal.WithLabelValues(string(next)).Inc()
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"agreement_id": rec.ID,
		"rental_id":    rent.ID,
		"status":       next,
	}).Info("agreement status changed")

	if next == StatusApproved {
		s.notifier.Send(ctx, notify.TemplateAgreementApproved, tenant.Email, map[string]string{
			"userName":      tenant.Name,
			"rentalAddress": rent.Location,
			"buttonLink":    s.links.TenantAgreements,
		})
	}

	attach(&rec, rent, landlord, tenant)
	return rec, nil
}

// SetLandlordContact records the landlord's contact number on their agreement.
func (s *Service) SetLandlordContact(ctx context.Context, caller identity.Identity, agreementID, contactNo string) (Agreement, error) {
	if err := identity.Require(caller, identity.RoleLandlord); err != nil {
		return Agreement{}, err
	}
	if contactNo == "" {
		return Agreement{}, apperr.BadRequest("Contact Number is required!")
	}
	landlord, err := identity.Resolve(ctx, s.users, caller)
	if err != nil {
		return Agreement{}, err
	}

	current, err := s.store.Get(ctx, s.pool, agreementID)
	if err != nil {
		return Agreement{}, notFound(err)
	}
	if err := checkOwned(current, landlord); err != nil {
		return Agreement{}, err
	}

	rent, err := s.rentals.Get(ctx, s.pool, current.RentalID, rental.GetOptions{IncludeDeleted: true})
	if err != nil {
		if errors.Is(err, rental.ErrNotFound) {
			return Agreement{}, apperr.BadRequest("Rental not found!")
		}
		return Agreement{}, err
	}
	if rent.IsDeleted {
		return Agreement{}, apperr.Forbidden("This Rental is already deleted!")
	}

	rec, err := s.store.SetLandlordContact(ctx, s.pool, current.ID, contactNo)
	if err != nil {
		if errors.Is(err, ErrAgreementNotFound) {
			return Agreement{}, apperr.Forbidden("This Agreement is already deleted!")
		}
		return Agreement{}, err
	}
	return rec, nil
}

// DeleteAgreement soft-deletes the landlord's agreement. Deleting the approved agreement
// clears the rental's rented flag; any other deletion recomputes it.
func (s *Service) DeleteAgreement(ctx context.Context, caller identity.Identity, agreementID string) error {
	ctx, span := tracing.StartSpan(ctx, "agreement.DeleteAgreement", attribute.String("agreement.id", agreementID))
	err := s.deleteAgreement(ctx, caller, agreementID)
	tracing.End(span, err)
	return err
}

func (s *Service) deleteAgreement(ctx context.Context, caller identity.Identity, agreementID string) error {
	if err := identity.Require(caller, identity.RoleLandlord); err != nil {
		return err
	}
	landlord, err := identity.Resolve(ctx, s.users, caller)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("agreement: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.lockOwned(ctx, tx, agreementID, landlord)
	if err != nil {
		return err
	}

	if _, err := s.rentals.Get(ctx, tx, current.RentalID, rental.GetOptions{IncludeDeleted: true}); err != nil {
		if errors.Is(err, rental.ErrNotFound) {
			return apperr.BadRequest("Rental not found!")
		}
		return err
	}
	if err := s.store.SoftDelete(ctx, tx, current.ID); err != nil {
		if errors.Is(err, ErrAgreementNotFound) {
			return apperr.Forbidden("This Agreement is already deleted!")
		}
		return err
	}
	// Only the approved agreement holds the rental. Deleting any other one
	// leaves the flag to whatever approval still references the rental.
	if current.Status == StatusApproved {
		err = s.occupancy.Release(ctx, tx, current.RentalID)
	} else {
		err = s.occupancy.Recompute(ctx, tx, current.RentalID)
	}
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("agreement: commit tx: %w", err)
	}
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"agreement_id": current.ID,
		"rental_id":    current.RentalID,
	}).Info("agreement deleted")
	return nil
}

// AllAgreements lists every visible agreement for admins.
func (s *Service) AllAgreements(ctx context.Context, caller identity.Identity, params query.Params) ([]Agreement, query.Meta, error) {
	if err := identity.Require(caller, identity.RoleAdmin); err != nil {
		return nil, query.Meta{}, err
	}
	return s.store.List(ctx, s.pool, params)
}

// LandlordAgreements lists agreements on the caller's rentals.
func (s *Service) LandlordAgreements(ctx context.Context, caller identity.Identity, params query.Params) ([]Agreement, query.Meta, error) {
	return s.listFor(ctx, caller, identity.RoleLandlord, "a.landlord_id", params)
}

// TenantAgreements lists the caller's own agreement requests.
func (s *Service) TenantAgreements(ctx context.Context, caller identity.Identity, params query.Params) ([]Agreement, query.Meta, error) {
	return s.listFor(ctx, caller, identity.RoleTenant, "a.tenant_id", params)
}

func (s *Service) listFor(ctx context.Context, caller identity.Identity, role identity.Role, column string, params query.Params) ([]Agreement, query.Meta, error) {
	if err := identity.Require(caller, role); err != nil {
		return nil, query.Meta{}, err
	}
	user, err := identity.Resolve(ctx, s.users, caller)
	if err != nil {
		return nil, query.Meta{}, err
	}
	return s.store.List(ctx, s.pool, params, query.Eq(column, user.ID))
}

func (s *Service) lockOwned(ctx context.Context, tx pgx.Tx, agreementID string, landlord identity.User) (Agreement, error) {
	current, err := s.store.GetForUpdate(ctx, tx, agreementID)
	if err != nil {
		return Agreement{}, notFound(err)
	}
	if err := checkOwned(current, landlord); err != nil {
		return Agreement{}, err
	}
	return current, nil
}

func checkOwned(a Agreement, landlord identity.User) error {
	if a.IsDeleted {
		return apperr.Forbidden("This Agreement is already deleted!")
	}
	if a.LandlordID != landlord.ID {
		return apperr.Forbidden("You are not authorized to update this Agreement!")
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, ErrAgreementNotFound) {
		return apperr.NotFound("Agreement not found!")
	}
	return err
}

func attach(a *Agreement, r rental.Rental, landlord, tenant identity.User) {
	ls, ts := landlord.Summary(), tenant.Summary()
	a.Rental, a.Landlord, a.Tenant = &r, &ls, &ts
}
