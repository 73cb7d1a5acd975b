package rental

import (
	"context"
	"errors"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	"rentflow/apperr"
	"rentflow/identity"
	"rentflow/query"
	"rentflow/tracing"
)

// Store is the data access the rental service needs.
type Store interface {
	Insert(ctx context.Context, q query.Querier, landlordID string, in CreateInput) (Rental, error)
	Get(ctx context.Context, q query.Querier, id string, opts GetOptions) (Rental, error)
	Update(ctx context.Context, q query.Querier, id string, in UpdateInput) (Rental, error)
	SoftDelete(ctx context.Context, q query.Querier, id string) error
	List(ctx context.Context, q query.Querier, params query.Params, scope ...query.Predicate) ([]Rental, query.Meta, error)
}

type Service struct {
	db     query.Querier
	store  Store
	users  identity.Repository
	logger ectologger.Logger
}

func NewService(db query.Querier, store Store, users identity.Repository, logger ectologger.Logger) *Service {
	if store == nil {
		store = NewRepository()
	}
	return &Service{db: db, store: store, users: users, logger: logger}
}

// Create lists a new rental owned by the calling landlord.
func (s *Service) Create(ctx context.Context, caller identity.Identity, in CreateInput) (Rental, error) {
	ctx, span := tracing.StartSpan(ctx, "rental.Create")
	rec, err := s.create(ctx, caller, in)
	tracing.End(span, err)
	return rec, err
}

func (s *Service) create(ctx context.Context, caller identity.Identity, in CreateInput) (Rental, error) {
	if err := identity.Require(caller, identity.RoleLandlord, identity.RoleAdmin); err != nil {
		return Rental{}, err
	}
	if len(in.Images) == 0 {
		return Rental{}, apperr.BadRequest("Rental images are required!")
	}
	if !in.Rent.IsPositive() {
		return Rental{}, apperr.BadRequest("Rent must be greater than zero!")
	}
	if in.Bedrooms < 0 {
		return Rental{}, apperr.BadRequest("Bedrooms cannot be negative!")
	}

	user, err := identity.Resolve(ctx, s.users, caller)
	if err != nil {
		return Rental{}, err
	}

	rec, err := s.store.Insert(ctx, s.db, user.ID, in)
	if err != nil {
		return Rental{}, err
	}
	s.logger.WithContext(ctx).WithFields(map[string]any{"rental_id": rec.ID, "landlord_id": user.ID}).Info("rental created")
	return rec, nil
}

// Get returns a rental with its landlord resolved. Deleted rentals are Forbidden.
func (s *Service) Get(ctx context.Context, id string) (Rental, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return Rental{}, err
	}
	landlord, err := s.users.GetUserByID(ctx, rec.LandlordID)
	switch {
	case err == nil:
		summary := landlord.Summary()
		rec.Landlord = &summary
	case !errors.Is(err, identity.ErrUserNotFound):
		return Rental{}, err
	}
	return rec, nil
}

// List returns visible rentals matching params.
func (s *Service) List(ctx context.Context, params query.Params) ([]Rental, query.Meta, error) {
	return s.store.List(ctx, s.db, params)
}

// ListByLandlord returns the caller's own visible rentals.
func (s *Service) ListByLandlord(ctx context.Context, caller identity.Identity, params query.Params) ([]Rental, query.Meta, error) {
	if err := identity.Require(caller, identity.RoleLandlord, identity.RoleAdmin); err != nil {
		return nil, query.Meta{}, err
	}
	user, err := identity.Resolve(ctx, s.users, caller)
	if err != nil {
		return nil, query.Meta{}, err
	}
	return s.store.List(ctx, s.db, params, query.Eq("r.landlord_id", user.ID))
}

// Update modifies a rental owned by the caller, or any rental for admins.
func (s *Service) Update(ctx context.Context, caller identity.Identity, id string, in UpdateInput) (Rental, error) {
	ctx, span := tracing.StartSpan(ctx, "rental.Update", attribute.String("rental.id", id))
	rec, err := s.update(ctx, caller, id, in)
	tracing.End(span, err)
	return rec, err
}

func (s *Service) update(ctx context.Context, caller identity.Identity, id string, in UpdateInput) (Rental, error) {
	if err := identity.Require(caller, identity.RoleLandlord, identity.RoleAdmin); err != nil {
		return Rental{}, err
	}
	if in.Rent != nil && !in.Rent.IsPositive() {
		return Rental{}, apperr.BadRequest("Rent must be greater than zero!")
	}
	if in.Bedrooms != nil && *in.Bedrooms < 0 {
		return Rental{}, apperr.BadRequest("Bedrooms cannot be negative!")
	}

	existing, err := s.load(ctx, id)
	if err != nil {
		return Rental{}, err
	}
	if err := s.checkOwner(ctx, caller, existing); err != nil {
		return Rental{}, err
	}

	rec, err := s.store.Update(ctx, s.db, id, in)
	if errors.Is(err, ErrNotFound) {
		return Rental{}, apperr.Forbidden("This rental is already deleted!")
	}
	return rec, err
}

// Delete soft-deletes a vacant rental owned by the caller, or any vacant rental for admins.
func (s *Service) Delete(ctx context.Context, caller identity.Identity, id string) error {
	ctx, span := tracing.StartSpan(ctx, "rental.Delete", attribute.String("rental.id", id))
	err := s.delete(ctx, caller, id)
	tracing.End(span, err)
	return err
}

func (s *Service) delete(ctx context.Context, caller identity.Identity, id string) error {
	if err := identity.Require(caller, identity.RoleLandlord, identity.RoleAdmin); err != nil {
		return err
	}
	existing, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.checkOwner(ctx, caller, existing); err != nil {
		return err
	}
	if existing.IsRented {
		return apperr.Forbidden("This rental is in an agreement and cannot be deleted!")
	}

	if err := s.store.SoftDelete(ctx, s.db, id); err != nil {
		if errors.Is(err, ErrUnavailable) {
			// rented or deleted between the read and the guarded write
			return apperr.Forbidden("This rental is in an agreement and cannot be deleted!")
		}
		return err
	}
	s.logger.WithContext(ctx).WithFields(map[string]any{"rental_id": id}).Info("rental deleted")
	return nil
}

func (s *Service) load(ctx context.Context, id string) (Rental, error) {
	rec, err := s.store.Get(ctx, s.db, id, GetOptions{IncludeDeleted: true})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Rental{}, apperr.NotFound("Rental not found!")
		}
		return Rental{}, err
	}
	if rec.IsDeleted {
		return Rental{}, apperr.Forbidden("This rental is already deleted!")
	}
	return rec, nil
}

func (s *Service) checkOwner(ctx context.Context, caller identity.Identity, rec Rental) error {
	if caller.Role != identity.RoleLandlord {
		return nil
	}
	user, err := identity.Resolve(ctx, s.users, caller)
	if err != nil {
		return err
	}
	if rec.LandlordID != user.ID {
		return apperr.Forbidden("You are not authorized!")
	}
	return nil
}
