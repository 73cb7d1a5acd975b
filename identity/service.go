package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"

	"rentflow/apperr"
	"rentflow/query"
	"rentflow/tracing"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	query.Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store is the user persistence behind the admin directory.
type Store interface {
	Repository
	List(ctx context.Context, q query.Querier, params query.Params) ([]User, query.Meta, error)
	GetForUpdate(ctx context.Context, q query.Querier, userID string) (User, error)
	SetRole(ctx context.Context, q query.Querier, userID string, role Role) (User, error)
	SetStatus(ctx context.Context, q query.Querier, userID string, status UserStatus) (User, error)
}

// Service is the admin user directory: listing accounts, promoting tenants to
// landlords and blocking or unblocking accounts.
type Service struct {
	pool   TxBeginner
	store  Store
	logger ectologger.Logger
}

func NewService(pool TxBeginner, store Store, logger ectologger.Logger) *Service {
	return &Service{pool: pool, store: store, logger: logger}
}

// ListUsers runs a Query Builder request over all users.
func (s *Service) ListUsers(ctx context.Context, caller Identity, params query.Params) ([]User, query.Meta, error) {
	if err := s.authorize(ctx, caller); err != nil {
		return nil, query.Meta{}, err
	}
	return s.store.List(ctx, s.pool, params)
}

// ChangeRole switches a user between tenant and landlord. Deleted and blocked
// accounts are refused.
func (s *Service) ChangeRole(ctx context.Context, caller Identity, userID string, role Role) (User, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.ChangeRole", attribute.String("user.id", userID))
	if role != RoleTenant && role != RoleLandlord {
		err := apperr.BadRequest("Role must be one of 'tenant' and 'landlord'!")
		tracing.End(span, err)
		return User{}, err
	}
	u, err := s.mutate(ctx, caller, userID,
		func(u User) error {
			if u.Status == StatusBlocked {
				return apperr.Forbidden("This account is already blocked!")
			}
			return nil
		},
		func(q query.Querier) (User, error) {
			return s.store.SetRole(ctx, q, userID, role)
		})
	tracing.End(span, err)
	return u, err
}

// ChangeStatus blocks or reactivates a user. Deleted accounts are refused.
func (s *Service) ChangeStatus(ctx context.Context, caller Identity, userID string, status UserStatus) (User, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.ChangeStatus", attribute.String("user.id", userID))
	if status != StatusActive && status != StatusBlocked {
		err := apperr.BadRequest("Status must be one of 'active' and 'blocked'!")
		tracing.End(span, err)
		return User{}, err
	}
	u, err := s.mutate(ctx, caller, userID,
		func(User) error { return nil },
		func(q query.Querier) (User, error) {
			return s.store.SetStatus(ctx, q, userID, status)
		})
	tracing.End(span, err)
	return u, err
}

func (s *Service) authorize(ctx context.Context, caller Identity) error {
	if err := Require(caller, RoleAdmin); err != nil {
		return err
	}
	_, err := Resolve(ctx, s.store, caller)
	return err
}

// mutate locks the target user, applies check and then write inside one transaction.
func (s *Service) mutate(ctx context.Context, caller Identity, userID string, check func(User) error, write func(query.Querier) (User, error)) (User, error) {
	if err := s.authorize(ctx, caller); err != nil {
		return User{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return User{}, fmt.Errorf("identity: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := s.store.GetForUpdate(ctx, tx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, apperr.NotFound("User not found!")
		}
		return User{}, err
	}
	if current.IsDeleted {
		return User{}, apperr.Forbidden("This account is already deleted!")
	}
	if err := check(current); err != nil {
		return User{}, err
	}

	updated, err := write(tx)
	if err != nil {
		return User{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return User{}, fmt.Errorf("identity: commit tx: %w", err)
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"user_id": updated.ID,
		"role":    updated.Role,
		"status":  updated.Status,
		"by":      caller.Email,
	}).Info("user account changed")
	return updated, nil
}
