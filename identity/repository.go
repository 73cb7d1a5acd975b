package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rentflow/query"
)

var (
	// ErrUserNotFound signals that the user does not exist.
	ErrUserNotFound = errors.New("identity: user not found")
)

// UserSchema is the list schema for the admin user directory.
var UserSchema = query.Schema{
	From: "users u",
	Fields: []query.Field{
		{Name: "id", Expr: "u.id", Alias: "id"},
		{Name: "name", Expr: "u.name", Alias: "name"},
		{Name: "email", Expr: "u.email", Alias: "email"},
		{Name: "role", Expr: "u.role::text", Alias: "role"},
		{Name: "status", Expr: "u.status::text", Alias: "status"},
		{Name: "contactNo", Expr: "u.contact_no", Alias: "contact_no"},
		{Name: "isDeleted", Expr: "u.is_deleted", Alias: "is_deleted"},
		{Name: "createdAt", Expr: "u.created_at", Alias: "created_at"},
		{Name: "updatedAt", Expr: "u.updated_at", Alias: "updated_at"},
	},
	IDField:    "id",
	Searchable: []string{"name", "email", "role", "status"},
}

// Repository handles read access to users.
type Repository interface {
	GetUserByEmail(ctx context.Context, email string) (User, error)
	GetUserByID(ctx context.Context, userID string) (User, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed user repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const userColumns = `id, name, email, role, status, contact_no, password_changed_at, is_deleted, created_at, updated_at`

// GetUserByEmail retrieves a user by email address, including soft-deleted users.
func (r *PGRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("identity: get user by email: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by ID, including soft-deleted users.
func (r *PGRepository) GetUserByID(ctx context.Context, userID string) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("identity: get user by id: %w", err)
	}
	return user, nil
}

// List runs a Query Builder request over every user, deleted ones included.
func (r *PGRepository) List(ctx context.Context, q query.Querier, params query.Params) ([]User, query.Meta, error) {
	return query.Run[User](ctx, q, query.New(UserSchema, params).Apply())
}

// GetForUpdate loads a user by id and locks the row until the transaction ends.
func (r *PGRepository) GetForUpdate(ctx context.Context, q query.Querier, userID string) (User, error) {
	user, err := scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("identity: lock user: %w", err)
	}
	return user, nil
}

// SetRole stores a new role for the user.
func (r *PGRepository) SetRole(ctx context.Context, q query.Querier, userID string, role Role) (User, error) {
	return r.update(ctx, q, `UPDATE users SET role = $2::user_role, updated_at = now() WHERE id = $1 RETURNING `+userColumns, userID, role)
}

// SetStatus stores a new account status for the user.
func (r *PGRepository) SetStatus(ctx context.Context, q query.Querier, userID string, status UserStatus) (User, error) {
	return r.update(ctx, q, `UPDATE users SET status = $2::user_status, updated_at = now() WHERE id = $1 RETURNING `+userColumns, userID, status)
}

func (r *PGRepository) update(ctx context.Context, q query.Querier, sql, userID string, value any) (User, error) {
	user, err := scanUser(q.QueryRow(ctx, sql, userID, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("identity: update user: %w", err)
	}
	return user, nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.Status,
		&user.ContactNo,
		&user.PasswordChangedAt,
		&user.IsDeleted,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	return user, nil
}
