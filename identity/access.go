package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentflow/apperr"
)

// Require fails with Forbidden unless id carries one of roles.
func Require(id Identity, roles ...Role) error {
	for _, r := range roles {
		if id.Role == r {
			return nil
		}
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	return apperr.Forbidden("This action requires one of the roles: %s", strings.Join(names, ", "))
}

// CheckActive fails when the user is soft-deleted or blocked.
func CheckActive(u User) error {
	if u.IsDeleted {
		return apperr.Forbidden("This user is deleted!")
	}
	if u.Status == StatusBlocked {
		return apperr.Forbidden("This user is blocked!")
	}
	return nil
}

// IssuedBeforePasswordChange reports whether a token issued at issuedAt predates
// the user's last password change. Tokens carry second precision.
func IssuedBeforePasswordChange(u User, issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return u.PasswordChangedAt.Unix() > issuedAt.Unix()
}

// Resolve loads the user behind id and applies the account checks every
// authenticated request goes through.
func Resolve(ctx context.Context, repo Repository, id Identity) (User, error) {
	u, err := repo.GetUserByEmail(ctx, id.Email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, apperr.NotFound("This user is not found!")
		}
		return User{}, err
	}
	if err := CheckActive(u); err != nil {
		return User{}, err
	}
	if IssuedBeforePasswordChange(u, id.IssuedAt) {
		return User{}, apperr.Unauthorized("You are not authorized!")
	}
	return u, nil
}
