package identity

import (
	"context"
	"net/http"
	"testing"
	"time"

	"rentflow/apperr"
)

func TestRequire(t *testing.T) {
	landlord := Identity{Email: "lee@example.com", Role: RoleLandlord}

	if err := Require(landlord, RoleLandlord, RoleAdmin); err != nil {
		t.Fatalf("expected landlord to pass, got %v", err)
	}
	err := Require(landlord, RoleTenant)
	if !apperr.Is(err, http.StatusForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCheckActive(t *testing.T) {
	if err := CheckActive(User{Status: StatusActive}); err != nil {
		t.Fatalf("expected active user to pass, got %v", err)
	}
	if err := CheckActive(User{Status: StatusBlocked}); !apperr.Is(err, http.StatusForbidden) {
		t.Fatalf("expected blocked user to be forbidden, got %v", err)
	}
	if err := CheckActive(User{Status: StatusActive, IsDeleted: true}); !apperr.Is(err, http.StatusForbidden) {
		t.Fatalf("expected deleted user to be forbidden, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	changed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo := &fakeRepository{users: map[string]User{
		"tina@example.com": {ID: "u-1", Email: "tina@example.com", Role: RoleTenant, Status: StatusActive, PasswordChangedAt: &changed},
		"bob@example.com":  {ID: "u-2", Email: "bob@example.com", Role: RoleTenant, Status: StatusBlocked},
	}}

	tests := []struct {
		name   string
		id     Identity
		status int
	}{
		{"fresh token", Identity{Email: "tina@example.com", Role: RoleTenant, IssuedAt: changed.Add(time.Hour)}, 0},
		{"same second as change", Identity{Email: "tina@example.com", Role: RoleTenant, IssuedAt: changed}, 0},
		{"token predates password change", Identity{Email: "tina@example.com", Role: RoleTenant, IssuedAt: changed.Add(-time.Minute)}, http.StatusUnauthorized},
		{"blocked", Identity{Email: "bob@example.com", Role: RoleTenant, IssuedAt: changed}, http.StatusForbidden},
		{"unknown", Identity{Email: "ghost@example.com", Role: RoleTenant, IssuedAt: changed}, http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			u, err := Resolve(context.Background(), repo, tc.id)
			if tc.status == 0 {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				if u.Email != tc.id.Email {
					t.Fatalf("expected %s, got %s", tc.id.Email, u.Email)
				}
				return
			}
			if !apperr.Is(err, tc.status) {
				t.Fatalf("expected status %d, got %v", tc.status, err)
			}
		})
	}
}

type fakeRepository struct {
	users map[string]User
}

func (f *fakeRepository) GetUserByEmail(ctx context.Context, email string) (User, error) {
	u, ok := f.users[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (f *fakeRepository) GetUserByID(ctx context.Context, userID string) (User, error) {
	for _, u := range f.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}
