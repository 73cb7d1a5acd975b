package identity

import "time"

type Role string

const (
	RoleTenant   Role = "tenant"
	RoleLandlord Role = "landlord"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleTenant, RoleLandlord, RoleAdmin:
		return true
	default:
		return false
	}
}

type UserStatus string

const (
	StatusActive  UserStatus = "active"
	StatusBlocked UserStatus = "blocked"
)

// Identity is the verified caller handed to every workflow operation.
type Identity struct {
	Email    string
	Role     Role
	IssuedAt time.Time
}

// User mirrors the users table. Only role and status are written here, by the admin directory.
type User struct {
	ID                string     `json:"id" db:"id"`
	Name              string     `json:"name" db:"name"`
	Email             string     `json:"email" db:"email"`
	Role              Role       `json:"role" db:"role"`
	Status            UserStatus `json:"status" db:"status"`
	ContactNo         *string    `json:"contactNo,omitempty" db:"contact_no"`
	PasswordChangedAt *time.Time `json:"-" db:"password_changed_at"`
	IsDeleted         bool       `json:"isDeleted" db:"is_deleted"`
	CreatedAt         time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time  `json:"updatedAt" db:"updated_at"`
}

// Summary is the public projection of a user embedded in agreement and payment responses.
type Summary struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	ContactNo *string `json:"contactNo,omitempty"`
}

// Summary returns the public projection of u.
func (u User) Summary() Summary {
	return Summary{ID: u.ID, Name: u.Name, Email: u.Email, ContactNo: u.ContactNo}
}
