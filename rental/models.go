package rental

import (
	"time"

	"github.com/shopspring/decimal"

	"rentflow/identity"
)

// Rental mirrors the rentals table. Projected list queries may leave fields zero.
type Rental struct {
	ID          string          `json:"id" db:"id"`
	Location    string          `json:"location,omitempty" db:"location"`
	Description string          `json:"description,omitempty" db:"description"`
	Rent        decimal.Decimal `json:"rent" db:"rent"`
	Bedrooms    int             `json:"bedrooms" db:"bedrooms"`
	Images      []string        `json:"images,omitempty" db:"images"`
	LandlordID  string          `json:"landlord,omitempty" db:"landlord_id"`
	IsRented    bool            `json:"isRented" db:"is_rented"`
	IsDeleted   bool            `json:"isDeleted" db:"is_deleted"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`

	Landlord *identity.Summary `json:"landlordDetails,omitempty" db:"-"`
}

// CreateInput carries the listing fields supplied by a landlord.
type CreateInput struct {
	Location    string
	Description string
	Rent        decimal.Decimal
	Bedrooms    int
	Images      []string
}

// UpdateInput is a partial update; nil fields are left unchanged and Images are appended.
type UpdateInput struct {
	Location    *string
	Description *string
	Rent        *decimal.Decimal
	Bedrooms    *int
	Images      []string
}

// GetOptions tunes single-row reads.
type GetOptions struct {
	// IncludeDeleted returns soft-deleted rows, for workflow checks and audit lookups.
	IncludeDeleted bool
}
