package agreement

import (
	"time"

	"github.com/shopspring/decimal"

	"rentflow/identity"
	"rentflow/rental"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Decision reports whether s is a status a landlord may move a pending agreement to.
func (s Status) Decision() bool {
	return s == StatusApproved || s == StatusRejected
}

// Agreement mirrors the agreements table. The rental columns are filled only by list
// queries, the resolved details only by single-agreement operations.
type Agreement struct {
	ID                string    `json:"id" db:"id"`
	RentalID          string    `json:"rental,omitempty" db:"rental_id"`
	LandlordID        string    `json:"landlord,omitempty" db:"landlord_id"`
	TenantID          string    `json:"tenant,omitempty" db:"tenant_id"`
	LandlordContactNo *string   `json:"landlordContactNo,omitempty" db:"landlord_contact_no"`
	Status            Status    `json:"status,omitempty" db:"status"`
	MoveInDate        time.Time `json:"moveInDate" db:"move_in_date"`
	DurationMonths    int       `json:"durationMonth" db:"duration_months"`
	IsDeleted         bool      `json:"isDeleted" db:"is_deleted"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time `json:"updatedAt" db:"updated_at"`

	RentalLocation    *string          `json:"rentalLocation,omitempty" db:"rental_location"`
	RentalDescription *string          `json:"rentalDescription,omitempty" db:"rental_description"`
	RentalRent        *decimal.Decimal `json:"rentalRent,omitempty" db:"rental_rent"`

	Rental   *rental.Rental    `json:"rentalDetails,omitempty" db:"-"`
	Landlord *identity.Summary `json:"landlordDetails,omitempty" db:"-"`
	Tenant   *identity.Summary `json:"tenantDetails,omitempty" db:"-"`
}

// RequestInput is what a tenant supplies when asking for an agreement.
type RequestInput struct {
	RentalID       string
	MoveInDate     time.Time
	DurationMonths int
}

// NewAgreement is the row written by RequestAgreement.
type NewAgreement struct {
	RentalID       string
	LandlordID     string
	TenantID       string
	MoveInDate     time.Time
	DurationMonths int
}
