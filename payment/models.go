package payment

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"rentflow/agreement"
	"rentflow/identity"
	"rentflow/rental"
)

type Status string

const (
	StatusPending Status = "Pending"
	StatusPaid    Status = "Paid"
	StatusFailed  Status = "Failed"
)

// Valid reports whether s is one of the stored payment statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusFailed:
		return true
	default:
		return false
	}
}

type Method string

const (
	MethodCash   Method = "Cash"
	MethodCard   Method = "Card"
	MethodOnline Method = "Online"
)

// Payment mirrors the payments table. Rental columns are filled by list queries,
// resolved details by GetPaymentDetails.
type Payment struct {
	ID              string          `json:"id" db:"id"`
	AgreementID     string          `json:"agreement,omitempty" db:"agreement_id"`
	RentalID        string          `json:"rental,omitempty" db:"rental_id"`
	LandlordID      string          `json:"landlord,omitempty" db:"landlord_id"`
	TenantID        string          `json:"tenant,omitempty" db:"tenant_id"`
	Months          []string        `json:"months,omitempty" db:"months"`
	Amount          decimal.Decimal `json:"amount" db:"amount"`
	Status          Status          `json:"status,omitempty" db:"status"`
	PaymentMethod   Method          `json:"paymentMethod,omitempty" db:"payment_method"`
	TransactionID   string          `json:"transactionId,omitempty" db:"transaction_id"`
	GatewayResponse json.RawMessage `json:"gatewayResponse,omitempty" db:"gateway_response"`
	IsDeleted       bool            `json:"isDeleted" db:"is_deleted"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`

	RentalLocation    *string `json:"rentalLocation,omitempty" db:"rental_location"`
	RentalDescription *string `json:"rentalDescription,omitempty" db:"rental_description"`

	Agreement *agreement.Agreement `json:"agreementDetails,omitempty" db:"-"`
	Rental    *rental.Rental       `json:"rentalDetails,omitempty" db:"-"`
	Landlord  *identity.Summary    `json:"landlordDetails,omitempty" db:"-"`
	Tenant    *identity.Summary    `json:"tenantDetails,omitempty" db:"-"`
}

// CreateInput is what a tenant supplies to pay rent.
type CreateInput struct {
	AgreementID string
	Months      []string
}

// Checkout is returned by CreatePayment.
type Checkout struct {
	PaymentURL string `json:"paymentUrl"`
}

// NewPayment is the row written by CreatePayment.
type NewPayment struct {
	AgreementID   string
	RentalID      string
	LandlordID    string
	TenantID      string
	Months        []string
	Amount        decimal.Decimal
	TransactionID string
}
