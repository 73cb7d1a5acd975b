package infra

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var seedSeq atomic.Int64

// SeedUser inserts an active user with a unique email and returns its id and email.
func SeedUser(ctx context.Context, pool *pgxpool.Pool, role string) (string, string, error) {
	email := fmt.Sprintf("%s-%d-%d@example.com", role, time.Now().UnixNano(), seedSeq.Add(1))
	var id string
	err := pool.QueryRow(ctx, `
INSERT INTO users (name, email, role)
VALUES ($1, $2, $3::user_role)
RETURNING id::text`, "Test "+role, email, role).Scan(&id)
	if err != nil {
		return "", "", fmt.Errorf("seed user: %w", err)
	}
	return id, email, nil
}

// SeedRental inserts a vacant rental owned by landlordID and returns its id.
func SeedRental(ctx context.Context, pool *pgxpool.Pool, landlordID, location string, rent int) (string, error) {
	var id string
	err := pool.QueryRow(ctx, `
INSERT INTO rentals (location, description, rent, bedrooms, images, landlord_id)
VALUES ($1, $2, $3, 2, ARRAY['img/1.jpg'], $4)
RETURNING id::text`, location, "Seeded listing in "+location, rent, landlordID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("seed rental: %w", err)
	}
	return id, nil
}

// SeedAgreement inserts an agreement in the given status and returns its id. It does not
// touch rentals.is_rented.
func SeedAgreement(ctx context.Context, pool *pgxpool.Pool, rentalID, landlordID, tenantID, status string) (string, error) {
	var id string
	err := pool.QueryRow(ctx, `
INSERT INTO agreements (rental_id, landlord_id, tenant_id, status, move_in_date, duration_months)
VALUES ($1, $2, $3, $4::agreement_status, CURRENT_DATE + 30, 12)
RETURNING id::text`, rentalID, landlordID, tenantID, status).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("seed agreement: %w", err)
	}
	return id, nil
}
