package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All returns invariant checks; each query selects violating rows and must come back empty.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_occupancy_matches_agreements",
			SQL: `SELECT r.id, r.is_rented, COUNT(a.id) AS approved
                  FROM rentals r
                  LEFT JOIN agreements a
                    ON a.rental_id = r.id AND a.status = 'approved' AND a.is_deleted = false
                  WHERE r.is_deleted = false
                  GROUP BY r.id, r.is_rented
                  HAVING r.is_rented <> (COUNT(a.id) = 1)`,
		},
		{
			Name: "O2_single_approved_agreement",
			SQL: `SELECT rental_id, COUNT(*) FROM agreements
                  WHERE status = 'approved' AND is_deleted = false
                  GROUP BY rental_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O3_duplicate_live_request",
			SQL: `SELECT rental_id, tenant_id, COUNT(*) FROM agreements
                  WHERE is_deleted = false AND status = 'pending'
                  GROUP BY rental_id, tenant_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O4_settled_without_gateway_response",
			SQL:  `SELECT id, status FROM payments WHERE status <> 'Pending' AND gateway_response IS NULL`,
		},
		{
			Name: "O5_amount_matches_rent",
			SQL: `SELECT p.id, p.amount, r.rent, cardinality(p.months)
                  FROM payments p JOIN rentals r ON r.id = p.rental_id
                  WHERE p.amount <> r.rent * cardinality(p.months)`,
		},
		{
			Name: "O6_payment_parties_match_agreement",
			SQL: `SELECT p.id FROM payments p JOIN agreements a ON a.id = p.agreement_id
                  WHERE p.rental_id <> a.rental_id
                     OR p.tenant_id <> a.tenant_id
                     OR p.landlord_id <> a.landlord_id
                     OR a.status <> 'approved'`,
		},
		{
			Name: "O7_online_only",
			SQL:  `SELECT id, payment_method FROM payments WHERE payment_method <> 'Online'`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		if rows.Next() {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
	}
	return "", "", nil
}
