package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"rentflow/apperr"
	"rentflow/gateway"
	"rentflow/identity"
	"rentflow/logging"
	"rentflow/query"
	"rentflow/test/infra"
)

func TestPaymentWorkflow_Integration(t *testing.T) {
	pool := infra.OpenTestDB(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	landlordID, _, err := infra.SeedUser(ctx, pool, "landlord")
	require.NoError(t, err)
	tenantID, tenantEmail, err := infra.SeedUser(ctx, pool, "tenant")
	require.NoError(t, err)
	rentalID, err := infra.SeedRental(ctx, pool, landlordID, "Bashundhara", 5000)
	require.NoError(t, err)
	agreementID, err := infra.SeedAgreement(ctx, pool, rentalID, landlordID, tenantID, "approved")
	require.NoError(t, err)

	gw := &fakeGateway{url: "https://pay.example.com/1", result: gateway.Result{Status: gateway.StatusValid, Raw: json.RawMessage(`{"status":"VALID","val_id":"v1"}`)}}
	txIDs := []string{"111111aaaaaaaaaa", "111111aaaaaaaaaa", "222222bbbbbbbbbb"}
	svc := NewService(pool, Deps{
		Users:          identity.NewRepository(pool),
		Gateway:        gw,
		Logger:         logging.Nop(),
		GatewayTimeout: time.Second,
		NewTransactionID: func() string {
			id := txIDs[0]
			txIDs = txIDs[1:]
			return id
		},
	})
	tenant := identity.Identity{Email: tenantEmail, Role: identity.RoleTenant}

	out, err := svc.CreatePayment(ctx, tenant, CreateInput{AgreementID: agreementID, Months: []string{"Jan", "Jan"}})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/1", out.PaymentURL)

	_, err = svc.CreatePayment(ctx, tenant, CreateInput{AgreementID: agreementID, Months: []string{"Feb"}})
	assert.True(t, apperr.Is(err, http.StatusConflict), "reused transaction id: %v", err)

	repo := NewRepository()
	stored, err := repo.GetByTransaction(ctx, pool, "111111aaaaaaaaaa")
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, StatusPending, stored.Status)
	assert.Equal(t, MethodOnline, stored.PaymentMethod)
	assert.Nil(t, stored.GatewayResponse)

	var g errgroup.Group
	results := make([]error, 2)
	for i := range results {
		g.Go(func() error {
			_, results[i] = svc.Reconcile(ctx, tenant, "111111aaaaaaaaaa")
			return nil
		})
	}
	require.NoError(t, g.Wait())

	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, apperr.Is(err, http.StatusConflict), "losing reconcile: %v", err)
	}
	assert.Equal(t, 1, wins, "exactly one reconcile must transition the payment")

	settled, err := repo.GetByTransaction(ctx, pool, "111111aaaaaaaaaa")
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, settled.Status)
	assert.JSONEq(t, `{"status":"VALID","val_id":"v1"}`, string(settled.GatewayResponse))

	_, err = repo.Reconcile(ctx, pool, "111111aaaaaaaaaa", StatusFailed, json.RawMessage(`{"status":"FAILED"}`))
	assert.ErrorIs(t, err, ErrNotPending)

	list, meta, err := svc.TenantPayments(ctx, tenant, query.Params{"searchTerm": "bashun", "minPrice": "9000"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, meta.Total)
	assert.Equal(t, settled.ID, list[0].ID)
}
