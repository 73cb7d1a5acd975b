package actors

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"sync"

	"github.com/shopspring/decimal"

	"rentflow/gateway"
)

// Gateway is an in-memory payment gateway. Each transaction is decided once, at
// checkout, so repeated queries agree with each other.
type Gateway struct {
	mu       sync.Mutex
	outcomes map[string]gateway.Status
	// PaidRatio is the share of checkouts that end VALID.
	PaidRatio float64
}

func NewGateway(paidRatio float64) *Gateway {
	return &Gateway{outcomes: make(map[string]gateway.Status), PaidRatio: paidRatio}
}

func (g *Gateway) Initialize(_ context.Context, _ decimal.Decimal, transactionID string) (string, error) {
	status := gateway.StatusFailed
	if rand.Float64() < g.PaidRatio {
		status = gateway.StatusValid
	}
	g.mu.Lock()
	g.outcomes[transactionID] = status
	g.mu.Unlock()
	return "https://gateway.test/checkout/" + transactionID, nil
}

func (g *Gateway) Query(ctx context.Context, transactionID string) (gateway.Result, error) {
	if err := ctx.Err(); err != nil {
		return gateway.Result{}, err
	}
	g.mu.Lock()
	status, ok := g.outcomes[transactionID]
	g.mu.Unlock()
	if !ok {
		status = gateway.StatusInvalid
	}
	raw, err := json.Marshal(map[string]string{"status": string(status), "tran_id": transactionID})
	if err != nil {
		return gateway.Result{}, err
	}
	return gateway.Result{Status: status, TransactionID: transactionID, Raw: raw}, nil
}
