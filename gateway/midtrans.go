package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"
)

// SnapCreator is the subset of snap.Client used to open a checkout.
type SnapCreator interface {
	CreateTransaction(req *snap.Request) (*snap.Response, *midtrans.Error)
}

// StatusChecker is the subset of coreapi.Client used to query a transaction.
type StatusChecker interface {
	CheckTransaction(param string) (*coreapi.TransactionStatusResponse, *midtrans.Error)
}

// Midtrans adapts Midtrans Snap checkout and the Core API status endpoint.
type Midtrans struct {
	snap   SnapCreator
	status StatusChecker
}

// NewMidtrans builds clients for the sandbox or production environment.
func NewMidtrans(serverKey string, live bool) *Midtrans {
	env := midtrans.Sandbox
	if live {
		env = midtrans.Production
	}
	var s snap.Client
	s.New(serverKey, env)
	var c coreapi.Client
	c.New(serverKey, env)
	return &Midtrans{snap: &s, status: &c}
}

// NewMidtransWith wires explicit clients, mostly for tests.
func NewMidtransWith(s SnapCreator, c StatusChecker) *Midtrans {
	return &Midtrans{snap: s, status: c}
}

// Initialize creates a Snap transaction keyed by transactionID and returns its redirect URL.
// Midtrans charges whole rupiah, so the fractional part is dropped.
func (m *Midtrans) Initialize(ctx context.Context, amount decimal.Decimal, transactionID string) (string, error) {
	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  transactionID,
			GrossAmt: amount.IntPart(),
		},
		Items: &[]midtrans.ItemDetails{{
			ID:       transactionID,
			Price:    amount.IntPart(),
			Qty:      1,
			Name:     "Rent",
			Category: "Rental",
		}},
	}

	resp, err := callCtx(ctx, func() (*snap.Response, *midtrans.Error) {
		return m.snap.CreateTransaction(req)
	})
	if err != nil {
		return "", fmt.Errorf("gateway: midtrans create transaction: %w", err)
	}
	if resp.RedirectURL == "" {
		return "", ErrNoRedirect
	}
	return resp.RedirectURL, nil
}

// Query maps the Midtrans transaction status onto the normalized Status set.
func (m *Midtrans) Query(ctx context.Context, transactionID string) (Result, error) {
	resp, err := callCtx(ctx, func() (*coreapi.TransactionStatusResponse, *midtrans.Error) {
		return m.status.CheckTransaction(transactionID)
	})
	if err != nil {
		var merr *midtrans.Error
		if errors.As(err, &merr) && merr.StatusCode == http.StatusNotFound {
			raw, _ := json.Marshal(map[string]any{"status_code": merr.StatusCode, "status_message": merr.Message})
			return Result{Status: StatusInvalid, TransactionID: transactionID, Raw: raw}, nil
		}
		return Result{}, fmt.Errorf("gateway: midtrans check transaction: %w", err)
	}

	raw, jerr := json.Marshal(resp)
	if jerr != nil {
		return Result{}, fmt.Errorf("gateway: encode midtrans status: %w", jerr)
	}
	tranID := resp.OrderID
	if tranID == "" {
		tranID = transactionID
	}
	return Result{Status: midtransStatus(resp.TransactionStatus, resp.FraudStatus), TransactionID: tranID, Raw: raw}, nil
}

func midtransStatus(transaction, fraud string) Status {
	switch transaction {
	case "settlement":
		return StatusValid
	case "capture":
		if fraud == "" || fraud == "accept" {
			return StatusValid
		}
		return StatusPending
	case "pending", "authorize":
		return StatusPending
	case "deny", "failure", "refund", "partial_refund":
		return StatusFailed
	case "cancel":
		return StatusCancelled
	case "expire":
		return StatusExpired
	default:
		return StatusInvalid
	}
}

// callCtx runs a blocking SDK call and abandons it once ctx is done.
// The midtrans SDK accepts no context, so the goroutine may outlive the caller.
func callCtx[T any](ctx context.Context, fn func() (T, *midtrans.Error)) (T, error) {
	type outcome struct {
		v   T
		err *midtrans.Error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := fn()
		ch <- outcome{v: v, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case o := <-ch:
		if o.err != nil {
			return o.v, o.err
		}
		return o.v, nil
	}
}
