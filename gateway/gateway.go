// Package gateway adapts external payment gateways to the two calls the payment
// workflow needs: start a hosted checkout and query a transaction's outcome.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"rentflow/metrics"
	"rentflow/tracing"
)

var (
	// ErrNoRedirect signals the gateway accepted the request but returned no checkout URL.
	ErrNoRedirect = errors.New("gateway: no redirect url")
)

// Status is a gateway-reported transaction outcome, normalized across providers.
type Status string

const (
	StatusValid       Status = "VALID"
	StatusValidated   Status = "VALIDATED"
	StatusInvalid     Status = "INVALID_TRANSACTION"
	StatusPending     Status = "PENDING"
	StatusFailed      Status = "FAILED"
	StatusCancelled   Status = "CANCELLED"
	StatusExpired     Status = "EXPIRED"
	StatusUnattempted Status = "UNATTEMPTED"
)

// Confirmed reports whether the gateway settled the transaction.
func (s Status) Confirmed() bool {
	return s == StatusValid || s == StatusValidated
}

// Result is the authoritative outcome of one transaction. Raw is persisted verbatim.
type Result struct {
	Status        Status
	TransactionID string
	Raw           json.RawMessage
}

// Gateway is implemented by every provider adapter.
type Gateway interface {
	Initialize(ctx context.Context, amount decimal.Decimal, transactionID string) (string, error)
	Query(ctx context.Context, transactionID string) (Result, error)
}

// Instrument wraps g with tracing spans and latency metrics labelled by provider.
func Instrument(g Gateway, provider string) Gateway {
	return &instrumented{next: g, provider: provider}
}

type instrumented struct {
	next     Gateway
	provider string
}

func (i *instrumented) Initialize(ctx context.Context, amount decimal.Decimal, transactionID string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "gateway.Initialize",
		attribute.String("gateway.provider", i.provider),
		attribute.String("payment.transaction_id", transactionID))
	start := time.Now()
	url, err := i.next.Initialize(ctx, amount, transactionID)
	observe(i.provider, "initialize", start, err)
	tracing.End(span, err)
	return url, err
}

func (i *instrumented) Query(ctx context.Context, transactionID string) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, "gateway.Query",
		attribute.String("gateway.provider", i.provider),
		attribute.String("payment.transaction_id", transactionID))
	start := time.Now()
	res, err := i.next.Query(ctx, transactionID)
	observe(i.provider, "query", start, err)
	if err == nil {
		span.SetAttributes(attribute.String("gateway.status", string(res.Status)))
	}
	tracing.End(span, err)
	return res, err
}

func observe(provider, operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.GatewayRequestDuration.WithLabelValues(provider, operation, result).Observe(time.Since(start).Seconds())
}
