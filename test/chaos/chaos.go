package chaos

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"rentflow/gateway"
)

// TerminateRandomBackend periodically kills one backend serving the current database,
// so in-flight workflow transactions see dropped connections and must roll back cleanly.
func TerminateRandomBackend(ctx context.Context, pool *pgxpool.Pool, every time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if rand.IntN(5) != 0 {
				continue
			}
			_, _ = pool.Exec(ctx, `SELECT pg_terminate_backend(pid) FROM pg_stat_activity
                                   WHERE datname = current_database() AND pid <> pg_backend_pid()
                                   ORDER BY random() LIMIT 1`)
		}
	}
}

// ErrInjected is returned by FlakyGateway for simulated provider outages.
var ErrInjected = errors.New("chaos: injected gateway failure")

// FlakyGateway wraps a gateway with random failures and latency. Slow calls honour the
// caller's deadline so gateway timeouts are exercised too.
type FlakyGateway struct {
	next gateway.Gateway
	// FailEvery makes roughly one call in FailEvery fail; zero disables failures.
	FailEvery int
	MaxDelay  time.Duration

	Injected atomic.Int64
}

func NewFlakyGateway(next gateway.Gateway, failEvery int, maxDelay time.Duration) *FlakyGateway {
	return &FlakyGateway{next: next, FailEvery: failEvery, MaxDelay: maxDelay}
}

func (f *FlakyGateway) Initialize(ctx context.Context, amount decimal.Decimal, transactionID string) (string, error) {
	if err := f.disturb(ctx); err != nil {
		return "", err
	}
	return f.next.Initialize(ctx, amount, transactionID)
}

func (f *FlakyGateway) Query(ctx context.Context, transactionID string) (gateway.Result, error) {
	if err := f.disturb(ctx); err != nil {
		return gateway.Result{}, err
	}
	return f.next.Query(ctx, transactionID)
}

func (f *FlakyGateway) disturb(ctx context.Context) error {
	if f.MaxDelay > 0 {
		select {
		case <-time.After(time.Duration(rand.Int64N(int64(f.MaxDelay)))):
		case <-ctx.Done():
			f.Injected.Add(1)
			return ctx.Err()
		}
	}
	if f.FailEvery > 0 && rand.IntN(f.FailEvery) == 0 {
		f.Injected.Add(1)
		return ErrInjected
	}
	return nil
}
