package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"path"
	"sync/atomic"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"golang.org/x/sync/errgroup"

	"rentflow/agreement"
	"rentflow/apperr"
	"rentflow/identity"
	"rentflow/payment"
	"rentflow/query"
)

// World is the shared cast every actor plays against.
type World struct {
	Agreements *agreement.Service
	Payments   *payment.Service
	Landlord   identity.Identity
	Tenants    []identity.Identity
	RentalIDs  []string
	// Strict fails the actor on infrastructure errors; chaos runs leave it off.
	Strict bool

	Refusals atomic.Int64
	Faults   atomic.Int64
	Settled  atomic.Int64
}

// settle classifies err: workflow refusals are expected under contention, infrastructure
// errors only when chaos is running.
func (w *World) settle(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case httperror.IsHTTPError(err) && apperr.Status(err) < http.StatusInternalServerError:
		w.Refusals.Add(1)
		return nil
	case apperr.Is(err, http.StatusBadGateway):
		// injected gateway faults
		w.Faults.Add(1)
		return nil
	default:
		w.Faults.Add(1)
		if w.Strict {
			return err
		}
		return nil
	}
}

func stopped(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stop:
		return true
	default:
		return false
	}
}

func pause(lo, spread int) {
	time.Sleep(time.Duration(lo+rand.IntN(spread)) * time.Millisecond)
}

// Requester keeps asking for agreements on random rentals as tenant.
func Requester(ctx context.Context, w *World, tenant identity.Identity, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		rentalID := w.RentalIDs[rand.IntN(len(w.RentalIDs))]
		_, err := w.Agreements.RequestAgreement(ctx, tenant, agreement.RequestInput{
			RentalID:       rentalID,
			MoveInDate:     time.Now().AddDate(0, 1, 0),
			DurationMonths: 1 + rand.IntN(12),
		})
		if err := w.settle(ctx, err); err != nil {
			return fmt.Errorf("requester %s: %w", tenant.Email, err)
		}
		pause(10, 20)
	}
	return nil
}

// Decider approves or rejects pending agreements on the landlord's rentals, racing
// other deciders for the same rows.
func Decider(ctx context.Context, w *World, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		pending, _, err := w.Agreements.LandlordAgreements(ctx, w.Landlord, query.Params{"status": "pending", "limit": "5", "sort": "createdAt"})
		if err := w.settle(ctx, err); err != nil {
			return fmt.Errorf("decider list: %w", err)
		}
		for _, a := range pending {
			next := agreement.StatusApproved
			if rand.IntN(10) < 4 {
				next = agreement.StatusRejected
			}
			_, err := w.Agreements.SetAgreementStatus(ctx, w.Landlord, a.ID, next)
			if err := w.settle(ctx, err); err != nil {
				return fmt.Errorf("decider %s %s: %w", next, a.ID, err)
			}
		}
		pause(20, 40)
	}
	return nil
}

var evictable = []string{"approved", "approved", "rejected", "pending"}

// Evictor occasionally deletes an agreement. Deleting an approved one frees its rental
// for new requests; deleting any other one must leave occupancy untouched.
func Evictor(ctx context.Context, w *World, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		pause(150, 200)
		// mostly evict tenants, sometimes clear out requests that never held the rental
		status := evictable[rand.IntN(len(evictable))]
		candidates, _, err := w.Agreements.LandlordAgreements(ctx, w.Landlord, query.Params{"status": status, "limit": "20"})
		if err := w.settle(ctx, err); err != nil {
			return fmt.Errorf("evictor list: %w", err)
		}
		if len(candidates) == 0 {
			continue
		}
		victim := candidates[rand.IntN(len(candidates))]
		err = w.Agreements.DeleteAgreement(ctx, w.Landlord, victim.ID)
		if err := w.settle(ctx, err); err != nil {
			return fmt.Errorf("evictor %s: %w", victim.ID, err)
		}
	}
	return nil
}

// Payer pays for one of the tenant's approved agreements and then reconciles the
// transaction from two goroutines at once. At most one of them may settle it.
func Payer(ctx context.Context, w *World, tenant identity.Identity, stop <-chan struct{}) error {
	months := []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun"}
	for !stopped(ctx, stop) {
		pause(50, 100)
		approved, _, err := w.Agreements.TenantAgreements(ctx, tenant, query.Params{"status": "approved", "limit": "5"})
		if err := w.settle(ctx, err); err != nil {
			return fmt.Errorf("payer list: %w", err)
		}
		if len(approved) == 0 {
			continue
		}
		a := approved[rand.IntN(len(approved))]
		checkout, err := w.Payments.CreatePayment(ctx, tenant, payment.CreateInput{
			AgreementID: a.ID,
			Months:      months[:1+rand.IntN(len(months))],
		})
		if err != nil {
			if err := w.settle(ctx, err); err != nil {
				return fmt.Errorf("payer create: %w", err)
			}
			continue
		}

		transactionID := path.Base(checkout.PaymentURL)
		var wins atomic.Int32
		g, gctx := errgroup.WithContext(ctx)
		for range 2 {
			g.Go(func() error {
				_, err := w.Payments.Reconcile(gctx, tenant, transactionID)
				if err == nil || apperr.Is(err, http.StatusExpectationFailed) {
					wins.Add(1)
					return nil
				}
				return w.settle(gctx, err)
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("payer reconcile %s: %w", transactionID, err)
		}
		if n := wins.Load(); n > 1 {
			return fmt.Errorf("payer: transaction %s settled %d times", transactionID, n)
		}
		w.Settled.Add(int64(wins.Load()))
	}
	return nil
}

// IsStop reports whether err only reflects the run ending.
func IsStop(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
