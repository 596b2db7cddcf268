package initiator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Initiator drives one checkout from "Pay" to the gateway. It is safe to call
// from concurrent event handlers.
type Initiator struct {
	api      PaymentAPI
	cart     Cart
	recovery RecoveryStore
	nav      Navigator
	source   Source

	newOrderID func() string
	now        func() time.Time
	listener   func(Snapshot)

	// inFlight is the synchronous guard: it is set before any other state
	// changes and cleared only when an attempt ends in failure.
	inFlight atomic.Bool

	mu       sync.Mutex
	state    State
	orderID  string
	attempts int
	lastErr  error
	checkout *Checkout
}

type Option func(*Initiator)

// WithListener registers a function called after every state change.
func WithListener(fn func(Snapshot)) Option {
	return func(in *Initiator) { in.listener = fn }
}

// WithOrderIDs replaces the order id generator.
func WithOrderIDs(fn func() string) Option {
	return func(in *Initiator) { in.newOrderID = fn }
}

func New(api PaymentAPI, cart Cart, recovery RecoveryStore, nav Navigator, source Source, opts ...Option) *Initiator {
	if source == "" {
		source = SourceCart
	}
	in := &Initiator{
		api:        api,
		cart:       cart,
		recovery:   recovery,
		nav:        nav,
		source:     source,
		newOrderID: NewOrderID,
		now:        func() time.Time { return time.Now().UTC() },
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Snapshot returns the current state.
func (in *Initiator) Snapshot() Snapshot {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.snapshotLocked()
}

func (in *Initiator) snapshotLocked() Snapshot {
	return Snapshot{State: in.state, OrderID: in.orderID, Attempts: in.attempts, Err: in.lastErr}
}

// Initiate starts payment for checkout. It returns ErrInFlight if another
// attempt is running or the buyer is already being redirected. On success the
// navigator has been sent to the gateway and the state is redirecting.
func (in *Initiator) Initiate(ctx context.Context, checkout Checkout) error {
	if !in.inFlight.CompareAndSwap(false, true) {
		return ErrInFlight
	}

	in.mu.Lock()
	in.checkout = &checkout
	in.mu.Unlock()

	return in.attempt(ctx)
}

// Retry re-runs the last failed attempt with the same order id.
func (in *Initiator) Retry(ctx context.Context) error {
	if !in.inFlight.CompareAndSwap(false, true) {
		return ErrInFlight
	}

	in.mu.Lock()
	retryable := in.state == StateError && in.checkout != nil
	in.mu.Unlock()
	if !retryable {
		in.inFlight.Store(false)
		return ErrNothingToRetry
	}

	return in.attempt(ctx)
}

// GoBack abandons a failed checkout and returns to where the buyer started.
func (in *Initiator) GoBack(ctx context.Context) error {
	if !in.inFlight.CompareAndSwap(false, true) {
		return ErrInFlight
	}
	defer in.inFlight.Store(false)

	in.mu.Lock()
	if in.state != StateError {
		in.mu.Unlock()
		return nil
	}
	in.resetLocked()
	snap := in.snapshotLocked()
	in.mu.Unlock()

	in.notify(snap)
	return in.nav.BackToCheckout(ctx, in.source)
}

// attempt runs with the latch held.
func (in *Initiator) attempt(ctx context.Context) error {
	in.mu.Lock()
	if in.orderID == "" {
		in.orderID = in.newOrderID()
	}
	in.state = StateInitiating
	in.attempts++
	in.lastErr = nil
	orderID, attempt, checkout := in.orderID, in.attempts, *in.checkout
	snap := in.snapshotLocked()
	in.mu.Unlock()
	in.notify(snap)

	slog.InfoContext(ctx, "initiating payment", "order_id", orderID, "attempt", attempt, "source", in.source)

	handoff, err := in.api.Initiate(ctx, orderID, checkout)
	if err == nil {
		err = in.handoff(ctx, orderID, checkout, handoff)
		if err == nil {
			in.mu.Lock()
			in.state = StateRedirecting
			snap := in.snapshotLocked()
			in.mu.Unlock()
			in.notify(snap)
			// The latch stays set: this page is being left.
			return nil
		}
	}

	return in.fail(ctx, orderID, attempt, err)
}

func (in *Initiator) fail(ctx context.Context, orderID string, attempt int, err error) error {
	defer in.inFlight.Store(false)

	var se *ServiceError
	if errors.As(err, &se) && se.Code == CodeAlreadyPaid {
		in.mu.Lock()
		in.resetLocked()
		in.lastErr = err
		snap := in.snapshotLocked()
		in.mu.Unlock()
		in.notify(snap)

		slog.InfoContext(ctx, "order already paid", "order_id", orderID)
		if navErr := in.nav.OrderHistory(ctx, orderID); navErr != nil {
			return errors.Join(err, navErr)
		}
		return err
	}

	if errors.As(err, &se) && se.Code == CodeOrderClosed {
		// The id can never be paid again; the buyer starts over with a new one.
		in.mu.Lock()
		in.resetLocked()
		in.lastErr = err
		snap := in.snapshotLocked()
		in.mu.Unlock()
		in.notify(snap)

		slog.WarnContext(ctx, "order closed by the payment service", "order_id", orderID, "attempt", attempt)
		if navErr := in.nav.BackToCheckout(ctx, in.source); navErr != nil {
			return errors.Join(err, navErr)
		}
		return err
	}

	if attempt >= MaxAttempts {
		err = fmt.Errorf("%w: %w", ErrRetriesExhausted, err)
		in.mu.Lock()
		in.resetLocked()
		in.lastErr = err
		snap := in.snapshotLocked()
		in.mu.Unlock()
		in.notify(snap)

		slog.WarnContext(ctx, "payment initiation gave up", "order_id", orderID, "attempts", attempt, "error", err)
		if navErr := in.nav.BackToCheckout(ctx, in.source); navErr != nil {
			return errors.Join(err, navErr)
		}
		return err
	}

	in.mu.Lock()
	in.state = StateError
	in.lastErr = err
	snap := in.snapshotLocked()
	in.mu.Unlock()
	in.notify(snap)

	slog.WarnContext(ctx, "payment initiation failed", "order_id", orderID, "attempt", attempt, "error", err)
	return err
}

// resetLocked starts a fresh checkout: the next attempt gets a new order id.
func (in *Initiator) resetLocked() {
	in.state = StateIdle
	in.orderID = ""
	in.attempts = 0
	in.lastErr = nil
	in.checkout = nil
}

func (in *Initiator) notify(s Snapshot) {
	if in.listener != nil {
		in.listener(s)
	}
}
