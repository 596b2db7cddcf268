// Package initiator is the buyer-side half of checkout: it asks the payment
// service to sign an order, hands the cart over to a recovery snapshot and
// sends the buyer to the gateway. It guarantees at most one initiation in
// flight and a bounded number of attempts per checkout.
package initiator

import (
	"errors"
	"fmt"
)

// State of the initiator as shown to the buyer.
type State string

const (
	StateIdle        State = "idle"
	StateInitiating  State = "initiating"
	StateRedirecting State = "redirecting"
	StateError       State = "error"
)

// Source is the checkout entry point the buyer came from.
type Source string

const (
	SourceCart   Source = "cart"
	SourceBuyNow Source = "buy_now"
)

// MaxAttempts bounds the initiation attempts of one checkout, the first one
// included. After the last failure the buyer is sent back to checkout.
const MaxAttempts = 3

var (
	// ErrInFlight is returned when an initiation is already running.
	ErrInFlight = errors.New("initiator: payment initiation already in progress")
	// ErrRetriesExhausted wraps the last failure once MaxAttempts is reached.
	ErrRetriesExhausted = errors.New("initiator: too many failed attempts")
	// ErrNothingToRetry is returned by Retry outside the error state.
	ErrNothingToRetry = errors.New("initiator: no failed attempt to retry")
)

// Error codes the payment service answers with.
const (
	CodeValidation  = "validation"
	CodeCooldown    = "cooldown"
	CodeAlreadyPaid = "already_paid"
	CodeOrderClosed = "order_closed"
	CodeInternal    = "internal"
)

// ServiceError is a rejection reported by the payment service.
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("payment service rejected the request (%d %s): %s", e.StatusCode, e.Code, e.Message)
}

// TransportError is a failure to get a usable answer: network errors,
// non-2xx responses without an error body and malformed bodies.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("payment service transport error (HTTP %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("payment service transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Snapshot is what a UI renders.
type Snapshot struct {
	State    State
	OrderID  string
	Attempts int
	Err      error
}

// Message is the human-readable text for the current error, if any.
func (s Snapshot) Message() string {
	if s.Err == nil {
		return ""
	}
	var se *ServiceError
	if errors.As(s.Err, &se) && se.Message != "" {
		return se.Message
	}
	if errors.Is(s.Err, ErrRetriesExhausted) {
		return "We could not start your payment. Please review your order and try again."
	}
	return "We could not reach the payment service. Please try again."
}
