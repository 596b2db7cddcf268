// Package paymentlog is the append-only audit trail of an order's payment
// lifecycle. The ledger row only holds the current state; this log records
// every initiation, re-issue, rejection and callback that led there, each
// tagged with the trace that produced it so support staff can jump from an
// order id to the request that touched it.
package paymentlog

import "time"

// Kind names the event recorded.
type Kind string

const (
	KindInitiated          Kind = "INITIATED"
	KindReissued           Kind = "REISSUED"
	KindRejected           Kind = "REJECTED"
	KindCallbackVerified   Kind = "CALLBACK_VERIFIED"
	KindCallbackUnverified Kind = "CALLBACK_UNVERIFIED"
	KindCallbackDuplicate  Kind = "CALLBACK_DUPLICATE"
)

// Event is a single row in the payment_events table.
type Event struct {
	OrderID string
	Kind    Kind

	// Status is the ledger payment status after the event.
	Status string

	// Detail is free text for support: rejection reason, gateway status, etc.
	// Never holds secrets or digests.
	Detail string

	TraceID string
	SpanID  string

	CreatedAt time.Time
}
