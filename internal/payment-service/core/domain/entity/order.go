package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the lifecycle state of an order's payment.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusCompleted PaymentStatus = "completed"
	StatusFailed    PaymentStatus = "failed"
)

// IsTerminal reports whether the status can no longer change.
func (s PaymentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CustomerSnapshot is the buyer's identity and delivery address copied at order time.
type CustomerSnapshot struct {
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Email     string  `json:"email"`
	Phone     string  `json:"phone"`
	Address   Address `json:"address"`
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// LineItem is one cart line copied at order time.
type LineItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	ImageRef  string          `json:"imageRef,omitempty"`
}

// LineTotal is UnitPrice × Quantity.
func (i LineItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order is the aggregate root stored in the ledger. OrderID is the idempotency
// key for the whole payment flow; the snapshots and amounts never change after
// the first write.
type Order struct {
	OrderID              string
	Customer             CustomerSnapshot
	Cart                 []LineItem
	SubTotal             decimal.Decimal
	Taxes                decimal.Decimal
	TotalAmount          decimal.Decimal
	PaymentMethod        string
	PaymentStatus        PaymentStatus
	GatewayTransactionID string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// NewPendingOrder builds a pending order with copies of the snapshots so later
// edits to the caller's slices do not leak into the stored order.
func NewPendingOrder(
	orderID string,
	customer CustomerSnapshot,
	cart []LineItem,
	subTotal, taxes decimal.Decimal,
	method string,
	now time.Time,
) *Order {
	items := make([]LineItem, len(cart))
	copy(items, cart)

	return &Order{
		OrderID:       orderID,
		Customer:      customer,
		Cart:          items,
		SubTotal:      subTotal,
		Taxes:         taxes,
		TotalAmount:   subTotal.Add(taxes),
		PaymentMethod: method,
		PaymentStatus: StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Transition returns a copy of o moved to the given terminal status. The copy is
// what a ledger upsert receives; the ledger itself decides whether it applies.
func (o *Order) Transition(status PaymentStatus, gatewayTxnID string, now time.Time) *Order {
	next := *o
	next.Cart = append([]LineItem(nil), o.Cart...)
	next.PaymentStatus = status
	next.GatewayTransactionID = gatewayTxnID
	next.UpdatedAt = now
	return &next
}
