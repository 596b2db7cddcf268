package memory

import (
	"context"
	"sync"

	"github.com/jcmexdev/storefront-payments/internal/payment-service/core/domain/entity"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/core/ports"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/paymentlog"
)

// Ensure Ledger implements the port at compile time.
var _ ports.Ledger = (*Ledger)(nil)

// Ledger is an in-memory ports.Ledger for local development and tests. It
// follows the same upsert rules as the SQLite store. Nothing survives a restart.
type Ledger struct {
	mu     sync.RWMutex
	orders map[string]*entity.Order
}

func NewLedger() *Ledger {
	return &Ledger{orders: make(map[string]*entity.Order)}
}

func (l *Ledger) Upsert(_ context.Context, order *entity.Order) (*entity.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.orders[order.OrderID]
	if !ok {
		l.orders[order.OrderID] = clone(order)
		return clone(order), nil
	}

	if current.PaymentStatus == entity.StatusPending && order.PaymentStatus.IsTerminal() {
		current.PaymentStatus = order.PaymentStatus
		current.GatewayTransactionID = order.GatewayTransactionID
		current.UpdatedAt = order.UpdatedAt
	}
	return clone(current), nil
}

func (l *Ledger) Get(_ context.Context, orderID string) (*entity.Order, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	o, ok := l.orders[orderID]
	if !ok {
		return nil, ports.ErrOrderNotFound
	}
	return clone(o), nil
}

func clone(o *entity.Order) *entity.Order {
	c := *o
	c.Cart = append([]entity.LineItem(nil), o.Cart...)
	return &c
}

// EventLog is an in-memory paymentlog.Repository.
type EventLog struct {
	mu     sync.Mutex
	events []paymentlog.Event
}

var _ paymentlog.Repository = (*EventLog)(nil)

func NewEventLog() *EventLog {
	return &EventLog{}
}

func (e *EventLog) Save(_ context.Context, event *paymentlog.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, *event)
	return nil
}

func (e *EventLog) List(_ context.Context, orderID string) ([]paymentlog.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []paymentlog.Event
	for _, ev := range e.events {
		if ev.OrderID == orderID {
			out = append(out, ev)
		}
	}
	return out, nil
}
