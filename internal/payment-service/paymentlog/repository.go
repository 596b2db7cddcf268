package paymentlog

import "context"

// Repository persists payment events. Save appends; nothing is ever updated.
type Repository interface {
	Save(ctx context.Context, event *Event) error
	List(ctx context.Context, orderID string) ([]Event, error)
}
