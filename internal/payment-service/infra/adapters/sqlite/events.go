package sqlite

import (
	"context"
	"fmt"

	"github.com/jcmexdev/storefront-payments/internal/payment-service/paymentlog"
)

var _ paymentlog.Repository = (*Store)(nil)

// Save appends a payment event. It is safe to call concurrently.
func (s *Store) Save(ctx context.Context, e *paymentlog.Event) error {
	const q = `
		INSERT INTO payment_events
			(order_id, kind, status, detail, trace_id, span_id, created_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, q,
		e.OrderID,
		string(e.Kind),
		e.Status,
		e.Detail,
		e.TraceID,
		e.SpanID,
		formatTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save payment event for %q: %w", e.OrderID, err)
	}
	return nil
}

// List returns the events of one order, oldest first.
func (s *Store) List(ctx context.Context, orderID string) ([]paymentlog.Event, error) {
	const q = `
		SELECT order_id, kind, status, detail, trace_id, span_id, created_at
		FROM   payment_events
		WHERE  order_id = ?
		ORDER  BY id ASC`

	rows, err := s.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list payment events for %q: %w", orderID, err)
	}
	defer rows.Close()

	var events []paymentlog.Event
	for rows.Next() {
		var (
			e         paymentlog.Event
			kind      string
			createdAt string
		)
		if err := rows.Scan(&e.OrderID, &kind, &e.Status, &e.Detail, &e.TraceID, &e.SpanID, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan payment event: %w", err)
		}
		e.Kind = paymentlog.Kind(kind)
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate payment events for %q: %w", orderID, err)
	}
	return events, nil
}
