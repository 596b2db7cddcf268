package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/storefront-payments/internal/payment-service/core/domain/entity"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/core/ports"
)

var _ ports.Ledger = (*Store)(nil)

// The update branch fires only for pending → terminal. Re-inserting a pending
// order is a no-op, and a terminal row ignores everything.
const upsertOrder = `
	INSERT INTO orders
		(order_id, customer_snapshot, cart_snapshot, sub_total, taxes, total_amount,
		 payment_method, payment_status, gateway_transaction_id, created_at, updated_at)
	VALUES
		(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(order_id) DO UPDATE SET
		payment_status         = excluded.payment_status,
		gateway_transaction_id = excluded.gateway_transaction_id,
		updated_at             = excluded.updated_at
	WHERE orders.payment_status = 'pending'
	  AND excluded.payment_status <> 'pending'`

const selectOrder = `
	SELECT order_id, customer_snapshot, cart_snapshot, sub_total, taxes, total_amount,
	       payment_method, payment_status, gateway_transaction_id, created_at, updated_at
	FROM   orders
	WHERE  order_id = ?`

// Upsert writes order and returns the row as stored.
func (s *Store) Upsert(ctx context.Context, order *entity.Order) (*entity.Order, error) {
	customer, err := json.Marshal(order.Customer)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode customer snapshot for %q: %w", order.OrderID, err)
	}
	cart, err := json.Marshal(order.Cart)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode cart snapshot for %q: %w", order.OrderID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: begin upsert for %q: %w", order.OrderID, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, upsertOrder,
		order.OrderID,
		string(customer),
		string(cart),
		order.SubTotal.String(),
		order.Taxes.String(),
		order.TotalAmount.String(),
		order.PaymentMethod,
		string(order.PaymentStatus),
		order.GatewayTransactionID,
		formatTime(order.CreatedAt),
		formatTime(order.UpdatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: upsert order %q: %w", order.OrderID, err)
	}

	stored, err := scanOrder(tx.QueryRowContext(ctx, selectOrder, order.OrderID))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: commit upsert for %q: %w", order.OrderID, err)
	}
	return stored, nil
}

// Get returns ports.ErrOrderNotFound when orderID has no row.
func (s *Store) Get(ctx context.Context, orderID string) (*entity.Order, error) {
	return scanOrder(s.db.QueryRowContext(ctx, selectOrder, orderID))
}

func scanOrder(row *sql.Row) (*entity.Order, error) {
	var (
		o                            entity.Order
		customer, cart               string
		subTotal, taxes, total       string
		status, createdAt, updatedAt string
	)

	err := row.Scan(
		&o.OrderID,
		&customer,
		&cart,
		&subTotal,
		&taxes,
		&total,
		&o.PaymentMethod,
		&status,
		&o.GatewayTransactionID,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ports.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan order: %w", err)
	}

	if err := json.Unmarshal([]byte(customer), &o.Customer); err != nil {
		return nil, fmt.Errorf("sqlite: decode customer snapshot for %q: %w", o.OrderID, err)
	}
	if err := json.Unmarshal([]byte(cart), &o.Cart); err != nil {
		return nil, fmt.Errorf("sqlite: decode cart snapshot for %q: %w", o.OrderID, err)
	}

	if o.SubTotal, err = decimal.NewFromString(subTotal); err != nil {
		return nil, fmt.Errorf("sqlite: parse sub_total for %q: %w", o.OrderID, err)
	}
	if o.Taxes, err = decimal.NewFromString(taxes); err != nil {
		return nil, fmt.Errorf("sqlite: parse taxes for %q: %w", o.OrderID, err)
	}
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("sqlite: parse total_amount for %q: %w", o.OrderID, err)
	}

	o.PaymentStatus = entity.PaymentStatus(status)

	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &o, nil
}
