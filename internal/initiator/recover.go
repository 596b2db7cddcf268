package initiator

import (
	"context"
	"fmt"
)

// RecoverFailedPayment puts the cart of a failed payment back. orderID is the
// order named on the failure page; a snapshot for another order is left
// alone. The snapshot is removed once the cart is restored.
func RecoverFailedPayment(ctx context.Context, store RecoveryStore, cart Cart, orderID string) (*PendingPayment, error) {
	p, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if orderID != "" && p.OrderID != orderID {
		return nil, fmt.Errorf("%w for order %s (saved order is %s)", ErrNoRecovery, orderID, p.OrderID)
	}

	if err := cart.Restore(ctx, p.Items); err != nil {
		return nil, fmt.Errorf("initiator: restore cart for %s: %w", p.OrderID, err)
	}
	if err := store.Clear(ctx); err != nil {
		return nil, err
	}
	return p, nil
}
