package initiator

import (
	"context"
	"fmt"

	"github.com/jcmexdev/storefront-payments/internal/coordinator"
	"github.com/jcmexdev/storefront-payments/internal/gateway"
)

// handoff moves the buyer to the gateway: remember the order, take the cart
// over, then navigate. If navigation fails the cart and recovery snapshot are
// put back as they were.
func (in *Initiator) handoff(ctx context.Context, orderID string, co Checkout, h *Handoff) error {
	pending := PendingPayment{
		OrderID:   orderID,
		Source:    in.source,
		Customer:  co.Customer,
		Items:     co.Items,
		Total:     co.Total,
		CreatedAt: in.now(),
	}

	steps := []coordinator.Step{
		coordinator.StepFunc{
			StepName: "save_recovery",
			Do:       func(ctx context.Context) error { return in.recovery.Save(ctx, pending) },
			Undo:     in.recovery.Clear,
		},
		coordinator.StepFunc{
			StepName: "transfer_cart",
			Do:       in.cart.Clear,
			Undo:     func(ctx context.Context) error { return in.cart.Restore(ctx, co.Items) },
		},
		coordinator.StepFunc{
			StepName: "navigate",
			Do: func(ctx context.Context) error {
				return in.nav.Submit(ctx, gateway.Form{Action: h.GatewayURL, Fields: h.FormData})
			},
		},
	}

	if err := coordinator.NewOrchestrator(orderID, steps).Start(ctx); err != nil {
		return fmt.Errorf("initiator: hand off order %s: %w", orderID, err)
	}
	return nil
}
