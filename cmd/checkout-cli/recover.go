package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jcmexdev/storefront-payments/internal/initiator"
)

func recoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover [order-id]",
		Short: "Put the cart of a failed payment back",
		Long: `Restores the cart saved when the buyer was sent to the gateway. The
order's status is checked first; a paid order is never restored.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRecover,
	}
	cmd.Flags().StringP("cart", "c", "cart.yaml", "Cart file (YAML) to restore into")
	return cmd
}

func runRecover(cmd *cobra.Command, args []string) error {
	ctx, cancel := withTimeout(cmd.Context())
	defer cancel()

	service, _ := cmd.Flags().GetString("service")
	session, _ := cmd.Flags().GetString("session")
	cartPath, _ := cmd.Flags().GetString("cart")

	store := initiator.NewFileRecovery(session)
	pending, err := store.Load(ctx)
	if errors.Is(err, initiator.ErrNoRecovery) {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing to recover.")
		return nil
	}
	if err != nil {
		return err
	}

	orderID := pending.OrderID
	if len(args) == 1 {
		orderID = args[0]
	}

	order, err := initiator.NewClient(service, nil).OrderStatus(ctx, orderID)
	if err != nil {
		return fmt.Errorf("check order %s: %w", orderID, err)
	}
	if order.PaymentStatus == "completed" {
		fmt.Fprintf(cmd.OutOrStdout(), "Order %s is paid; nothing to recover.\n", orderID)
		return store.Clear(ctx)
	}

	p, err := initiator.RecoverFailedPayment(ctx, store, initiator.NewFileCart(cartPath), orderID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Restored %d item(s) from order %s to %s.\n", len(p.Items), p.OrderID, cartPath)
	return nil
}
