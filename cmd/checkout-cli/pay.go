package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jcmexdev/storefront-payments/internal/gateway"
	"github.com/jcmexdev/storefront-payments/internal/initiator"
)

func payCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Pay for the cart in a cart file",
		Long: `Prices the cart, asks the payment service to sign the order and hands
the buyer over to the gateway. By default the auto-submitting gateway page is
written to --out; with --follow the page is submitted directly and the
landing page is printed.

Failed attempts are retried up to 3 times with the same order id.`,
		RunE: runPay,
	}

	cmd.Flags().StringP("cart", "c", "cart.yaml", "Cart file (YAML)")
	cmd.Flags().StringP("out", "o", "payment.html", "Where to write the gateway page")
	cmd.Flags().Bool("follow", false, "Submit the gateway form and follow it to the landing page")
	cmd.Flags().Duration("retry-delay", 4*time.Second, "Wait between attempts")

	return cmd
}

func runPay(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	service, _ := cmd.Flags().GetString("service")
	session, _ := cmd.Flags().GetString("session")
	cartPath, _ := cmd.Flags().GetString("cart")
	outPath, _ := cmd.Flags().GetString("out")
	follow, _ := cmd.Flags().GetBool("follow")
	delay, _ := cmd.Flags().GetDuration("retry-delay")

	file, err := initiator.LoadCartFile(cartPath)
	if err != nil {
		return err
	}
	items, err := file.LineItems()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return errors.New("the cart is empty")
	}
	checkout := initiator.NewCheckout(file.CustomerSnapshot(), items)

	fmt.Fprintf(cmd.OutOrStdout(), "Subtotal %s  Taxes %s  Total %s\n",
		gateway.FormatAmount(checkout.SubTotal),
		gateway.FormatAmount(checkout.Taxes),
		gateway.FormatAmount(checkout.Total),
	)

	var nav initiator.Navigator = initiator.NewPageNavigator(outPath, cmd.OutOrStdout())
	browser := initiator.NewBrowserNavigator(nil)
	if follow {
		nav = browser
	}

	in := initiator.New(
		initiator.NewClient(service, nil),
		initiator.NewFileCart(cartPath),
		initiator.NewFileRecovery(session),
		nav,
		file.Source,
		initiator.WithListener(func(s initiator.Snapshot) {
			switch s.State {
			case initiator.StateInitiating:
				fmt.Fprintf(cmd.ErrOrStderr(), "Starting payment for %s (attempt %d of %d)...\n", s.OrderID, s.Attempts, initiator.MaxAttempts)
			case initiator.StateError:
				fmt.Fprintf(cmd.ErrOrStderr(), "%s\n", s.Message())
			}
		}),
	)

	err = in.Initiate(ctx, checkout)
	for err != nil && in.Snapshot().State == initiator.StateError {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		err = in.Retry(ctx)
	}
	if err != nil {
		return err
	}

	if follow {
		if landing := browser.Landing(); landing != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Landed on %s\n", landing)
		}
	}
	return nil
}

// withTimeout bounds commands that only talk to the service.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 30*time.Second)
}
