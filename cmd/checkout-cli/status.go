package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/jcmexdev/storefront-payments/internal/initiator"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [order-id]",
		Short: "Show an order as recorded by the payment service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout(cmd.Context())
			defer cancel()

			service, _ := cmd.Flags().GetString("service")
			order, err := initiator.NewClient(service, nil).OrderStatus(ctx, args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(order)
		},
	}
}
