package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jcmexdev/storefront-payments/internal/pkg/telemetry"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "checkout",
		Short:   "Drive a storefront checkout against the payment service",
		Version: Version,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level, _ := cmd.Flags().GetString("log-level")
			telemetry.InitLogger("checkout-cli", "local", level)
		},
	}

	rootCmd.PersistentFlags().String("service", envOr("PAYMENT_SERVICE_URL", "http://localhost:8080"), "Payment service base URL")
	rootCmd.PersistentFlags().String("session", ".checkout", "Session directory holding the pending-payment snapshot")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(payCmd())
	rootCmd.AddCommand(recoverCmd())
	rootCmd.AddCommand(statusCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
