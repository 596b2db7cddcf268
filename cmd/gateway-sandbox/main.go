package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jcmexdev/storefront-payments/internal/gateway"
	"github.com/jcmexdev/storefront-payments/internal/gateway/sandbox"
	"github.com/jcmexdev/storefront-payments/internal/pkg/config"
	"github.com/jcmexdev/storefront-payments/internal/pkg/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadSandbox()
	if err != nil {
		slog.Error("invalid sandbox configuration", "error", err)
		os.Exit(1)
	}
	telemetry.InitLogger("gateway-sandbox", cfg.AppEnv, cfg.LogLevel)

	signer, err := gateway.NewSigner(cfg.MerchantKey, cfg.MerchantSalt)
	if err != nil {
		slog.Error("invalid merchant credentials", "error", err)
		os.Exit(1)
	}
	gw, err := sandbox.New(signer, cfg.Outcome)
	if err != nil {
		slog.Error("invalid sandbox outcome", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           gw.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("gateway sandbox running", "addr", srv.Addr, "default_outcome", cfg.Outcome)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("sandbox server failed", "error", err)
		os.Exit(1)
	}
}
