package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/jcmexdev/storefront-payments/internal/gateway"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/app"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/infra/adapters/sqlite"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/infra/httpx"
	"github.com/jcmexdev/storefront-payments/internal/pkg/cache"
	"github.com/jcmexdev/storefront-payments/internal/pkg/config"
	"github.com/jcmexdev/storefront-payments/internal/pkg/interceptors"
	"github.com/jcmexdev/storefront-payments/internal/pkg/telemetry"
)

const serviceName = "payment-service"

func main() {
	if err := run(); err != nil {
		slog.Error("payment service stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	telemetry.InitLogger(cfg.OTelServiceName, cfg.AppEnv, cfg.LogLevel)

	shutdown, err := telemetry.SetupTracer(ctx, cfg.OTelServiceName, cfg.AppEnv)
	if err != nil {
		return fmt.Errorf("initialise tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown error", "error", err)
		}
	}()

	if err := os.MkdirAll(filepath.Dir(cfg.LedgerPath), 0o750); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}
	store, err := sqlite.Open(cfg.LedgerPath)
	if err != nil {
		return err
	}
	defer store.Close()

	signer, err := gateway.NewSigner(cfg.MerchantKey, cfg.MerchantSalt)
	if err != nil {
		return err
	}

	var cooldown cache.Cache
	if cfg.RedisAddr != "" {
		cooldown = cache.NewRedisCache(cfg.RedisAddr, "payment")
		slog.Info("cooldown cache: redis", "addr", cfg.RedisAddr)
	} else {
		cooldown = cache.NewMemoryCache(cfg.CooldownCapacity, cfg.CooldownWindow, "payment")
		slog.Info("cooldown cache: in-process", "capacity", cfg.CooldownCapacity)
	}

	svc := app.NewService(store, signer, cooldown, store, app.Settings{
		GatewayURL:     cfg.GatewayURL,
		CallbackURL:    cfg.PublicBaseURL + "/api/payments/callback",
		PaymentMethod:  "payu",
		CooldownWindow: cfg.CooldownWindow,
	})

	handler := httpx.NewHandler(svc, store, store, cfg.FrontendBaseURL)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           httpx.NewRouter(handler, store),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(interceptors.TraceServerInterceptor()),
	)
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	grpcAddr := fmt.Sprintf(":%d", cfg.GRPCPort)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", grpcAddr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("payment service HTTP running", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		slog.Info("payment service gRPC health running", "addr", grpcAddr)
		if err := grpcServer.Serve(lis); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		healthSrv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		grpcServer.GracefulStop()
		return err
	})

	return g.Wait()
}
