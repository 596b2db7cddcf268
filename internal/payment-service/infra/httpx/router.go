package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/storefront-payments/internal/payment-service/infra/httpx/middlewares"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping() error
}

func NewRouter(handler *Handler, ledger Pinger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachRequestMetadata)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewares.Instrument)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if ledger != nil {
			if err := ledger.Ping(); err != nil {
				writeError(w, http.StatusServiceUnavailable, "ledger_unavailable", "")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/payments/initiate", handler.InitiatePayment)
		r.Post("/payments/callback", handler.PaymentCallback)
		r.Get("/orders/{id}", handler.GetOrder)
		r.Get("/orders/{id}/events", handler.GetOrderEvents)
	})

	return otelhttp.NewHandler(r, "payment-service",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
