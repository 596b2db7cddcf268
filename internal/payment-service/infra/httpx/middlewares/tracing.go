package middlewares

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/storefront-payments/internal/pkg/interceptors/constants"
)

// AttachRequestMetadata stores chi's request id and the caller's idempotency
// key in the context, tags the active span with both and echoes the request
// id back so buyers can quote it to support.
func AttachRequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		idempotencyKey := r.Header.Get(constants.HeaderXIdempotencyKey)

		ctx := context.WithValue(r.Context(), constants.ContextKeyRequestID, requestID)
		ctx = context.WithValue(ctx, constants.ContextKeyIdempotencyKey, idempotencyKey)

		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.String("http.request_id", requestID))
		if idempotencyKey != "" {
			span.SetAttributes(attribute.String("idempotency.key", idempotencyKey))
		}

		if requestID != "" {
			w.Header().Set("X-Request-Id", requestID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
