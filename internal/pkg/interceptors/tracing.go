package interceptors

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/jcmexdev/storefront-payments/internal/pkg/interceptors/constants"
)

// TraceServerInterceptor copies x-request-id and x-idempotency-key from the
// incoming gRPC metadata into the context and logs the call.
func TraceServerInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		requestID := firstValue(ctx, constants.HeaderXRequestId)
		idempotencyKey := firstValue(ctx, constants.HeaderXIdempotencyKey)

		ctx = context.WithValue(ctx, constants.ContextKeyRequestID, requestID)
		ctx = context.WithValue(ctx, constants.ContextKeyIdempotencyKey, idempotencyKey)

		resp, err := handler(ctx, req)
		slog.DebugContext(ctx, "grpc call",
			"method", info.FullMethod,
			"request_id", requestID,
			"error", err,
		)
		return resp, err
	}
}

func firstValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if vals := md.Get(key); len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// RequestID returns the request id stored by either edge, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(constants.ContextKeyRequestID).(string)
	return id
}
