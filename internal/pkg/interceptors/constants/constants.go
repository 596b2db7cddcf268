package constants

// contextKey is unexported so keys from other packages cannot collide.
type contextKey string

const (
	HeaderXRequestId      = "x-request-id"
	HeaderXIdempotencyKey = "x-idempotency-key"

	// ContextKeyRequestID carries the request id set by the HTTP or gRPC edge.
	ContextKeyRequestID contextKey = HeaderXRequestId
	// ContextKeyIdempotencyKey carries the caller's idempotency key (the order id
	// on payment initiation).
	ContextKeyIdempotencyKey contextKey = HeaderXIdempotencyKey
)
