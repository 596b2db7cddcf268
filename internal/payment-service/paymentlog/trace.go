package paymentlog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// TraceInfo holds the OTel identifiers of the span active in a context.
type TraceInfo struct {
	TraceID string
	SpanID  string
}

// ExtractTraceInfo returns empty ids when ctx carries no valid span.
func ExtractTraceInfo(ctx context.Context) TraceInfo {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return TraceInfo{}
	}
	return TraceInfo{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
	}
}

// NewEvent builds an event stamped with the current trace and time.
func NewEvent(ctx context.Context, orderID string, kind Kind, status, detail string) *Event {
	ti := ExtractTraceInfo(ctx)
	return &Event{
		OrderID:   orderID,
		Kind:      kind,
		Status:    status,
		Detail:    detail,
		TraceID:   ti.TraceID,
		SpanID:    ti.SpanID,
		CreatedAt: time.Now().UTC(),
	}
}
