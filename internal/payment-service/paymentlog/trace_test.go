package paymentlog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestNewEventWithoutSpan(t *testing.T) {
	e := NewEvent(context.Background(), "ORD-1", KindInitiated, "pending", "")

	assert.Equal(t, "ORD-1", e.OrderID)
	assert.Equal(t, KindInitiated, e.Kind)
	assert.Empty(t, e.TraceID)
	assert.False(t, e.CreatedAt.IsZero())
}

func TestNewEventCarriesTrace(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	e := NewEvent(ctx, "ORD-1", KindCallbackVerified, "completed", "success")

	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", e.TraceID)
	assert.Equal(t, "00f067aa0ba902b7", e.SpanID)
}
