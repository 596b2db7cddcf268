package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/storefront-payments/internal/gateway"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/core/domain/entity"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/core/ports"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/paymentlog"
	"github.com/jcmexdev/storefront-payments/internal/pkg/metrics"
)

// CallbackResult tells the webhook where to send the buyer. OrderID, Amount
// and GatewayStatus are echoed from the callback for display only.
type CallbackResult struct {
	OrderID       string
	Amount        string
	GatewayStatus string

	// Status is the order's payment status after the callback was applied.
	// It is completed only when the ledger holds completed.
	Status   entity.PaymentStatus
	Verified bool
}

// Succeeded reports whether the buyer should land on the success page.
func (r CallbackResult) Succeeded() bool {
	return r.Status == entity.StatusCompleted
}

// MapOutcome is the trust rule of the webhook: only a verified digest with an
// explicit success status completes an order; everything else fails it.
func MapOutcome(verified bool, gatewayStatus string) entity.PaymentStatus {
	if verified && gatewayStatus == gateway.StatusSuccess {
		return entity.StatusCompleted
	}
	return entity.StatusFailed
}

// HandleCallback verifies a gateway callback and settles the order. It never
// fails: any problem yields a failed result.
func (s *Service) HandleCallback(ctx context.Context, fields gateway.Fields) CallbackResult {
	res := CallbackResult{
		OrderID:       strings.TrimSpace(fields[gateway.FieldTxnID]),
		Amount:        strings.TrimSpace(fields[gateway.FieldAmount]),
		GatewayStatus: strings.ToLower(strings.TrimSpace(fields[gateway.FieldStatus])),
		Status:        entity.StatusFailed,
	}

	ctx, span := s.tracer.Start(ctx, "payment.callback", trace.WithAttributes(
		attribute.String("order.id", res.OrderID),
		attribute.String("gateway.status", res.GatewayStatus),
	))
	defer span.End()

	if res.OrderID == "" {
		metrics.PaymentCallbacks.WithLabelValues("malformed").Inc()
		slog.WarnContext(ctx, "gateway callback without order id")
		return res
	}

	res.Verified = s.signer.VerifyResponse(gateway.ResponseParamsFromFields(fields), fields[gateway.FieldHash])
	span.SetAttributes(attribute.Bool("gateway.verified", res.Verified))

	outcome := MapOutcome(res.Verified, res.GatewayStatus)
	detail := "gateway status " + res.GatewayStatus
	if msg := fields[gateway.FieldErrorMessage]; msg != "" && outcome == entity.StatusFailed {
		detail += ": " + msg
	}

	existing, err := s.ledger.Get(ctx, res.OrderID)
	switch {
	case errors.Is(err, ports.ErrOrderNotFound):
		existing = nil
	case err != nil:
		metrics.PaymentCallbacks.WithLabelValues("ledger_error").Inc()
		slog.ErrorContext(ctx, "ledger read failed during callback", "order_id", res.OrderID, "error", err)
		return res
	}

	if existing != nil && outcome == entity.StatusCompleted {
		paid, perr := gateway.ParseAmount(res.Amount)
		if perr != nil || !paid.Equal(existing.TotalAmount) {
			slog.WarnContext(ctx, "verified callback amount differs from order total",
				"order_id", res.OrderID,
				"callback_amount", res.Amount,
				"order_amount", gateway.FormatAmount(existing.TotalAmount),
			)
			outcome = entity.StatusFailed
			detail = "amount mismatch"
		}
	}

	var update *entity.Order
	switch {
	case existing != nil:
		update = existing.Transition(outcome, fields[gateway.FieldGatewayTxnID], s.now())
	case res.Verified:
		update = s.reconciliationOrder(fields, outcome)
		slog.WarnContext(ctx, "verified callback for unknown order, recording reconciliation row", "order_id", res.OrderID)
	default:
		metrics.PaymentCallbacks.WithLabelValues("unverified").Inc()
		slog.WarnContext(ctx, "unverified callback for unknown order ignored", "order_id", res.OrderID)
		return res
	}

	stored, err := s.ledger.Upsert(ctx, update)
	if err != nil {
		metrics.PaymentCallbacks.WithLabelValues("ledger_error").Inc()
		slog.ErrorContext(ctx, "ledger write failed during callback", "order_id", res.OrderID, "error", err)
		return res
	}
	res.Status = stored.PaymentStatus

	kind := paymentlog.KindCallbackVerified
	result := "verified"
	switch {
	case existing != nil && existing.PaymentStatus.IsTerminal():
		kind, result = paymentlog.KindCallbackDuplicate, "duplicate"
	case !res.Verified:
		kind, result = paymentlog.KindCallbackUnverified, "unverified"
	}
	metrics.PaymentCallbacks.WithLabelValues(result).Inc()
	s.record(ctx, res.OrderID, kind, string(stored.PaymentStatus), detail)

	slog.InfoContext(ctx, "gateway callback applied",
		"order_id", res.OrderID,
		"gateway_status", res.GatewayStatus,
		"verified", res.Verified,
		"outcome", outcome,
		"stored_status", stored.PaymentStatus,
	)
	return res
}

// reconciliationOrder records a verified payment for an order id this ledger
// never saw, using what the callback carries.
func (s *Service) reconciliationOrder(fields gateway.Fields, status entity.PaymentStatus) *entity.Order {
	amount, err := gateway.ParseAmount(fields[gateway.FieldAmount])
	if err != nil {
		status = entity.StatusFailed
	}

	now := s.now()
	o := entity.NewPendingOrder(
		fields[gateway.FieldTxnID],
		entity.CustomerSnapshot{
			FirstName: fields[gateway.FieldFirstName],
			LastName:  fields[gateway.FieldLastName],
			Email:     fields[gateway.FieldEmail],
			Phone:     fields[gateway.FieldPhone],
		},
		nil,
		amount,
		decimal.Zero,
		s.settings.PaymentMethod,
		now,
	)
	return o.Transition(status, fields[gateway.FieldGatewayTxnID], now)
}
