package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/storefront-payments/internal/gateway"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/app"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/core/domain/entity"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/core/ports"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/paymentlog"
	"github.com/jcmexdev/storefront-payments/internal/pkg/interceptors/constants"
)

const (
	maxInitiateBody = 64 << 10
	maxCallbackBody = 32 << 10

	successRoute = "/order-success"
	failureRoute = "/payment-failure"
)

// PaymentService is the part of app.Service the HTTP edge calls.
type PaymentService interface {
	Initiate(ctx context.Context, req app.InitiateRequest) (*app.InitiateResult, error)
	HandleCallback(ctx context.Context, fields gateway.Fields) app.CallbackResult
}

// Handler serves payment initiation, the gateway webhook and order reads.
type Handler struct {
	payments PaymentService
	ledger   ports.Ledger
	events   paymentlog.Repository // nil-safe: the events endpoint returns 404

	// frontendBaseURL prefixes the landing routes; empty keeps them relative.
	frontendBaseURL string
}

func NewHandler(payments PaymentService, ledger ports.Ledger, events paymentlog.Repository, frontendBaseURL string) *Handler {
	return &Handler{
		payments:        payments,
		ledger:          ledger,
		events:          events,
		frontendBaseURL: frontendBaseURL,
	}
}

// InitiatePayment validates and signs a checkout and records it as pending.
func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxInitiateBody)

	var req InitiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInitiateError(w, http.StatusBadRequest, string(app.KindValidation), "request body is not valid JSON")
		return
	}

	requestID, _ := r.Context().Value(constants.ContextKeyRequestID).(string)
	idempKey, _ := r.Context().Value(constants.ContextKeyIdempotencyKey).(string)
	if idempKey != "" && idempKey != req.OrderID {
		slog.WarnContext(r.Context(), "idempotency key differs from order id",
			"request_id", requestID, "order_id", req.OrderID)
	}

	slog.InfoContext(r.Context(), "payment initiation requested", "request_id", requestID, "order_id", req.OrderID)

	res, err := h.payments.Initiate(r.Context(), toInitiateRequest(req))
	if err != nil {
		kind := app.KindOf(err)
		msg := "could not start the payment, please try again"
		var appErr *app.Error
		if kind != app.KindInternal && errors.As(err, &appErr) {
			msg = appErr.Message
		}
		writeInitiateError(w, statusForKind(kind), string(kind), msg)
		return
	}

	writeJSON(w, http.StatusOK, InitiatePaymentResponse{
		Success:    true,
		GatewayURL: res.GatewayURL,
		FormData:   res.FormData,
	})
}

// PaymentCallback is the gateway's surl/furl target. It always answers with a
// redirect; anything that goes wrong lands the buyer on the failure page.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	var (
		orderID, amount, status string
		redirected              bool
	)
	defer func() {
		if rec := recover(); rec != nil {
			slog.ErrorContext(r.Context(), "panic in payment callback", "order_id", orderID, "panic", rec)
		}
		if !redirected {
			h.redirect(w, r, false, orderID, amount, status)
		}
	}()

	r.Body = http.MaxBytesReader(w, r.Body, maxCallbackBody)
	if err := r.ParseForm(); err != nil {
		slog.WarnContext(r.Context(), "unreadable gateway callback", "error", err)
		return
	}

	fields := gateway.FieldsFromValues(r.PostForm)
	orderID = fields[gateway.FieldTxnID]
	amount = fields[gateway.FieldAmount]
	status = fields[gateway.FieldStatus]

	// The buyer's browser may disconnect while the gateway redirects it; the
	// ledger write still has to happen.
	res := h.payments.HandleCallback(context.WithoutCancel(r.Context()), fields)

	redirected = true
	h.redirect(w, r, res.Succeeded(), res.OrderID, res.Amount, res.GatewayStatus)
}

// GetOrder returns the ledger row for an order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "order_id_required", "")
		return
	}

	order, err := h.ledger.Get(r.Context(), orderID)
	if errors.Is(err, ports.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "order_not_found", "")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "order lookup failed", "order_id", orderID, "error", err)
		writeError(w, http.StatusInternalServerError, "ledger_error", "")
		return
	}

	writeJSON(w, http.StatusOK, mapOrderToResponse(order))
}

// GetOrderEvents returns the payment audit trail of an order.
func (h *Handler) GetOrderEvents(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if h.events == nil {
		writeError(w, http.StatusNotFound, "events_disabled", "")
		return
	}

	events, err := h.events.List(r.Context(), orderID)
	if err != nil {
		slog.ErrorContext(r.Context(), "payment event lookup failed", "order_id", orderID, "error", err)
		writeError(w, http.StatusInternalServerError, "event_log_error", "")
		return
	}

	out := make([]PaymentEventResponse, len(events))
	for i, e := range events {
		out[i] = PaymentEventResponse{
			Kind:      string(e.Kind),
			Status:    e.Status,
			Detail:    e.Detail,
			TraceID:   e.TraceID,
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, success bool, orderID, amount, status string) {
	route := failureRoute
	if success {
		route = successRoute
	}

	q := url.Values{}
	q.Set("orderId", orderID)
	q.Set("amount", amount)
	q.Set("status", status)

	http.Redirect(w, r, h.frontendBaseURL+route+"?"+q.Encode(), http.StatusFound)
}

func statusForKind(kind app.Kind) int {
	switch kind {
	case app.KindValidation:
		return http.StatusBadRequest
	case app.KindCooldown:
		return http.StatusTooManyRequests
	case app.KindAlreadyPaid, app.KindOrderClosed:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func toInitiateRequest(req InitiatePaymentRequest) app.InitiateRequest {
	out := app.InitiateRequest{
		OrderID:  req.OrderID,
		Amount:   req.Amount,
		SubTotal: req.SubTotal,
		Taxes:    req.Taxes,
	}
	if c := req.CustomerSnapshot; c != nil {
		out.Customer = &entity.CustomerSnapshot{
			FirstName: c.FirstName,
			LastName:  c.LastName,
			Email:     c.Email,
			Phone:     c.Phone,
			Address: entity.Address{
				Line1:      c.Address.Line1,
				Line2:      c.Address.Line2,
				City:       c.Address.City,
				State:      c.Address.State,
				PostalCode: c.Address.PostalCode,
				Country:    c.Address.Country,
			},
		}
	}
	out.Items = make([]entity.LineItem, len(req.CartItems))
	for i, it := range req.CartItems {
		out.Items[i] = entity.LineItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			ImageRef:  it.ImageRef,
		}
	}
	return out
}

func mapOrderToResponse(o *entity.Order) OrderResponse {
	items := make([]OrderItemResponse, len(o.Cart))
	for i, it := range o.Cart {
		items[i] = OrderItemResponse{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: gateway.FormatAmount(it.UnitPrice),
			Quantity:  it.Quantity,
			ImageRef:  it.ImageRef,
		}
	}
	return OrderResponse{
		OrderID:              o.OrderID,
		PaymentStatus:        string(o.PaymentStatus),
		PaymentMethod:        o.PaymentMethod,
		SubTotal:             gateway.FormatAmount(o.SubTotal),
		Taxes:                gateway.FormatAmount(o.Taxes),
		TotalAmount:          gateway.FormatAmount(o.TotalAmount),
		GatewayTransactionID: o.GatewayTransactionID,
		Items:                items,
		CreatedAt:            o.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            o.UpdatedAt.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}

func writeInitiateError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, InitiatePaymentResponse{
		Success: false,
		Error:   msg,
		Code:    code,
	})
}
