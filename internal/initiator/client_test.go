package initiator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/storefront-payments/internal/payment-service/infra/httpx"
)

func TestClientInitiate(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, h *Handoff, err error)
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body:   `{"success":true,"gatewayUrl":"https://gw.test/_payment","formData":{"txnid":"ORD-1","hash":"abc"}}`,
			check: func(t *testing.T, h *Handoff, err error) {
				require.NoError(t, err)
				assert.Equal(t, "https://gw.test/_payment", h.GatewayURL)
				assert.Equal(t, "abc", h.FormData["hash"])
			},
		},
		{
			name:   "service rejection",
			status: http.StatusTooManyRequests,
			body:   `{"success":false,"error":"please wait","code":"cooldown"}`,
			check: func(t *testing.T, _ *Handoff, err error) {
				var se *ServiceError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, CodeCooldown, se.Code)
				assert.Equal(t, "please wait", se.Message)
			},
		},
		{
			name:   "non-2xx without body",
			status: http.StatusBadGateway,
			body:   `<html>upstream down</html>`,
			check: func(t *testing.T, _ *Handoff, err error) {
				var te *TransportError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, http.StatusBadGateway, te.StatusCode)
			},
		},
		{
			name:   "malformed body",
			status: http.StatusOK,
			body:   `{"success":tru`,
			check: func(t *testing.T, _ *Handoff, err error) {
				var te *TransportError
				require.ErrorAs(t, err, &te)
			},
		},
		{
			name:   "error field on 200",
			status: http.StatusOK,
			body:   `{"success":false,"error":"nope"}`,
			check: func(t *testing.T, _ *Handoff, err error) {
				var se *ServiceError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, "nope", se.Message)
			},
		},
		{
			name:   "success without signed fields",
			status: http.StatusOK,
			body:   `{"success":true,"gatewayUrl":"https://gw.test/_payment"}`,
			check: func(t *testing.T, _ *Handoff, err error) {
				var te *TransportError
				require.ErrorAs(t, err, &te)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got httpx.InitiatePaymentRequest
			var idemKey string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/payments/initiate", r.URL.Path)
				idemKey = r.Header.Get("X-Idempotency-Key")
				_ = json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			h, err := NewClient(srv.URL, srv.Client()).Initiate(context.Background(), "ORD-1", sampleCheckout())
			tt.check(t, h, err)

			assert.Equal(t, "ORD-1", idemKey)
			assert.Equal(t, "ORD-1", got.OrderID)
			assert.Equal(t, "10300.00", got.Amount.StringFixed(2))
			assert.Equal(t, "10000.00", got.SubTotal.StringFixed(2))
			assert.Equal(t, "300.00", got.Taxes.StringFixed(2))
			assert.Len(t, got.CartItems, 2)
			require.NotNil(t, got.CustomerSnapshot)
			assert.Equal(t, "asha@example.com", got.CustomerSnapshot.Email)
		})
	}
}

func TestClientNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, nil).Initiate(context.Background(), "ORD-1", sampleCheckout())

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Zero(t, te.StatusCode)
}

func TestClientOrderStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/orders/ORD-1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"order_not_found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"orderId":"ORD-1","paymentStatus":"failed","totalAmount":"10300.00"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())

	order, err := c.OrderStatus(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, "failed", order.PaymentStatus)

	_, err = c.OrderStatus(context.Background(), "ORD-2")
	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "order_not_found", se.Code)
}
