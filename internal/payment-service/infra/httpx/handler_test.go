package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/storefront-payments/internal/gateway"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/app"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/core/domain/entity"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/infra/adapters/memory"
	"github.com/jcmexdev/storefront-payments/internal/pkg/cache"
)

type testServer struct {
	*httptest.Server
	ledger *memory.Ledger
	signer *gateway.Signer
	client *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	signer, err := gateway.NewSigner("merchant-key", "merchant-salt")
	require.NoError(t, err)

	ledger := memory.NewLedger()
	events := memory.NewEventLog()
	svc := app.NewService(ledger, signer, cache.NewMemoryCache(100, time.Minute, "payment"), events, app.Settings{
		GatewayURL:     "https://gateway.test/_payment",
		CallbackURL:    "https://shop.test/api/payments/callback",
		CooldownWindow: time.Minute,
	})

	srv := httptest.NewServer(NewRouter(NewHandler(svc, ledger, events, "https://shop.test"), nil))
	t.Cleanup(srv.Close)

	return &testServer{
		Server: srv,
		ledger: ledger,
		signer: signer,
		client: noRedirectClient(),
	}
}

func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
}

func initiateBody(orderID string) map[string]any {
	return map[string]any{
		"orderId": orderID,
		"amount":  10300,
		"customerSnapshot": map[string]any{
			"firstName": "Asha",
			"lastName":  "Rao",
			"email":     "asha@example.com",
			"phone":     "9876543210",
			"address":   map[string]any{"line1": "12 MG Road", "city": "Bengaluru", "postalCode": "560001", "country": "IN"},
		},
		"cartItems": []map[string]any{
			{"productId": "sku-1", "name": "Silk saree", "unitPrice": 7500, "quantity": 1},
			{"productId": "sku-2", "name": "Stole", "unitPrice": 1250, "quantity": 2},
		},
		"subTotal": 10000,
		"taxes":    300,
	}
}

func (s *testServer) postJSON(t *testing.T, path string, body any) (*http.Response, InitiatePaymentResponse) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := s.client.Post(s.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out InitiatePaymentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func (s *testServer) postCallback(t *testing.T, fields gateway.Fields) *url.URL {
	t.Helper()
	resp, err := s.client.PostForm(s.URL+"/api/payments/callback", fields.Values())
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	return loc
}

func TestInitiatePayment(t *testing.T) {
	s := newTestServer(t)

	resp, out := s.postJSON(t, "/api/payments/initiate", initiateBody("ORD-1"))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, out.Success)
	assert.Equal(t, "https://gateway.test/_payment", out.GatewayURL)
	assert.Equal(t, "10300.00", out.FormData[gateway.FieldAmount])
	assert.Equal(t, "ORD-1", out.FormData[gateway.FieldTxnID])
	assert.Len(t, out.FormData[gateway.FieldHash], 128)
	assert.NotContains(t, out.FormData, "salt")

	order, err := s.ledger.Get(context.Background(), "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusPending, order.PaymentStatus)
}

func TestInitiatePaymentErrors(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(body map[string]any)
		wantStatus int
		wantCode   string
	}{
		{
			name:       "bad email",
			mutate:     func(b map[string]any) { b["customerSnapshot"].(map[string]any)["email"] = "not-an-email" },
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation",
		},
		{
			name:       "short phone",
			mutate:     func(b map[string]any) { b["customerSnapshot"].(map[string]any)["phone"] = "12345" },
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation",
		},
		{
			name:       "missing customer",
			mutate:     func(b map[string]any) { delete(b, "customerSnapshot") },
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation",
		},
		{
			name:       "amount below a cent is not rounded",
			mutate:     func(b map[string]any) { b["amount"] = 10300.004 },
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation",
		},
		{
			name:       "total does not match cart",
			mutate:     func(b map[string]any) { b["amount"] = 1 },
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			body := initiateBody("ORD-BAD")
			tt.mutate(body)

			resp, out := s.postJSON(t, "/api/payments/initiate", body)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.False(t, out.Success)
			assert.Equal(t, tt.wantCode, out.Code)
			assert.NotEmpty(t, out.Error)
			assert.Empty(t, out.FormData)

			_, err := s.ledger.Get(context.Background(), "ORD-BAD")
			assert.Error(t, err, "a rejected request must not write the ledger")
		})
	}
}

func TestInitiatePaymentMalformedJSON(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.client.Post(s.URL+"/api/payments/initiate", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInitiatePaymentCooldown(t *testing.T) {
	s := newTestServer(t)

	first, _ := s.postJSON(t, "/api/payments/initiate", initiateBody("ORD-2"))
	second, out := s.postJSON(t, "/api/payments/initiate", initiateBody("ORD-2"))

	assert.Equal(t, http.StatusOK, first.StatusCode)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.Equal(t, "cooldown", out.Code)
}

type stubPayments struct {
	initErr error
	panics  bool
}

func (s stubPayments) Initiate(context.Context, app.InitiateRequest) (*app.InitiateResult, error) {
	return nil, s.initErr
}

func (s stubPayments) HandleCallback(context.Context, gateway.Fields) app.CallbackResult {
	if s.panics {
		panic("boom")
	}
	return app.CallbackResult{}
}

func TestInitiatePaymentHidesInternalErrors(t *testing.T) {
	h := NewHandler(stubPayments{initErr: &app.Error{Kind: app.KindInternal, Message: "db path /var/secret"}}, memory.NewLedger(), nil, "")
	srv := httptest.NewServer(NewRouter(h, nil))
	defer srv.Close()

	raw, _ := json.Marshal(initiateBody("ORD-3"))
	resp, err := http.Post(srv.URL+"/api/payments/initiate", "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out InitiatePaymentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "internal", out.Code)
	assert.NotContains(t, out.Error, "/var/secret")
}

func TestPaymentCallback(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		forge      bool
		wantPath   string
		wantStored entity.PaymentStatus
	}{
		{name: "verified success", status: gateway.StatusSuccess, wantPath: successRoute, wantStored: entity.StatusCompleted},
		{name: "verified failure", status: gateway.StatusFailure, wantPath: failureRoute, wantStored: entity.StatusFailed},
		{name: "pending is not success", status: gateway.StatusPending, wantPath: failureRoute, wantStored: entity.StatusFailed},
		{name: "forged success", status: gateway.StatusSuccess, forge: true, wantPath: failureRoute, wantStored: entity.StatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			_, out := s.postJSON(t, "/api/payments/initiate", initiateBody("ORD-CB"))
			require.True(t, out.Success)

			cb := s.signer.SignCallback(out.FormData, tt.status, "mih-1")
			if tt.forge {
				cb[gateway.FieldHash] = strings.Repeat("0", 128)
			}

			loc := s.postCallback(t, cb)

			assert.Equal(t, "shop.test", loc.Host)
			assert.Equal(t, tt.wantPath, loc.Path)
			assert.Equal(t, "ORD-CB", loc.Query().Get("orderId"))
			assert.Equal(t, "10300.00", loc.Query().Get("amount"))
			assert.Equal(t, tt.status, loc.Query().Get("status"))

			order, err := s.ledger.Get(context.Background(), "ORD-CB")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStored, order.PaymentStatus)
		})
	}
}

func TestPaymentCallbackDuplicateKeepsSuccess(t *testing.T) {
	s := newTestServer(t)
	_, out := s.postJSON(t, "/api/payments/initiate", initiateBody("ORD-DUP"))
	require.True(t, out.Success)

	first := s.postCallback(t, s.signer.SignCallback(out.FormData, gateway.StatusSuccess, "mih-1"))
	late := s.postCallback(t, s.signer.SignCallback(out.FormData, gateway.StatusFailure, "mih-2"))

	assert.Equal(t, successRoute, first.Path)
	assert.Equal(t, successRoute, late.Path, "landing follows the ledger, which stays completed")

	order, err := s.ledger.Get(context.Background(), "ORD-DUP")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, order.PaymentStatus)
	assert.Equal(t, "mih-1", order.GatewayTransactionID)
}

func TestPaymentCallbackAlwaysRedirects(t *testing.T) {
	t.Run("empty form", func(t *testing.T) {
		s := newTestServer(t)
		loc := s.postCallback(t, gateway.Fields{})
		assert.Equal(t, failureRoute, loc.Path)
	})

	t.Run("panicking service", func(t *testing.T) {
		h := NewHandler(stubPayments{panics: true}, memory.NewLedger(), nil, "")
		srv := httptest.NewServer(NewRouter(h, nil))
		defer srv.Close()

		resp, err := noRedirectClient().PostForm(srv.URL+"/api/payments/callback", url.Values{"txnid": {"ORD-X"}, "status": {"success"}})
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusFound, resp.StatusCode)
		loc, err := url.Parse(resp.Header.Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, failureRoute, loc.Path)
		assert.Equal(t, "ORD-X", loc.Query().Get("orderId"))
	})
}

func TestGetOrder(t *testing.T) {
	s := newTestServer(t)
	_, out := s.postJSON(t, "/api/payments/initiate", initiateBody("ORD-GET"))
	require.True(t, out.Success)

	resp, err := s.client.Get(s.URL + "/api/orders/ORD-GET")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var order OrderResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	assert.Equal(t, "pending", order.PaymentStatus)
	assert.Equal(t, "10300.00", order.TotalAmount)
	assert.Equal(t, "300.00", order.Taxes)
	assert.Len(t, order.Items, 2)

	missing, err := s.client.Get(s.URL + "/api/orders/ORD-NOPE")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestGetOrderEvents(t *testing.T) {
	s := newTestServer(t)
	_, out := s.postJSON(t, "/api/payments/initiate", initiateBody("ORD-EV"))
	require.True(t, out.Success)
	s.postCallback(t, s.signer.SignCallback(out.FormData, gateway.StatusSuccess, "mih-1"))

	resp, err := s.client.Get(s.URL + "/api/orders/ORD-EV/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	var events []PaymentEventResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&events))
	require.Len(t, events, 2)
	assert.Equal(t, "INITIATED", events[0].Kind)
	assert.Equal(t, "CALLBACK_VERIFIED", events[1].Kind)
	assert.Equal(t, "completed", events[1].Status)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.client.Get(s.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
