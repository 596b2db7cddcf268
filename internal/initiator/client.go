package initiator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/storefront-payments/internal/gateway"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/core/domain/entity"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/infra/httpx"
	"github.com/jcmexdev/storefront-payments/internal/pkg/interceptors/constants"
)

const maxResponseBody = 64 << 10

// Checkout is the order the buyer confirmed: snapshots and amounts as shown
// on the checkout page.
type Checkout struct {
	Customer entity.CustomerSnapshot
	Items    []entity.LineItem
	SubTotal decimal.Decimal
	Taxes    decimal.Decimal
	Total    decimal.Decimal
}

// Handoff is the signed form the browser posts to the gateway.
type Handoff struct {
	GatewayURL string
	FormData   gateway.Fields
}

// PaymentAPI is the payment service as seen from checkout.
type PaymentAPI interface {
	Initiate(ctx context.Context, orderID string, c Checkout) (*Handoff, error)
}

// Client talks to the payment service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for the service at baseURL. A nil hc gets a
// traced client with a 15 second timeout.
func NewClient(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

// Initiate posts the checkout. The order id doubles as the idempotency key.
func (c *Client) Initiate(ctx context.Context, orderID string, co Checkout) (*Handoff, error) {
	body, err := json.Marshal(toRequest(orderID, co))
	if err != nil {
		return nil, fmt.Errorf("initiator: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/payments/initiate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("initiator: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(constants.HeaderXIdempotencyKey, orderID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: err}
	}

	var out httpx.InitiatePaymentResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && out.Code != "" {
			return nil, &ServiceError{StatusCode: resp.StatusCode, Code: out.Code, Message: out.Error}
		}
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}
	if decodeErr != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("malformed response: %w", decodeErr)}
	}
	if !out.Success || out.Error != "" {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Code: out.Code, Message: out.Error}
	}
	if out.GatewayURL == "" || out.FormData[gateway.FieldHash] == "" {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: errors.New("malformed response: missing gateway url or signed fields")}
	}

	return &Handoff{GatewayURL: out.GatewayURL, FormData: out.FormData}, nil
}

// OrderStatus fetches the ledger's view of an order.
func (c *Client) OrderStatus(ctx context.Context, orderID string) (*httpx.OrderResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/orders/"+orderID, nil)
	if err != nil {
		return nil, fmt.Errorf("initiator: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e httpx.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&e)
		if e.Error != "" {
			return nil, &ServiceError{StatusCode: resp.StatusCode, Code: e.Error, Message: e.Message}
		}
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
	}

	var out httpx.OrderResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&out); err != nil {
		return nil, &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("malformed response: %w", err)}
	}
	return &out, nil
}

func toRequest(orderID string, co Checkout) httpx.InitiatePaymentRequest {
	c := co.Customer
	items := make([]httpx.CartItemDTO, len(co.Items))
	for i, it := range co.Items {
		items[i] = httpx.CartItemDTO{
			ProductID: it.ProductID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			ImageRef:  it.ImageRef,
		}
	}
	return httpx.InitiatePaymentRequest{
		OrderID: orderID,
		Amount:  co.Total,
		CustomerSnapshot: &httpx.CustomerSnapshotDTO{
			FirstName: c.FirstName,
			LastName:  c.LastName,
			Email:     c.Email,
			Phone:     c.Phone,
			Address: httpx.AddressDTO{
				Line1:      c.Address.Line1,
				Line2:      c.Address.Line2,
				City:       c.Address.City,
				State:      c.Address.State,
				PostalCode: c.Address.PostalCode,
				Country:    c.Address.Country,
			},
		},
		CartItems: items,
		SubTotal:  co.SubTotal,
		Taxes:     co.Taxes,
	}
}
