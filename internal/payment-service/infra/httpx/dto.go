package httpx

import "github.com/shopspring/decimal"

// InitiatePaymentRequest is the JSON body posted by the checkout page. Money
// fields decode from JSON numbers or numeric strings without passing through
// float64.
type InitiatePaymentRequest struct {
	OrderID          string               `json:"orderId"`
	Amount           decimal.Decimal      `json:"amount"`
	CustomerSnapshot *CustomerSnapshotDTO `json:"customerSnapshot"`
	CartItems        []CartItemDTO        `json:"cartItems"`
	SubTotal         decimal.Decimal      `json:"subTotal"`
	Taxes            decimal.Decimal      `json:"taxes"`
}

type CustomerSnapshotDTO struct {
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	Address   AddressDTO `json:"address"`
}

type AddressDTO struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type CartItemDTO struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	ImageRef  string          `json:"imageRef,omitempty"`
}

// InitiatePaymentResponse is {success, gatewayUrl, formData} on success and
// {success:false, error, code} on failure.
type InitiatePaymentResponse struct {
	Success    bool              `json:"success"`
	GatewayURL string            `json:"gatewayUrl,omitempty"`
	FormData   map[string]string `json:"formData,omitempty"`
	Error      string            `json:"error,omitempty"`
	Code       string            `json:"code,omitempty"`
}

type OrderResponse struct {
	OrderID              string              `json:"orderId"`
	PaymentStatus        string              `json:"paymentStatus"`
	PaymentMethod        string              `json:"paymentMethod"`
	SubTotal             string              `json:"subTotal"`
	Taxes                string              `json:"taxes"`
	TotalAmount          string              `json:"totalAmount"`
	GatewayTransactionID string              `json:"gatewayTransactionId,omitempty"`
	Items                []OrderItemResponse `json:"items"`
	CreatedAt            string              `json:"createdAt"`
	UpdatedAt            string              `json:"updatedAt"`
}

type OrderItemResponse struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	UnitPrice string `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	ImageRef  string `json:"imageRef,omitempty"`
}

type PaymentEventResponse struct {
	Kind      string `json:"kind"`
	Status    string `json:"status,omitempty"`
	Detail    string `json:"detail,omitempty"`
	TraceID   string `json:"traceId,omitempty"`
	CreatedAt string `json:"createdAt"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
