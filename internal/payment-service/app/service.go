package app

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/storefront-payments/internal/gateway"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/core/domain/entity"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/core/ports"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/paymentlog"
	"github.com/jcmexdev/storefront-payments/internal/pkg/cache"
	"github.com/jcmexdev/storefront-payments/internal/pkg/metrics"
	"github.com/jcmexdev/storefront-payments/internal/pkg/telemetry"
	"github.com/jcmexdev/storefront-payments/internal/pricing"
)

const (
	maxOrderIDLen   = 64
	minPhoneDigits  = 10
	maxProductInfo  = 100
	defaultCooldown = 3 * time.Second
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Settings are the non-secret knobs of the service.
type Settings struct {
	// GatewayURL is where the buyer's browser posts the signed form.
	GatewayURL string
	// CallbackURL is the public webhook URL sent as both surl and furl.
	CallbackURL string
	// PaymentMethod is recorded on every order created here.
	PaymentMethod string
	// CooldownWindow is how long a (orderId, email) pair is refused after an
	// accepted request.
	CooldownWindow time.Duration
}

// Service implements gateway initiation and callback verification.
type Service struct {
	ledger   ports.Ledger
	signer   *gateway.Signer
	cooldown cache.Cache
	events   paymentlog.Repository // nil-safe: events are skipped if nil
	settings Settings
	tracer   trace.Tracer
	now      func() time.Time
}

func NewService(
	ledger ports.Ledger,
	signer *gateway.Signer,
	cooldown cache.Cache,
	events paymentlog.Repository,
	settings Settings,
) *Service {
	if settings.CooldownWindow <= 0 {
		settings.CooldownWindow = defaultCooldown
	}
	if settings.PaymentMethod == "" {
		settings.PaymentMethod = "gateway"
	}
	return &Service{
		ledger:   ledger,
		signer:   signer,
		cooldown: cooldown,
		events:   events,
		settings: settings,
		tracer:   telemetry.Tracer("payment-service/app"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// InitiateRequest is the order data sent by the buyer's checkout.
type InitiateRequest struct {
	OrderID  string
	Amount   decimal.Decimal
	Customer *entity.CustomerSnapshot
	Items    []entity.LineItem
	SubTotal decimal.Decimal
	Taxes    decimal.Decimal
}

// InitiateResult is what the browser needs to hand over to the gateway.
type InitiateResult struct {
	GatewayURL string
	FormData   gateway.Fields
	// Reissued is true when the order was already pending and no row was written.
	Reissued bool
}

// Initiate validates the request, applies the duplicate-request cooldown,
// records a pending order and returns the signed gateway form. Every rejection
// is an *Error and leaves the ledger untouched.
func (s *Service) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	ctx, span := s.tracer.Start(ctx, "payment.initiate",
		trace.WithAttributes(attribute.String("order.id", req.OrderID)))
	defer span.End()

	res, err := s.initiate(ctx, req)
	if err != nil {
		kind := KindOf(err)
		span.SetStatus(codes.Error, string(kind))
		metrics.PaymentInitiations.WithLabelValues(string(kind)).Inc()

		level := slog.LevelWarn
		if kind == KindInternal {
			level = slog.LevelError
		}
		slog.Log(ctx, level, "payment initiation rejected", "order_id", req.OrderID, "kind", kind, "error", err)

		if req.OrderID != "" {
			s.record(ctx, req.OrderID, paymentlog.KindRejected, "", string(kind))
		}
		return nil, err
	}

	outcome := "initiated"
	if res.Reissued {
		outcome = "reissued"
	}
	metrics.PaymentInitiations.WithLabelValues(outcome).Inc()
	return res, nil
}

func (s *Service) initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	key := s.cooldown.GenerateKey("initiate", req.OrderID+"|"+strings.ToLower(req.Customer.Email))
	accepted, err := s.cooldown.SetNX(ctx, key, s.now().UnixMilli(), s.settings.CooldownWindow)
	if err != nil {
		// Best-effort guard: a cache outage must not block payments.
		slog.WarnContext(ctx, "cooldown cache unavailable, continuing without it", "order_id", req.OrderID, "error", err)
		accepted = true
	}
	if !accepted {
		return nil, errCooldown
	}

	res, err := s.issue(ctx, req)
	if err != nil && KindOf(err) == KindInternal {
		// Free the key so the buyer's retry is not refused for a server fault.
		if delErr := s.cooldown.Delete(ctx, key); delErr != nil {
			slog.WarnContext(ctx, "failed to release cooldown key", "order_id", req.OrderID, "error", delErr)
		}
	}
	return res, err
}

func (s *Service) issue(ctx context.Context, req InitiateRequest) (*InitiateResult, error) {
	existing, err := s.ledger.Get(ctx, req.OrderID)
	switch {
	case errors.Is(err, ports.ErrOrderNotFound):
		existing = nil
	case err != nil:
		return nil, internalError("could not look up order", err)
	}

	if existing != nil {
		switch existing.PaymentStatus {
		case entity.StatusCompleted:
			return nil, errAlreadyPaid
		case entity.StatusFailed:
			return nil, errOrderClosed
		}
		if !existing.TotalAmount.Equal(req.Amount) {
			return nil, validationError("order %s was already started with a different amount", req.OrderID)
		}

		fields := s.signedFields(existing)
		s.record(ctx, existing.OrderID, paymentlog.KindReissued, string(existing.PaymentStatus), "")
		slog.InfoContext(ctx, "re-issued gateway request for pending order", "order_id", existing.OrderID)
		return &InitiateResult{GatewayURL: s.settings.GatewayURL, FormData: fields, Reissued: true}, nil
	}

	order := entity.NewPendingOrder(
		req.OrderID,
		*req.Customer,
		req.Items,
		req.SubTotal,
		req.Taxes,
		s.settings.PaymentMethod,
		s.now(),
	)

	stored, err := s.ledger.Upsert(ctx, order)
	if err != nil {
		return nil, internalError("could not record order", err)
	}
	if stored.PaymentStatus != entity.StatusPending {
		// A concurrent callback settled the order between Get and Upsert.
		if stored.PaymentStatus == entity.StatusCompleted {
			return nil, errAlreadyPaid
		}
		return nil, errOrderClosed
	}

	// A concurrent initiation for the same id may have written first, in which
	// case the upsert was a no-op. Only the stored row is ever signed.
	if !sameOrder(stored, order) {
		if !stored.TotalAmount.Equal(order.TotalAmount) {
			return nil, validationError("order %s was already started with a different amount", order.OrderID)
		}
		fields := s.signedFields(stored)
		s.record(ctx, stored.OrderID, paymentlog.KindReissued, string(stored.PaymentStatus), "")
		slog.InfoContext(ctx, "re-issued gateway request for concurrently created order", "order_id", stored.OrderID)
		return &InitiateResult{GatewayURL: s.settings.GatewayURL, FormData: fields, Reissued: true}, nil
	}
	fields := s.signedFields(stored)

	s.record(ctx, order.OrderID, paymentlog.KindInitiated, string(entity.StatusPending), "")
	slog.InfoContext(ctx, "pending order recorded",
		"order_id", order.OrderID,
		"amount", gateway.FormatAmount(order.TotalAmount),
		"items", len(order.Cart),
	)
	return &InitiateResult{GatewayURL: s.settings.GatewayURL, FormData: fields}, nil
}

// sameOrder reports whether stored is the row written from order.
func sameOrder(stored, order *entity.Order) bool {
	return stored.TotalAmount.Equal(order.TotalAmount) &&
		stored.Customer.Email == order.Customer.Email &&
		stored.Customer.FirstName == order.Customer.FirstName
}

// signedFields builds the gateway form for o. Amount and customer always come
// from the order itself so a re-issue signs what was first recorded.
func (s *Service) signedFields(o *entity.Order) gateway.Fields {
	amount := gateway.FormatAmount(o.TotalAmount)
	info := productInfo(o.Cart, o.OrderID)

	hash := s.signer.RequestHash(gateway.RequestParams{
		TxnID:       o.OrderID,
		Amount:      amount,
		ProductInfo: info,
		FirstName:   o.Customer.FirstName,
		Email:       o.Customer.Email,
	})

	return gateway.Fields{
		gateway.FieldKey:         s.signer.MerchantKey(),
		gateway.FieldTxnID:       o.OrderID,
		gateway.FieldAmount:      amount,
		gateway.FieldProductInfo: info,
		gateway.FieldFirstName:   o.Customer.FirstName,
		gateway.FieldLastName:    o.Customer.LastName,
		gateway.FieldEmail:       o.Customer.Email,
		gateway.FieldPhone:       o.Customer.Phone,
		gateway.FieldSuccessURL:  s.settings.CallbackURL,
		gateway.FieldFailureURL:  s.settings.CallbackURL,
		gateway.FieldHash:        hash,
	}
}

// productInfo names the order for the gateway's payment page. The gateway
// echoes it back in the callback, where it is part of the reverse digest.
func productInfo(items []entity.LineItem, orderID string) string {
	if len(items) == 0 {
		return "Order " + orderID
	}

	info := strings.Map(func(r rune) rune {
		if r == '|' || !unicode.IsPrint(r) {
			return ' '
		}
		return r
	}, items[0].Name)
	if len(items) > 1 {
		info += " and more"
	}

	if r := []rune(info); len(r) > maxProductInfo {
		info = string(r[:maxProductInfo])
	}
	if strings.TrimSpace(info) == "" {
		return "Order " + orderID
	}
	return info
}

func validate(req InitiateRequest) error {
	if strings.TrimSpace(req.OrderID) == "" {
		return validationError("orderId is required")
	}
	if len(req.OrderID) > maxOrderIDLen || strings.ContainsAny(req.OrderID, "| \t\r\n") {
		return validationError("orderId is malformed")
	}
	if !req.Amount.IsPositive() {
		return validationError("amount must be greater than zero")
	}
	if !isCents(req.Amount) || !isCents(req.SubTotal) || !isCents(req.Taxes) {
		return validationError("amounts must have at most two decimal places")
	}
	if req.Customer == nil {
		return validationError("customerSnapshot is required")
	}

	c := req.Customer
	if strings.TrimSpace(c.FirstName) == "" {
		return validationError("customer first name is required")
	}
	if strings.Contains(c.FirstName, "|") {
		return validationError("customer first name contains invalid characters")
	}
	if !emailPattern.MatchString(c.Email) || strings.Contains(c.Email, "|") {
		return validationError("customer email %q is not a valid address", c.Email)
	}
	if countDigits(c.Phone) < minPhoneDigits {
		return validationError("customer phone must have at least %d digits", minPhoneDigits)
	}

	if len(req.Items) == 0 {
		return validationError("cart is empty")
	}
	for i, it := range req.Items {
		if it.ProductID == "" || it.Quantity <= 0 || it.UnitPrice.IsNegative() || !isCents(it.UnitPrice) {
			return validationError("cart item %d: productId, quantity and unitPrice must be valid", i)
		}
	}

	if !pricing.Check(req.Items, req.SubTotal, req.Taxes, req.Amount) {
		return validationError("amounts do not match the cart: expected subtotal + %s%% tax", pricing.TaxRate.Shift(2).String())
	}
	return nil
}

func isCents(v decimal.Decimal) bool {
	return v.Equal(v.Round(2))
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}

func (s *Service) record(ctx context.Context, orderID string, kind paymentlog.Kind, status, detail string) {
	if s.events == nil {
		return
	}
	if err := s.events.Save(ctx, paymentlog.NewEvent(ctx, orderID, kind, status, detail)); err != nil {
		slog.WarnContext(ctx, "failed to append payment event", "order_id", orderID, "kind", kind, "error", err)
	}
}
