package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/storefront-payments/internal/gateway"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/core/domain/entity"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/core/ports"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/infra/adapters/memory"
	"github.com/jcmexdev/storefront-payments/internal/pkg/cache"
)

const (
	testKey  = "merchant-key"
	testSalt = "merchant-salt"
)

// countingLedger wraps a ledger and counts writes.
type countingLedger struct {
	ports.Ledger
	upserts atomic.Int32
	getErr  error
	putErr  error
}

func (c *countingLedger) Upsert(ctx context.Context, o *entity.Order) (*entity.Order, error) {
	c.upserts.Add(1)
	if c.putErr != nil {
		return nil, c.putErr
	}
	return c.Ledger.Upsert(ctx, o)
}

func (c *countingLedger) Get(ctx context.Context, id string) (*entity.Order, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.Ledger.Get(ctx, id)
}

// brokenCache fails every call.
type brokenCache struct{ cache.Cache }

var errCacheDown = errors.New("cache down")

func (brokenCache) SetNX(context.Context, string, interface{}, time.Duration) (bool, error) {
	return false, errCacheDown
}
func (brokenCache) Delete(context.Context, string) error { return errCacheDown }
func (brokenCache) GenerateKey(op, key string) string    { return op + ":" + key }

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc    *Service
	ledger *countingLedger
	events *memory.EventLog
	signer *gateway.Signer
	clock  *clock
}

func newFixture(t *testing.T, window time.Duration) *fixture {
	t.Helper()
	signer, err := gateway.NewSigner(testKey, testSalt)
	require.NoError(t, err)

	ledger := &countingLedger{Ledger: memory.NewLedger()}
	events := memory.NewEventLog()
	clk := &clock{t: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)}

	svc := NewService(ledger, signer, cache.NewMemoryCache(100, window, "payment"), events, Settings{
		GatewayURL:     "https://gateway.test/_payment",
		CallbackURL:    "https://shop.test/api/payments/callback",
		CooldownWindow: window,
	})
	svc.now = clk.Now

	return &fixture{svc: svc, ledger: ledger, events: events, signer: signer, clock: clk}
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func validRequest(orderID string) InitiateRequest {
	return InitiateRequest{
		OrderID: orderID,
		Amount:  d("10300"),
		Customer: &entity.CustomerSnapshot{
			FirstName: "Asha",
			LastName:  "Rao",
			Email:     "asha@example.com",
			Phone:     "+91 98765 43210",
			Address:   entity.Address{Line1: "12 MG Road", City: "Bengaluru", PostalCode: "560001", Country: "IN"},
		},
		Items: []entity.LineItem{
			{ProductID: "sku-1", Name: "Silk saree", UnitPrice: d("7500"), Quantity: 1},
			{ProductID: "sku-2", Name: "Stole", UnitPrice: d("1250"), Quantity: 2},
		},
		SubTotal: d("10000"),
		Taxes:    d("300"),
	}
}

// callbackFor builds the callback a gateway would send for fields issued by
// Initiate, signed with the reverse digest.
func callbackFor(signer *gateway.Signer, issued gateway.Fields, status, mihpayid string) gateway.Fields {
	cb := gateway.Fields{
		gateway.FieldStatus:       status,
		gateway.FieldTxnID:        issued[gateway.FieldTxnID],
		gateway.FieldAmount:       issued[gateway.FieldAmount],
		gateway.FieldProductInfo:  issued[gateway.FieldProductInfo],
		gateway.FieldFirstName:    issued[gateway.FieldFirstName],
		gateway.FieldLastName:     issued[gateway.FieldLastName],
		gateway.FieldEmail:        issued[gateway.FieldEmail],
		gateway.FieldGatewayTxnID: mihpayid,
	}
	cb[gateway.FieldHash] = signer.ResponseHash(gateway.ResponseParamsFromFields(cb))
	return cb
}

// gatedLedger holds every Get until parties callers have arrived, so they all
// read the ledger before any of them writes.
type gatedLedger struct {
	ports.Ledger
	parties int32
	arrived atomic.Int32
	release chan struct{}
}

func newGatedLedger(l ports.Ledger, parties int32) *gatedLedger {
	return &gatedLedger{Ledger: l, parties: parties, release: make(chan struct{})}
}

func (g *gatedLedger) Get(ctx context.Context, id string) (*entity.Order, error) {
	if g.arrived.Add(1) == g.parties {
		close(g.release)
	}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.Ledger.Get(ctx, id)
}
