// Package ledgertest is a behavioural suite every ports.Ledger implementation
// must pass.
package ledgertest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/storefront-payments/internal/payment-service/core/domain/entity"
	"github.com/jcmexdev/storefront-payments/internal/payment-service/core/ports"
)

// SampleOrder is a pending order worth 10,300.00.
func SampleOrder(orderID string, now time.Time) *entity.Order {
	return entity.NewPendingOrder(
		orderID,
		entity.CustomerSnapshot{
			FirstName: "Asha",
			LastName:  "Rao",
			Email:     "asha@example.com",
			Phone:     "9876543210",
			Address:   entity.Address{Line1: "12 MG Road", City: "Bengaluru", State: "KA", PostalCode: "560001", Country: "IN"},
		},
		[]entity.LineItem{
			{ProductID: "sku-1", Name: "Silk saree", UnitPrice: decimal.RequireFromString("10000"), Quantity: 1, ImageRef: "img/sku-1.jpg"},
		},
		decimal.RequireFromString("10000"),
		decimal.RequireFromString("300"),
		"gateway",
		now,
	)
}

// Run exercises the upsert/get contract against a fresh ledger per subtest.
func Run(t *testing.T, newLedger func(t *testing.T) ports.Ledger) {
	ctx := context.Background()
	t0 := time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

	t.Run("get missing returns ErrOrderNotFound", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.Get(ctx, "ORD-missing")
		assert.ErrorIs(t, err, ports.ErrOrderNotFound)
	})

	t.Run("insert then get round-trips", func(t *testing.T) {
		l := newLedger(t)
		stored, err := l.Upsert(ctx, SampleOrder("ORD-1", t0))
		require.NoError(t, err)
		assert.Equal(t, entity.StatusPending, stored.PaymentStatus)

		got, err := l.Get(ctx, "ORD-1")
		require.NoError(t, err)
		assert.Equal(t, "asha@example.com", got.Customer.Email)
		assert.Equal(t, "560001", got.Customer.Address.PostalCode)
		require.Len(t, got.Cart, 1)
		assert.True(t, decimal.RequireFromString("10000").Equal(got.Cart[0].UnitPrice))
		assert.True(t, decimal.RequireFromString("10300").Equal(got.TotalAmount))
		assert.Empty(t, got.GatewayTransactionID)
		assert.True(t, t0.Equal(got.CreatedAt))
	})

	t.Run("second insert does not rewrite contents", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.Upsert(ctx, SampleOrder("ORD-2", t0))
		require.NoError(t, err)

		tampered := SampleOrder("ORD-2", t0.Add(time.Minute))
		tampered.Customer.Email = "mallory@example.com"
		tampered.TotalAmount = decimal.RequireFromString("1")
		tampered.Cart = nil

		stored, err := l.Upsert(ctx, tampered)
		require.NoError(t, err)
		assert.Equal(t, "asha@example.com", stored.Customer.Email)
		assert.True(t, decimal.RequireFromString("10300").Equal(stored.TotalAmount))
		assert.Len(t, stored.Cart, 1)
		assert.True(t, t0.Equal(stored.UpdatedAt), "pending re-write is not a transition")
	})

	t.Run("pending to completed updates status fields only", func(t *testing.T) {
		l := newLedger(t)
		o := SampleOrder("ORD-3", t0)
		_, err := l.Upsert(ctx, o)
		require.NoError(t, err)

		next := o.Transition(entity.StatusCompleted, "mih-1", t0.Add(time.Minute))
		next.Customer.FirstName = "Changed"
		stored, err := l.Upsert(ctx, next)
		require.NoError(t, err)

		assert.Equal(t, entity.StatusCompleted, stored.PaymentStatus)
		assert.Equal(t, "mih-1", stored.GatewayTransactionID)
		assert.Equal(t, "Asha", stored.Customer.FirstName)
		assert.True(t, t0.Add(time.Minute).Equal(stored.UpdatedAt))
		assert.True(t, t0.Equal(stored.CreatedAt))
	})

	t.Run("terminal status never regresses", func(t *testing.T) {
		l := newLedger(t)
		o := SampleOrder("ORD-4", t0)
		_, err := l.Upsert(ctx, o)
		require.NoError(t, err)
		_, err = l.Upsert(ctx, o.Transition(entity.StatusCompleted, "mih-1", t0.Add(time.Minute)))
		require.NoError(t, err)

		for _, next := range []*entity.Order{
			o.Transition(entity.StatusFailed, "mih-2", t0.Add(2*time.Minute)),
			o.Transition(entity.StatusPending, "", t0.Add(3*time.Minute)),
			o.Transition(entity.StatusCompleted, "mih-3", t0.Add(4*time.Minute)),
		} {
			stored, err := l.Upsert(ctx, next)
			require.NoError(t, err)
			assert.Equal(t, entity.StatusCompleted, stored.PaymentStatus)
			assert.Equal(t, "mih-1", stored.GatewayTransactionID)
			assert.True(t, t0.Add(time.Minute).Equal(stored.UpdatedAt))
		}

		got, err := l.Get(ctx, "ORD-4")
		require.NoError(t, err)
		assert.Equal(t, entity.StatusCompleted, got.PaymentStatus)
	})

	t.Run("insert straight into terminal state", func(t *testing.T) {
		l := newLedger(t)
		o := SampleOrder("ORD-5", t0).Transition(entity.StatusFailed, "mih-9", t0)
		stored, err := l.Upsert(ctx, o)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusFailed, stored.PaymentStatus)
	})
}
