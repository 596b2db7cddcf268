package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jcmexdev/storefront-payments/internal/payment-service/core/domain/entity"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestQuoteItems(t *testing.T) {
	t.Run("ten thousand subtotal", func(t *testing.T) {
		q := QuoteItems([]entity.LineItem{
			{ProductID: "p1", UnitPrice: d("2500"), Quantity: 2},
			{ProductID: "p2", UnitPrice: d("5000"), Quantity: 1},
		})
		assert.True(t, d("10000").Equal(q.SubTotal))
		assert.True(t, d("300").Equal(q.Taxes))
		assert.True(t, d("10300").Equal(q.Total))
	})

	t.Run("rounds taxes to paise", func(t *testing.T) {
		q := QuoteItems([]entity.LineItem{{ProductID: "p1", UnitPrice: d("99.99"), Quantity: 1}})
		assert.Equal(t, "3.00", q.Taxes.StringFixed(2))
		assert.Equal(t, "102.99", q.Total.StringFixed(2))
	})

	t.Run("empty cart", func(t *testing.T) {
		q := QuoteItems(nil)
		assert.True(t, q.Total.IsZero())
	})
}

func TestCheck(t *testing.T) {
	items := []entity.LineItem{{ProductID: "p1", UnitPrice: d("10000"), Quantity: 1}}

	assert.True(t, Check(items, d("10000"), d("300"), d("10300")))
	assert.False(t, Check(items, d("10000"), d("1800"), d("11800")), "18% tax is not the authoritative rate")
	assert.False(t, Check(items, d("10000"), d("300"), d("10200")))
}
