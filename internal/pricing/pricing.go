// Package pricing is the single place order amounts are computed. Both the
// buyer-side checkout and the initiation service use it, so a quote built on
// one side always validates on the other.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/jcmexdev/storefront-payments/internal/payment-service/core/domain/entity"
)

// TaxRate applied to the subtotal.
var TaxRate = decimal.RequireFromString("0.03")

// Quote holds the amounts of an order.
type Quote struct {
	SubTotal decimal.Decimal
	Taxes    decimal.Decimal
	Total    decimal.Decimal
}

// SubTotal sums the line totals, rounded to two places.
func SubTotal(items []entity.LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal())
	}
	return sum.Round(2)
}

// Taxes returns the tax due on subTotal, rounded half away from zero to two places.
func Taxes(subTotal decimal.Decimal) decimal.Decimal {
	return subTotal.Mul(TaxRate).Round(2)
}

// QuoteItems prices a cart.
func QuoteItems(items []entity.LineItem) Quote {
	sub := SubTotal(items)
	tax := Taxes(sub)
	return Quote{SubTotal: sub, Taxes: tax, Total: sub.Add(tax)}
}

// Check reports whether the given amounts are exactly what QuoteItems would
// produce for items.
func Check(items []entity.LineItem, subTotal, taxes, total decimal.Decimal) bool {
	q := QuoteItems(items)
	return q.SubTotal.Equal(subTotal) && q.Taxes.Equal(taxes) && q.Total.Equal(total)
}
