package initiator

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// OrderIDPrefix marks order ids generated at checkout.
const OrderIDPrefix = "ORD-"

// NewOrderID returns a time-ordered, collision-free order id such as
// ORD-01JAF3X6W5S2D9Q8P7N4M3K2H1. The ULID's leading timestamp keeps ids
// sortable and lets support staff read when an order was placed.
func NewOrderID() string {
	return OrderIDPrefix + ulid.Make().String()
}

// OrderTime returns the creation time encoded in an order id.
func OrderTime(orderID string) (time.Time, error) {
	raw, ok := strings.CutPrefix(orderID, OrderIDPrefix)
	if !ok {
		return time.Time{}, fmt.Errorf("initiator: order id %q lacks the %s prefix", orderID, OrderIDPrefix)
	}
	id, err := ulid.ParseStrict(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("initiator: parse order id %q: %w", orderID, err)
	}
	return ulid.Time(id.Time()), nil
}
