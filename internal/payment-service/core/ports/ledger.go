package ports

import (
	"context"
	"errors"

	"github.com/jcmexdev/storefront-payments/internal/payment-service/core/domain/entity"
)

// ErrOrderNotFound is returned by Ledger.Get when no row exists for the order id.
var ErrOrderNotFound = errors.New("order not found")

// Ledger is the durable store of orders keyed by order id.
//
// Upsert inserts the full row when the order id is new. For an existing row it
// only moves a pending order to a terminal status, touching payment_status,
// gateway_transaction_id and updated_at; identity, snapshots and amounts are
// never rewritten and a terminal status is never replaced. It returns the row
// as stored after the call.
type Ledger interface {
	Upsert(ctx context.Context, order *entity.Order) (*entity.Order, error)
	Get(ctx context.Context, orderID string) (*entity.Order, error)
}
