package orders

import "context"

// Store persists orders and their items. Amounts are kept at MoneyPlaces
// decimal places.
type Store interface {
	// CreateOrder inserts the order and every item atomically and returns the
	// order id. A preset order.ID is kept; otherwise a new one is generated.
	CreateOrder(ctx context.Context, order *Order) (string, error)
	// SetStatus moves an order to status and returns the number of rows changed.
	// Setting the status an order already has changes nothing and is not an error.
	SetStatus(ctx context.Context, orderID string, status Status) (int64, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	// LatestForThread returns the most recently created order for a thread.
	LatestForThread(ctx context.Context, threadKey string) (*Order, error)
}
