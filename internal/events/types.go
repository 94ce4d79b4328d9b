package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/pharmacy-order-relay/internal/orders"
)

// OrderEventType names a lifecycle transition published to the order topic.
type OrderEventType string

const (
	OrderQuotedV1    OrderEventType = "order.quoted"
	OrderConfirmedV1 OrderEventType = "order.confirmed"
)

type OrderEvent struct {
	EventID      string         `json:"event_id"`
	Type         OrderEventType `json:"type"`
	OrderID      string         `json:"order_id"`
	ThreadKey    string         `json:"thread_key"`
	Status       orders.Status  `json:"status"`
	PharmacyName string         `json:"pharmacy_name,omitempty"`
	TotalValue   string         `json:"total_value,omitempty"`
	ItemCount    int            `json:"item_count"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// NewOrderEvent snapshots order for publication.
func NewOrderEvent(eventType OrderEventType, order *orders.Order) OrderEvent {
	evt := OrderEvent{
		EventID:    uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
	}
	if order == nil {
		return evt
	}
	evt.OrderID = order.ID
	evt.ThreadKey = order.ThreadKey
	evt.Status = order.Status
	evt.PharmacyName = order.PharmacyName
	evt.TotalValue = order.TotalValue.StringFixed(2)
	evt.ItemCount = len(order.Items)
	return evt
}
