package orders

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a persisted order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusConfirmed
}

// OrderIntent is what the language model pulls out of a free-text order
// request. The dispatcher stamps ThreadKey with the sender id and OrderID
// with the id the order will be stored and confirmed under, so the partner
// sees the same id at quote and confirm time.
type OrderIntent struct {
	PharmacyName           string `json:"pharmacy_name"`
	SellerName             string `json:"seller_name"`
	CustomerNameOrOrderRef string `json:"customer_name_or_order_ref"`
	ThreadKey              string `json:"thread_key,omitempty"`
	OrderID                string `json:"order_id,omitempty"`
}

// QuoteItem is a single priced line returned by the partner API.
type QuoteItem struct {
	ProductName string          `json:"name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"price"`
}

// Subtotal is quantity times unit price.
func (i QuoteItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Quotation is the partner's price for an OrderIntent.
type Quotation struct {
	Items []QuoteItem     `json:"items"`
	Total decimal.Decimal `json:"total"`
}

// ItemsTotal sums the line subtotals. The partner owns Total; this is only
// used to flag mismatches.
func (q Quotation) ItemsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, item := range q.Items {
		sum = sum.Add(item.Subtotal())
	}
	return sum
}

// Order is the persisted aggregate.
type Order struct {
	ID           string          `json:"order_id"`
	ThreadKey    string          `json:"thread_key"`
	PharmacyName string          `json:"pharmacy_name"`
	SellerName   string          `json:"seller_name"`
	CustomerName string          `json:"customer_name,omitempty"`
	TotalValue   decimal.Decimal `json:"total_value"`
	Status       Status          `json:"status"`
	Items        []OrderItem     `json:"items"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// OrderItem is owned by its Order and only created together with it.
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     string          `json:"order_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// MoneyPlaces is the scale of every stored amount; the orders table uses
// NUMERIC(12,2).
const MoneyPlaces = 2

// NewPendingOrder builds the order to persist from a quoted intent. Amounts
// are rounded to MoneyPlaces so every store holds the same values.
func NewPendingOrder(intent OrderIntent, quote Quotation) *Order {
	items := make([]OrderItem, 0, len(quote.Items))
	for _, qi := range quote.Items {
		items = append(items, OrderItem{
			ProductName: qi.ProductName,
			Quantity:    qi.Quantity,
			UnitPrice:   qi.UnitPrice.Round(MoneyPlaces),
		})
	}
	return &Order{
		ID:           intent.OrderID,
		ThreadKey:    intent.ThreadKey,
		PharmacyName: intent.PharmacyName,
		SellerName:   intent.SellerName,
		CustomerName: intent.CustomerNameOrOrderRef,
		TotalValue:   quote.Total.Round(MoneyPlaces),
		Status:       StatusPending,
		Items:        items,
	}
}

// Validate checks the fields the store relies on.
func (o *Order) Validate() error {
	if o == nil || strings.TrimSpace(o.ThreadKey) == "" {
		return ErrInvalidOrder
	}
	if o.Status != "" && !o.Status.Valid() {
		return ErrInvalidOrder
	}
	if o.TotalValue.IsNegative() {
		return ErrInvalidOrder
	}
	for _, item := range o.Items {
		if item.Quantity <= 0 || item.UnitPrice.IsNegative() {
			return ErrInvalidOrder
		}
	}
	return nil
}
