package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wolfman30/pharmacy-order-relay/internal/conversation"
	"github.com/wolfman30/pharmacy-order-relay/internal/orders"
	"github.com/wolfman30/pharmacy-order-relay/pkg/logging"
)

// OrderReader is the read side of the order store.
type OrderReader interface {
	GetOrder(ctx context.Context, orderID string) (*orders.Order, error)
	LatestForThread(ctx context.Context, threadKey string) (*orders.Order, error)
}

// TranscriptLister returns recent messages for a thread.
type TranscriptLister interface {
	ListByThread(ctx context.Context, threadKey string, limit int) ([]conversation.TranscriptEntry, error)
}

// AdminOrdersHandler serves read-only order lookups for operators.
type AdminOrdersHandler struct {
	orders      OrderReader
	transcripts TranscriptLister
	logger      *logging.Logger
}

// NewAdminOrdersHandler creates the handler. transcripts may be nil.
func NewAdminOrdersHandler(store OrderReader, transcripts TranscriptLister, logger *logging.Logger) *AdminOrdersHandler {
	if store == nil {
		panic("handlers: order store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminOrdersHandler{orders: store, transcripts: transcripts, logger: logger}
}

// OrderResponse is an order as returned by the admin API. Money is rendered
// with two decimals.
type OrderResponse struct {
	OrderID      string              `json:"order_id"`
	ThreadKey    string              `json:"thread_key"`
	PharmacyName string              `json:"pharmacy_name"`
	SellerName   string              `json:"seller_name"`
	CustomerName string              `json:"customer_name,omitempty"`
	TotalValue   string              `json:"total_value"`
	Status       string              `json:"status"`
	Items        []OrderItemResponse `json:"items"`
	CreatedAt    string              `json:"created_at"`
	UpdatedAt    string              `json:"updated_at"`
}

type OrderItemResponse struct {
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	Subtotal    string `json:"subtotal"`
}

// ThreadResponse is the latest order of a thread plus its recent messages.
type ThreadResponse struct {
	ThreadKey   string                         `json:"thread_key"`
	LatestOrder *OrderResponse                 `json:"latest_order,omitempty"`
	Messages    []conversation.TranscriptEntry `json:"messages"`
}

// GetOrder handles GET /admin/orders/{orderID}.
func (h *AdminOrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if _, err := uuid.Parse(orderID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, err := h.orders.GetOrder(r.Context(), orderID)
	if errors.Is(err, orders.ErrOrderNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get order", "order_id", orderID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// GetThread handles GET /admin/threads/{threadKey}?limit=N.
func (h *AdminOrdersHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	threadKey := chi.URLParam(r, "threadKey")
	if threadKey == "" {
		writeError(w, http.StatusBadRequest, "missing thread key")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	resp := ThreadResponse{ThreadKey: threadKey, Messages: []conversation.TranscriptEntry{}}

	latest, err := h.orders.LatestForThread(r.Context(), threadKey)
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
	case err != nil:
		h.logger.Error("failed to load latest order", "thread", logging.MaskPhone(threadKey), "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	default:
		o := toOrderResponse(latest)
		resp.LatestOrder = &o
	}

	if h.transcripts != nil {
		msgs, err := h.transcripts.ListByThread(r.Context(), threadKey, limit)
		if err != nil {
			h.logger.Error("failed to list transcript", "thread", logging.MaskPhone(threadKey), "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if msgs != nil {
			resp.Messages = msgs
		}
	}

	if resp.LatestOrder == nil && len(resp.Messages) == 0 {
		writeError(w, http.StatusNotFound, "thread not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func toOrderResponse(o *orders.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemResponse{
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(2),
			Subtotal:    orders.QuoteItem{Quantity: item.Quantity, UnitPrice: item.UnitPrice}.Subtotal().StringFixed(2),
		})
	}
	return OrderResponse{
		OrderID:      o.ID,
		ThreadKey:    o.ThreadKey,
		PharmacyName: o.PharmacyName,
		SellerName:   o.SellerName,
		CustomerName: o.CustomerName,
		TotalValue:   o.TotalValue.StringFixed(2),
		Status:       string(o.Status),
		Items:        items,
		CreatedAt:    o.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    o.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
