package orders

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used in development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	orders   map[string]*Order
	byThread map[string][]string
	nextItem int64
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:   make(map[string]*Order),
		byThread: make(map[string][]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) CreateOrder(ctx context.Context, order *Order) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", storeErr("create order", err)
	}
	if err := order.Validate(); err != nil {
		return "", storeErr("create order", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if _, exists := s.orders[order.ID]; exists {
		return "", storeErr("insert order", ErrInvalidOrder)
	}
	if order.Status == "" {
		order.Status = StatusPending
	}
	now := s.now()
	order.CreatedAt, order.UpdatedAt = now, now
	for i := range order.Items {
		s.nextItem++
		order.Items[i].ID = s.nextItem
		order.Items[i].OrderID = order.ID
	}

	s.orders[order.ID] = cloneOrder(order)
	s.byThread[order.ThreadKey] = append(s.byThread[order.ThreadKey], order.ID)
	return order.ID, nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, orderID string, status Status) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, storeErr("set status", err)
	}
	if !status.Valid() {
		return 0, storeErr("set status", ErrInvalidStatus)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[orderID]
	if !ok || order.Status == status {
		return 0, nil
	}
	order.Status = status
	order.UpdatedAt = s.now()
	return 1, nil
}

func (s *MemoryStore) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order, ok := s.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

func (s *MemoryStore) LatestForThread(ctx context.Context, threadKey string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byThread[threadKey]
	if len(ids) == 0 {
		return nil, ErrOrderNotFound
	}
	return cloneOrder(s.orders[ids[len(ids)-1]]), nil
}

func cloneOrder(o *Order) *Order {
	cp := *o
	cp.Items = append([]OrderItem{}, o.Items...)
	return &cp
}
