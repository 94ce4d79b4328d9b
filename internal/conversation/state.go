package conversation

import (
	"context"
	"sync"
	"time"
)

// State tracks where a thread is in the order flow.
type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateConfirmed            State = "confirmed"
)

// ThreadState is the per-sender pointer to the order a bare "ok" refers to.
type ThreadState struct {
	State          State     `json:"state"`
	CurrentOrderID string    `json:"current_order_id,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StateStore persists ThreadState keyed by thread (sender). Load returns an
// idle state for unknown threads.
type StateStore interface {
	Load(ctx context.Context, threadKey string) (ThreadState, error)
	Save(ctx context.Context, threadKey string, state ThreadState) error
}

// MemoryStateStore keeps thread state in process. Used in tests and when
// Redis is not configured.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]ThreadState
	now    func() time.Time
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		states: make(map[string]ThreadState),
		now:    time.Now,
	}
}

func (s *MemoryStateStore) Load(ctx context.Context, threadKey string) (ThreadState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[threadKey]
	if !ok {
		return ThreadState{State: StateIdle}, nil
	}
	return st, nil
}

func (s *MemoryStateStore) Save(ctx context.Context, threadKey string, state ThreadState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = s.now().UTC()
	}
	s.mu.Lock()
	s.states[threadKey] = state
	s.mu.Unlock()
	return nil
}
