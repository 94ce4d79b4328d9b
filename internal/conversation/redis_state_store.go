package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultStateTTL = 72 * time.Hour

// RedisStateStore keeps thread state in Redis with a sliding TTL. An expired
// key behaves like an idle thread; the dispatcher falls back to the order
// store for the latest order.
type RedisStateStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisStateStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisStateStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("pharmacy.internal.conversation.state")
	}
	return &RedisStateStore{redis: client, ttl: ttl, tracer: tracer}
}

func (s *RedisStateStore) Load(ctx context.Context, threadKey string) (ThreadState, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_state")
	defer span.End()

	data, err := s.redis.Get(ctx, threadStateKey(threadKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ThreadState{State: StateIdle}, nil
		}
		span.RecordError(err)
		return ThreadState{}, fmt.Errorf("conversation: failed to load state: %w", err)
	}

	var st ThreadState
	if err := json.Unmarshal(data, &st); err != nil {
		span.RecordError(err)
		return ThreadState{}, fmt.Errorf("conversation: failed to decode state: %w", err)
	}
	if st.State == "" {
		st.State = StateIdle
	}
	span.SetAttributes(attribute.String("conversation.state", string(st.State)))
	return st, nil
}

func (s *RedisStateStore) Save(ctx context.Context, threadKey string, state ThreadState) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_state")
	defer span.End()

	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}
	span.SetAttributes(attribute.String("conversation.state", string(state.State)))

	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal state: %w", err)
	}
	if err := s.redis.Set(ctx, threadStateKey(threadKey), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist state: %w", err)
	}
	return nil
}

func threadStateKey(threadKey string) string {
	return fmt.Sprintf("order_thread:%s", threadKey)
}
