package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/pharmacy-order-relay/internal/channels/whatsapp"
	"github.com/wolfman30/pharmacy-order-relay/internal/events"
	"github.com/wolfman30/pharmacy-order-relay/internal/observability/metrics"
	"github.com/wolfman30/pharmacy-order-relay/pkg/logging"
)

const defaultIntakeConcurrency = 8

// TurnHandler runs one conversation turn. *Dispatcher implements it.
type TurnHandler interface {
	HandleInboundMessage(ctx context.Context, sender, text string) Outcome
}

// ProcessedMarker claims inbound message ids. *events.ProcessedStore
// implements it.
type ProcessedMarker interface {
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// Intake receives parsed webhook messages and runs them through the
// dispatcher off the request goroutine. Messages from one sender run in
// delivery order, one at a time; different senders run concurrently on at
// most `concurrency` workers.
type Intake struct {
	handler   TurnHandler
	processed ProcessedMarker
	metrics   *metrics.OrderMetrics
	logger    *logging.Logger
	limit     int

	mu     sync.Mutex
	queues map[string][]whatsapp.InboundMessage
	ready  []string
	active int
	group  errgroup.Group
}

type IntakeConfig struct {
	Handler     TurnHandler
	Processed   ProcessedMarker
	Metrics     *metrics.OrderMetrics
	Logger      *logging.Logger
	Concurrency int
}

func NewIntake(cfg IntakeConfig) *Intake {
	if cfg.Handler == nil {
		panic("conversation: intake handler cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultIntakeConcurrency
	}
	return &Intake{
		handler:   cfg.Handler,
		processed: cfg.Processed,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		limit:     cfg.Concurrency,
		queues:    make(map[string][]whatsapp.InboundMessage),
	}
}

// Deliver enqueues messages and returns without waiting for them. The
// request context is detached so the turn outlives the webhook response.
func (i *Intake) Deliver(ctx context.Context, msgs []whatsapp.InboundMessage) {
	if len(msgs) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)

	i.mu.Lock()
	for _, msg := range msgs {
		i.metrics.ObserveInbound("accepted")
		queue, scheduled := i.queues[msg.From]
		i.queues[msg.From] = append(queue, msg)
		if !scheduled {
			i.ready = append(i.ready, msg.From)
		}
	}
	spawn := min(i.limit-i.active, len(i.ready))
	i.active += spawn
	i.mu.Unlock()

	for n := 0; n < spawn; n++ {
		i.group.Go(func() error {
			i.work(ctx)
			return nil
		})
	}
}

// Wait blocks until every delivered message has been handled or ctx ends.
func (i *Intake) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		_ = i.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("conversation: intake drain: %w", ctx.Err())
	}
}

// work drains ready senders until none are left. The exit decision is made
// under the same lock Deliver uses, so a sender is never stranded in ready.
func (i *Intake) work(ctx context.Context) {
	for {
		i.mu.Lock()
		if len(i.ready) == 0 {
			i.active--
			i.mu.Unlock()
			return
		}
		sender := i.ready[0]
		i.ready = i.ready[1:]
		i.mu.Unlock()

		i.drainSender(ctx, sender)
	}
}

func (i *Intake) drainSender(ctx context.Context, sender string) {
	for {
		i.mu.Lock()
		queue := i.queues[sender]
		if len(queue) == 0 {
			delete(i.queues, sender)
			i.mu.Unlock()
			return
		}
		msg := queue[0]
		i.queues[sender] = queue[1:]
		i.mu.Unlock()

		i.handle(ctx, msg)
	}
}

func (i *Intake) handle(ctx context.Context, msg whatsapp.InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Error("conversation turn panicked",
				"thread", logging.MaskPhone(msg.From),
				"message_id", msg.MessageID,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	if !i.claim(ctx, msg) {
		return
	}
	start := time.Now()
	out := i.handler.HandleInboundMessage(ctx, msg.From, msg.Text)
	i.logger.Debug("inbound message handled",
		"thread", logging.MaskPhone(msg.From),
		"message_id", msg.MessageID,
		"path", string(out.Path),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// claim reports whether msg should be handled. A dedup store outage lets the
// message through.
func (i *Intake) claim(ctx context.Context, msg whatsapp.InboundMessage) bool {
	if i.processed == nil || msg.MessageID == "" {
		return true
	}
	fresh, err := i.processed.MarkProcessed(ctx, events.ProviderWhatsApp, msg.MessageID)
	if err != nil {
		i.logger.Warn("message dedup unavailable", "message_id", msg.MessageID, "error", err)
		return true
	}
	if !fresh {
		i.metrics.ObserveDuplicate()
		i.logger.Info("skipping duplicate inbound message", "thread", logging.MaskPhone(msg.From), "message_id", msg.MessageID)
		return false
	}
	return true
}
