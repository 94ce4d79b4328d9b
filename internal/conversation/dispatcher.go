package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/pharmacy-order-relay/internal/events"
	"github.com/wolfman30/pharmacy-order-relay/internal/observability/metrics"
	"github.com/wolfman30/pharmacy-order-relay/internal/orders"
	"github.com/wolfman30/pharmacy-order-relay/pkg/logging"
)

var dispatcherTracer = otel.Tracer("pharmacy.internal.conversation.dispatcher")

// Extractor turns free text into an order intent.
type Extractor interface {
	Extract(ctx context.Context, text string) (orders.OrderIntent, error)
}

// Quoter is the partner pharmacy API.
type Quoter interface {
	Quote(ctx context.Context, intent orders.OrderIntent) (orders.Quotation, error)
	Confirm(ctx context.Context, orderID string) error
}

// Messenger delivers a text reply to a WhatsApp user.
type Messenger interface {
	Send(ctx context.Context, to, text string) error
}

// Path is the branch a turn took.
type Path string

const (
	PathNewOrder Path = "new_order"
	PathConfirm  Path = "confirm"
)

// Turn results, used as metric labels.
const (
	ResultQuoted           = "quoted"
	ResultConfirmed        = "confirmed"
	ResultExtractionFailed = "extraction_failed"
	ResultQuotationFailed  = "quotation_failed"
	ResultStoreFailed      = "store_failed"
	ResultConfirmFailed    = "confirm_failed"
	ResultNothingPending   = "nothing_pending"
)

// Outcome describes what one inbound message caused. Err is the failure that
// ended the turn; NotifyErr is set when the reply itself could not be sent.
type Outcome struct {
	Path      Path
	Result    string
	OrderID   string
	Err       error
	Notified  bool
	NotifyErr error
}

// Timeouts bound every external call made during a turn.
type Timeouts struct {
	Extraction time.Duration
	Quotation  time.Duration
	Messaging  time.Duration
	Store      time.Duration
}

// DispatcherConfig wires the dispatcher. Transcript, Events and Metrics are
// optional.
type DispatcherConfig struct {
	Extractor      Extractor
	Quoter         Quoter
	Messenger      Messenger
	Orders         orders.Store
	States         StateStore
	Transcript     TranscriptRecorder
	Events         events.Publisher
	Metrics        *metrics.OrderMetrics
	Logger         *logging.Logger
	Timeouts       Timeouts
	ConfirmKeyword string
	ReplyFooter    string
}

// Dispatcher routes each inbound message to the new-order or confirm path.
type Dispatcher struct {
	extractor  Extractor
	quoter     Quoter
	messenger  Messenger
	orders     orders.Store
	states     StateStore
	transcript TranscriptRecorder
	events     events.Publisher
	metrics    *metrics.OrderMetrics
	logger     *logging.Logger
	timeouts   Timeouts
	keyword    *KeywordDetector
	replies    Replies
}

func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	switch {
	case cfg.Extractor == nil:
		return nil, errors.New("conversation: extractor is required")
	case cfg.Quoter == nil:
		return nil, errors.New("conversation: quoter is required")
	case cfg.Messenger == nil:
		return nil, errors.New("conversation: messenger is required")
	case cfg.Orders == nil:
		return nil, errors.New("conversation: order store is required")
	}
	if cfg.States == nil {
		cfg.States = NewMemoryStateStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	keyword := NewKeywordDetector(cfg.ConfirmKeyword)
	return &Dispatcher{
		extractor:  cfg.Extractor,
		quoter:     cfg.Quoter,
		messenger:  cfg.Messenger,
		orders:     cfg.Orders,
		states:     cfg.States,
		transcript: cfg.Transcript,
		events:     cfg.Events,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		timeouts:   cfg.Timeouts,
		keyword:    keyword,
		replies:    NewReplies(keyword.Keyword(), cfg.ReplyFooter),
	}, nil
}

// HandleInboundMessage runs one conversation turn for sender. Callers must
// serialize turns per sender.
func (d *Dispatcher) HandleInboundMessage(ctx context.Context, sender, text string) Outcome {
	ctx, span := dispatcherTracer.Start(ctx, "conversation.handle_inbound")
	defer span.End()
	start := time.Now()

	d.record(ctx, TranscriptEntry{ThreadKey: sender, Direction: DirectionInbound, Body: text})

	var out Outcome
	if d.keyword.IsConfirmation(text) {
		out = d.confirm(ctx, sender)
	} else {
		out = d.newOrder(ctx, sender, text)
	}

	span.SetAttributes(
		attribute.String("conversation.path", string(out.Path)),
		attribute.String("conversation.result", out.Result),
		attribute.String("order.id", out.OrderID),
		attribute.Bool("conversation.notified", out.Notified),
	)
	if out.Err != nil {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, out.Result)
	}
	d.metrics.ObserveTurn(string(out.Path), out.Result, time.Since(start).Seconds())

	log := d.logger.With(
		"thread", logging.MaskPhone(sender),
		"path", string(out.Path),
		"result", out.Result,
		"order_id", out.OrderID,
		"notified", out.Notified,
	)
	switch {
	case out.Err != nil:
		log.Warn("conversation turn failed", "error", out.Err)
	case out.NotifyErr != nil:
		log.Warn("conversation reply not delivered", "error", out.NotifyErr)
	default:
		log.Info("conversation turn handled")
	}
	return out
}

func (d *Dispatcher) newOrder(ctx context.Context, sender, text string) Outcome {
	out := Outcome{Path: PathNewOrder}

	intent, err := d.extract(ctx, text)
	if err != nil {
		return d.abort(ctx, sender, out, ResultExtractionFailed, err, d.replies.NotUnderstood())
	}
	intent.ThreadKey = sender
	intent.OrderID = uuid.NewString()

	quote, err := d.quote(ctx, intent)
	if err != nil {
		return d.abort(ctx, sender, out, ResultQuotationFailed, err, d.replies.QuotationFailed())
	}
	if sum := quote.ItemsTotal(); len(quote.Items) > 0 && !sum.Equal(quote.Total) {
		d.logger.Warn("partner total differs from item sum",
			"thread", logging.MaskPhone(sender),
			"total", quote.Total.StringFixed(2),
			"items_total", sum.StringFixed(2),
		)
	}

	order := orders.NewPendingOrder(intent, quote)
	orderID, err := d.createOrder(ctx, order)
	if err != nil {
		return d.abort(ctx, sender, out, ResultStoreFailed, err, d.replies.ResendOrder())
	}
	order.ID = orderID
	out.OrderID = orderID

	d.saveState(ctx, sender, ThreadState{State: StateAwaitingConfirmation, CurrentOrderID: orderID})
	d.publish(ctx, events.OrderQuotedV1, order)

	out.Result = ResultQuoted
	d.notify(ctx, sender, orderID, d.replies.QuotationSummary(order), &out)
	return out
}

func (d *Dispatcher) confirm(ctx context.Context, sender string) Outcome {
	out := Outcome{Path: PathConfirm}

	orderID, err := d.resolveOrder(ctx, sender)
	if err != nil {
		return d.abort(ctx, sender, out, ResultStoreFailed, err, d.replies.ConfirmRetry())
	}
	if orderID == "" {
		out.Result = ResultNothingPending
		d.notify(ctx, sender, "", d.replies.NothingPending(), &out)
		return out
	}
	out.OrderID = orderID

	affected, err := d.setStatus(ctx, orderID, orders.StatusConfirmed)
	if err != nil {
		return d.abort(ctx, sender, out, ResultStoreFailed, err, d.replies.ConfirmRetry())
	}
	if affected == 0 {
		d.logger.Debug("order already confirmed", "order_id", orderID)
	}

	if err := d.partnerConfirm(ctx, orderID); err != nil {
		d.saveState(ctx, sender, ThreadState{State: StateAwaitingConfirmation, CurrentOrderID: orderID})
		return d.abort(ctx, sender, out, ResultConfirmFailed, err, d.replies.ConfirmRetry())
	}

	d.saveState(ctx, sender, ThreadState{State: StateConfirmed, CurrentOrderID: orderID})
	d.publish(ctx, events.OrderConfirmedV1, d.snapshot(ctx, orderID, sender))

	out.Result = ResultConfirmed
	d.notify(ctx, sender, orderID, d.replies.Confirmed(), &out)
	return out
}

// resolveOrder prefers the thread state and falls back to the latest
// persisted order. An empty id means there is nothing to confirm.
func (d *Dispatcher) resolveOrder(ctx context.Context, sender string) (string, error) {
	st, err := d.states.Load(ctx, sender)
	if err != nil {
		d.logger.Warn("thread state unavailable, using order store", "thread", logging.MaskPhone(sender), "error", err)
	} else if st.CurrentOrderID != "" {
		return st.CurrentOrderID, nil
	}

	callCtx, cancel := withTimeout(ctx, d.timeouts.Store)
	defer cancel()
	start := time.Now()
	latest, err := d.orders.LatestForThread(callCtx, sender)
	if errors.Is(err, orders.ErrOrderNotFound) {
		d.metrics.ObserveAdapter("store", nil, time.Since(start).Seconds())
		return "", nil
	}
	d.metrics.ObserveAdapter("store", err, time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	return latest.ID, nil
}

// abort ends a turn on err and tells the user what happened.
func (d *Dispatcher) abort(ctx context.Context, sender string, out Outcome, result string, err error, reply string) Outcome {
	out.Result = result
	out.Err = err
	d.notify(ctx, sender, out.OrderID, reply, &out)
	return out
}

func (d *Dispatcher) notify(ctx context.Context, to, orderID, text string, out *Outcome) {
	callCtx, cancel := withTimeout(ctx, d.timeouts.Messaging)
	defer cancel()

	start := time.Now()
	err := d.messenger.Send(callCtx, to, text)
	d.metrics.ObserveAdapter("messaging", err, time.Since(start).Seconds())
	if err != nil {
		d.metrics.ObserveOutbound("failed")
		out.NotifyErr = err
		return
	}
	d.metrics.ObserveOutbound("sent")
	out.Notified = true
	d.record(ctx, TranscriptEntry{ThreadKey: to, Direction: DirectionOutbound, Body: text, OrderID: orderID})
}

func (d *Dispatcher) extract(ctx context.Context, text string) (orders.OrderIntent, error) {
	callCtx, cancel := withTimeout(ctx, d.timeouts.Extraction)
	defer cancel()
	start := time.Now()
	intent, err := d.extractor.Extract(callCtx, text)
	d.metrics.ObserveAdapter("llm", err, time.Since(start).Seconds())
	return intent, err
}

func (d *Dispatcher) quote(ctx context.Context, intent orders.OrderIntent) (orders.Quotation, error) {
	callCtx, cancel := withTimeout(ctx, d.timeouts.Quotation)
	defer cancel()
	start := time.Now()
	q, err := d.quoter.Quote(callCtx, intent)
	d.metrics.ObserveAdapter("partner", err, time.Since(start).Seconds())
	return q, err
}

func (d *Dispatcher) partnerConfirm(ctx context.Context, orderID string) error {
	callCtx, cancel := withTimeout(ctx, d.timeouts.Quotation)
	defer cancel()
	start := time.Now()
	err := d.quoter.Confirm(callCtx, orderID)
	d.metrics.ObserveAdapter("partner", err, time.Since(start).Seconds())
	return err
}

func (d *Dispatcher) createOrder(ctx context.Context, order *orders.Order) (string, error) {
	callCtx, cancel := withTimeout(ctx, d.timeouts.Store)
	defer cancel()
	start := time.Now()
	id, err := d.orders.CreateOrder(callCtx, order)
	d.metrics.ObserveAdapter("store", err, time.Since(start).Seconds())
	return id, err
}

func (d *Dispatcher) setStatus(ctx context.Context, orderID string, status orders.Status) (int64, error) {
	callCtx, cancel := withTimeout(ctx, d.timeouts.Store)
	defer cancel()
	start := time.Now()
	n, err := d.orders.SetStatus(callCtx, orderID, status)
	d.metrics.ObserveAdapter("store", err, time.Since(start).Seconds())
	return n, err
}

// saveState is best effort; LatestForThread covers a lost write.
func (d *Dispatcher) saveState(ctx context.Context, sender string, st ThreadState) {
	if err := d.states.Save(ctx, sender, st); err != nil {
		d.logger.Warn("failed to save thread state", "thread", logging.MaskPhone(sender), "state", string(st.State), "error", err)
	}
}

func (d *Dispatcher) publish(ctx context.Context, eventType events.OrderEventType, order *orders.Order) {
	if d.events == nil {
		return
	}
	if err := d.events.PublishOrderEvent(ctx, events.NewOrderEvent(eventType, order)); err != nil {
		d.logger.Warn("failed to publish order event", "type", string(eventType), "order_id", order.ID, "error", err)
	}
}

// snapshot loads the order for an event payload, degrading to the ids when
// the store read fails.
func (d *Dispatcher) snapshot(ctx context.Context, orderID, sender string) *orders.Order {
	fallback := &orders.Order{ID: orderID, ThreadKey: sender, Status: orders.StatusConfirmed}
	if d.events == nil {
		return fallback
	}
	callCtx, cancel := withTimeout(ctx, d.timeouts.Store)
	defer cancel()
	order, err := d.orders.GetOrder(callCtx, orderID)
	if err != nil {
		return fallback
	}
	return order
}

func (d *Dispatcher) record(ctx context.Context, entry TranscriptEntry) {
	if d.transcript == nil {
		return
	}
	if err := d.transcript.Record(ctx, entry); err != nil {
		d.logger.Warn("failed to record transcript", "thread", logging.MaskPhone(entry.ThreadKey), "error", err)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
