package extraction

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/pharmacy-order-relay/internal/orders"
	"github.com/wolfman30/pharmacy-order-relay/pkg/logging"
)

var tracer = otel.Tracer("pharmacy-order-relay/internal/extraction")

// Config tunes the extraction request.
type Config struct {
	Model       string
	MaxTokens   int32
	Temperature float32
}

// Extractor turns free text into an OrderIntent through an LLM.
type Extractor struct {
	llm    LLMClient
	cfg    Config
	logger *logging.Logger
}

func NewExtractor(llm LLMClient, cfg Config, logger *logging.Logger) *Extractor {
	if llm == nil {
		panic("extraction: llm client required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultBedrockModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Extractor{llm: llm, cfg: cfg, logger: logger}
}

// Extract asks the model for the order fields in text. Every failure is an *Error.
func (e *Extractor) Extract(ctx context.Context, text string) (orders.OrderIntent, error) {
	ctx, span := tracer.Start(ctx, "extraction.Extract")
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return orders.OrderIntent{}, &Error{Reason: "empty_message", Err: ErrEmptyMessage}
	}

	start := time.Now()
	resp, err := e.llm.Complete(ctx, LLMRequest{
		Model:        e.cfg.Model,
		Instructions: systemPrompt,
		OrderText:    text,
		MaxTokens:    e.cfg.MaxTokens,
		Temperature:  e.cfg.Temperature,
	})
	span.SetAttributes(
		attribute.String("extraction.model", e.cfg.Model),
		attribute.Int64("extraction.latency_ms", time.Since(start).Milliseconds()),
		attribute.Int("extraction.input_tokens", int(resp.InputTokens)),
		attribute.Int("extraction.output_tokens", int(resp.OutputTokens)),
		attribute.String("extraction.stop_reason", resp.StopReason),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "llm call failed")
		return orders.OrderIntent{}, &Error{Reason: "llm", Err: err}
	}

	intent, err := ParseIntent(resp.Text)
	if err != nil {
		span.SetStatus(codes.Error, "unparseable output")
		e.logger.Debug("extraction: unparseable model output", "output", truncate(resp.Text, 200), "error", err)
		return orders.OrderIntent{}, err
	}
	return intent, nil
}

type intentPayload struct {
	PharmacyName           *string `json:"pharmacy_name"`
	SellerName             *string `json:"seller_name"`
	CustomerNameOrOrderRef *string `json:"customer_name_or_order_ref"`
}

// ParseIntent decodes a model reply, tolerating code fences and prose around
// the JSON object. All three keys must be present and the pharmacy name set.
func ParseIntent(raw string) (orders.OrderIntent, error) {
	text := extractJSONObject(stripCodeFence(raw))
	if text == "" {
		return orders.OrderIntent{}, &Error{Reason: "malformed_output", Err: ErrMalformedOutput}
	}

	var payload intentPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return orders.OrderIntent{}, &Error{Reason: "malformed_output", Err: ErrMalformedOutput}
	}
	if payload.PharmacyName == nil || payload.SellerName == nil || payload.CustomerNameOrOrderRef == nil {
		return orders.OrderIntent{}, &Error{Reason: "missing_fields", Err: ErrMissingFields}
	}

	intent := orders.OrderIntent{
		PharmacyName:           strings.TrimSpace(*payload.PharmacyName),
		SellerName:             strings.TrimSpace(*payload.SellerName),
		CustomerNameOrOrderRef: strings.TrimSpace(*payload.CustomerNameOrOrderRef),
	}
	if intent.PharmacyName == "" {
		return orders.OrderIntent{}, &Error{Reason: "missing_fields", Err: ErrMissingFields}
	}
	return intent, nil
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
