package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/pharmacy-order-relay/pkg/logging"
)

const maxWebhookBody = 1 << 20

// MessageSink receives the text messages of an accepted webhook. Deliver must
// not block on message processing; the webhook has already been acknowledged.
type MessageSink interface {
	Deliver(ctx context.Context, msgs []InboundMessage)
}

// WebhookHandler handles WhatsApp webhook verification and inbound messages.
type WebhookHandler struct {
	verifyToken string
	appSecret   string
	sink        MessageSink
	logger      *logging.Logger
}

// NewWebhookHandler creates a webhook handler. Signatures are checked only
// when appSecret is non-empty.
func NewWebhookHandler(verifyToken, appSecret string, sink MessageSink, logger *logging.Logger) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		verifyToken: verifyToken,
		appSecret:   appSecret,
		sink:        sink,
		logger:      logger,
	}
}

// HandleVerification answers the GET subscription challenge from Meta.
func (h *WebhookHandler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && h.verifyToken != "" && token == h.verifyToken {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, challenge)
		return
	}

	h.logger.Warn("whatsapp: webhook verification rejected", "mode", mode)
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// HandleInbound accepts a POST event batch and hands text messages to the sink.
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.reject(w, &TransportError{Reason: "read body", Err: err}, http.StatusBadRequest)
		return
	}

	if h.appSecret != "" && !VerifySignature(h.appSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		h.reject(w, &TransportError{Reason: "signature", Err: ErrInvalidSignature}, http.StatusUnauthorized)
		return
	}

	msgs, err := ParseWebhook(body)
	if err != nil {
		h.reject(w, err, http.StatusBadRequest)
		return
	}

	// Meta retries anything that is not acknowledged quickly.
	w.WriteHeader(http.StatusOK)

	if len(msgs) > 0 && h.sink != nil {
		h.sink.Deliver(r.Context(), msgs)
	}
}

func (h *WebhookHandler) reject(w http.ResponseWriter, err error, status int) {
	h.logger.Warn("whatsapp: webhook rejected", "status", status, "error", err)
	http.Error(w, http.StatusText(status), status)
}

// ParseWebhook decodes a webhook body and returns its text messages in
// delivery order. Non-text messages and status receipts are skipped.
func ParseWebhook(body []byte) ([]InboundMessage, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, &TransportError{Reason: "decode", Err: err}
	}
	if event.Object != "" && event.Object != "whatsapp_business_account" {
		return nil, &TransportError{Reason: "object", Err: fmt.Errorf("%w: %q", ErrUnexpectedObject, event.Object)}
	}
	return ParseWebhookEvent(event), nil
}

// ParseWebhookEvent extracts the text messages from a decoded event.
func ParseWebhookEvent(event WebhookEvent) []InboundMessage {
	var messages []InboundMessage
	for _, entry := range event.Entry {
		for _, change := range entry.Changes {
			for _, m := range change.Value.Messages {
				if m.Type != "text" || m.Text == nil || strings.TrimSpace(m.From) == "" {
					continue
				}
				messages = append(messages, InboundMessage{
					MessageID:     m.ID,
					From:          m.From,
					Text:          m.Text.Body,
					PhoneNumberID: change.Value.Metadata.PhoneNumberID,
					Timestamp:     parseUnix(m.Timestamp),
				})
			}
		}
	}
	return messages
}

func parseUnix(raw string) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || secs <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}

// VerifySignature verifies the X-Hub-Signature-256 header.
func VerifySignature(appSecret string, body []byte, signature string) bool {
	if appSecret == "" || signature == "" {
		return false
	}

	// Signature format: "sha256=<hex>"
	const prefix = "sha256="
	if !strings.HasPrefix(signature, prefix) || len(signature) == len(prefix) {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature[len(prefix):]))
}

