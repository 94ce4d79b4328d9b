package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/pharmacy-order-relay/internal/channels/whatsapp"
	"github.com/wolfman30/pharmacy-order-relay/internal/conversation"
	"github.com/wolfman30/pharmacy-order-relay/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/pharmacy-order-relay/internal/http/middleware"
	"github.com/wolfman30/pharmacy-order-relay/internal/observability/metrics"
	"github.com/wolfman30/pharmacy-order-relay/internal/orders"
	"github.com/wolfman30/pharmacy-order-relay/pkg/logging"
)

const (
	testVerifyToken = "verify-me"
	testAdminSecret = "admin-secret"
	testSender      = "+551199999"
)

type staticExtractor struct{}

func (staticExtractor) Extract(ctx context.Context, text string) (orders.OrderIntent, error) {
	return orders.OrderIntent{PharmacyName: "Farmácia X", SellerName: "João", CustomerNameOrOrderRef: "Maria"}, nil
}

type staticQuoter struct {
	mu        sync.Mutex
	confirmed []string
}

func (q *staticQuoter) Quote(ctx context.Context, intent orders.OrderIntent) (orders.Quotation, error) {
	return orders.Quotation{
		Items: []orders.QuoteItem{
			{ProductName: "Dipirona", Quantity: 2, UnitPrice: decimal.RequireFromString("5")},
			{ProductName: "Paracetamol", Quantity: 1, UnitPrice: decimal.RequireFromString("8")},
		},
		Total: decimal.RequireFromString("18"),
	}, nil
}

func (q *staticQuoter) Confirm(ctx context.Context, orderID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.confirmed = append(q.confirmed, orderID)
	return nil
}

type captureMessenger struct {
	mu   sync.Mutex
	sent []string
}

func (m *captureMessenger) Send(ctx context.Context, to, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, to+": "+text)
	return nil
}

type testApp struct {
	handler   http.Handler
	intake    *conversation.Intake
	store     *orders.MemoryStore
	quoter    *staticQuoter
	messenger *captureMessenger
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	logger := logging.NewWithWriter(&bytes.Buffer{}, "error")
	reg := prometheus.NewRegistry()
	orderMetrics := metrics.NewOrderMetrics(reg)

	app := &testApp{
		store:     orders.NewMemoryStore(),
		quoter:    &staticQuoter{},
		messenger: &captureMessenger{},
	}
	dispatcher, err := conversation.NewDispatcher(conversation.DispatcherConfig{
		Extractor: staticExtractor{},
		Quoter:    app.quoter,
		Messenger: app.messenger,
		Orders:    app.store,
		Metrics:   orderMetrics,
		Logger:    logger,
	})
	require.NoError(t, err)
	app.intake = conversation.NewIntake(conversation.IntakeConfig{
		Handler: dispatcher,
		Metrics: orderMetrics,
		Logger:  logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	app.handler = New(&Config{
		Logger:          logger,
		WhatsApp:        whatsapp.NewWebhookHandler(testVerifyToken, "", app.intake, logger),
		Health:          handlers.NewHealthHandler(nil, time.Second, logger),
		AdminOrders:     handlers.NewAdminOrdersHandler(app.store, nil, logger),
		AdminAuthSecret: testAdminSecret,
		MetricsHandler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		WebhookLimiter:  httpmiddleware.NewRateLimiter(ctx, 100, 100),
	})
	return app
}

func (a *testApp) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.intake.Wait(ctx))
}

func webhookBody(id, from, text string) []byte {
	return []byte(fmt.Sprintf(`{
		"object": "whatsapp_business_account",
		"entry": [{"id": "1", "changes": [{"field": "messages", "value": {
			"messaging_product": "whatsapp",
			"metadata": {"display_phone_number": "5511000000000", "phone_number_id": "123"},
			"messages": [{"from": %q, "id": %q, "timestamp": "1717000000", "type": "text", "text": {"body": %q}}]
		}}]}]
	}`, from, id, text))
}

func adminToken(t *testing.T) string {
	t.Helper()
	claims := httpmiddleware.AdminClaims{
		Scope: httpmiddleware.AdminScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAdminSecret))
	require.NoError(t, err)
	return signed
}

func TestRouterHealthEndpoint(t *testing.T) {
	app := newTestApp(t)

	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])

	rr = httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRouterWebhookVerification(t *testing.T) {
	app := newTestApp(t)

	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token="+testVerifyToken+"&hub.challenge=1158201444", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "1158201444", rr.Body.String())

	rr = httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=1", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRouterWebhookOrderAndConfirm(t *testing.T) {
	app := newTestApp(t)

	post := func(body []byte) int {
		rr := httptest.NewRecorder()
		app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", bytes.NewReader(body)))
		return rr.Code
	}

	require.Equal(t, http.StatusOK, post(webhookBody("wamid.1", testSender, "Farmácia X, vendedor João, cliente Maria")))
	app.drain(t)
	require.Equal(t, http.StatusOK, post(webhookBody("wamid.2", testSender, "OK")))
	app.drain(t)

	latest, err := app.store.LatestForThread(context.Background(), testSender)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusConfirmed, latest.Status)
	assert.Equal(t, "18.00", latest.TotalValue.StringFixed(2))
	assert.Equal(t, []string{latest.ID}, app.quoter.confirmed)

	app.messenger.mu.Lock()
	require.Len(t, app.messenger.sent, 2)
	assert.Contains(t, app.messenger.sent[0], "Total: R$ 18.00")
	assert.Contains(t, app.messenger.sent[1], "Pedido confirmado")
	app.messenger.mu.Unlock()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/orders/"+latest.ID, nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	app.handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var order handlers.OrderResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &order))
	assert.Equal(t, "confirmed", order.Status)

	rr = httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `pharmacy_intake_turns_total{path="confirm",result="confirmed"} 1`)
}

func TestRouterWebhookMalformedPayload(t *testing.T) {
	app := newTestApp(t)

	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/webhooks/whatsapp", bytes.NewReader([]byte("{not json"))))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouterAdminRequiresToken(t *testing.T) {
	app := newTestApp(t)

	rr := httptest.NewRecorder()
	app.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/orders/6f1c1a52-7c64-4f8e-9d7c-1f0e4c7e2a10", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRouterAdminDisabledWithoutSecret(t *testing.T) {
	handler := New(&Config{
		Logger:      logging.NewWithWriter(&bytes.Buffer{}, "error"),
		AdminOrders: handlers.NewAdminOrdersHandler(orders.NewMemoryStore(), nil, nil),
	})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/orders/6f1c1a52-7c64-4f8e-9d7c-1f0e4c7e2a10", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
