package quotation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wolfman30/pharmacy-order-relay/internal/orders"
	"github.com/wolfman30/pharmacy-order-relay/pkg/logging"
)

const defaultUserAgent = "pharmacy-order-relay/0.1"

// Config controls how the partner client behaves.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// Client talks to the partner commerce API. Every call is a single attempt.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logging.Logger
}

func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("quotation: base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

type quoteResponse struct {
	Items []struct {
		Name     string          `json:"name"`
		Quantity int             `json:"quantity"`
		Price    decimal.Decimal `json:"price"`
	} `json:"items"`
	Total *decimal.Decimal `json:"total"`
}

// Quote prices an order intent.
func (c *Client) Quote(ctx context.Context, intent orders.OrderIntent) (orders.Quotation, error) {
	body, err := json.Marshal(intent)
	if err != nil {
		return orders.Quotation{}, &Error{Op: "quote", Err: err}
	}
	data, err := c.invoke(ctx, "quote", http.MethodPost, "/quotes", body)
	if err != nil {
		return orders.Quotation{}, err
	}

	var parsed quoteResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return orders.Quotation{}, &Error{Op: "quote", Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}
	if parsed.Total == nil || parsed.Total.IsNegative() {
		return orders.Quotation{}, &Error{Op: "quote", Err: fmt.Errorf("%w: missing or negative total", ErrMalformedResponse)}
	}

	quote := orders.Quotation{Items: make([]orders.QuoteItem, 0, len(parsed.Items)), Total: *parsed.Total}
	for i, item := range parsed.Items {
		if strings.TrimSpace(item.Name) == "" || item.Quantity <= 0 || item.Price.IsNegative() {
			return orders.Quotation{}, &Error{Op: "quote", Err: fmt.Errorf("%w: invalid item %d", ErrMalformedResponse, i)}
		}
		quote.Items = append(quote.Items, orders.QuoteItem{
			ProductName: strings.TrimSpace(item.Name),
			Quantity:    item.Quantity,
			UnitPrice:   item.Price,
		})
	}
	return quote, nil
}

// Confirm tells the partner that the customer accepted the order.
func (c *Client) Confirm(ctx context.Context, orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return &Error{Op: "confirm", Err: errors.New("order id is required")}
	}
	body, err := json.Marshal(map[string]string{"order_id": orderID})
	if err != nil {
		return &Error{Op: "confirm", Err: err}
	}
	_, err = c.invoke(ctx, "confirm", http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/confirm", body)
	return err
}

func (c *Client) invoke(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("build request: %w", err)}
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	c.logger.Debug("quotation: partner call",
		"op", op,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(op, resp.StatusCode, data)
	}
	return data, nil
}

func decodeAPIError(op string, status int, body []byte) error {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	detail := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			detail = parsed.Message
		} else if parsed.Error != "" {
			detail = parsed.Error
		}
	}
	if len(detail) > 200 {
		detail = detail[:200]
	}
	return &Error{Op: op, StatusCode: status, Detail: detail}
}
