package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultGraphAPIBase     = "https://graph.facebook.com/v19.0"
	defaultHTTPTimeout      = 10 * time.Second
	defaultTemplateLanguage = "pt_BR"
)

// ClientConfig configures the Cloud API sender. When TemplateName is set,
// Send delivers short notices through that template. Text that would not
// survive the template parameters intact, such as a quotation summary, is
// still sent as free-form text.
type ClientConfig struct {
	AccessToken      string
	PhoneNumberID    string
	APIBase          string
	TemplateName     string
	TemplateLanguage string
	Timeout          time.Duration
	HTTPClient       *http.Client
}

// Client sends messages via the WhatsApp Cloud (Graph) API.
type Client struct {
	accessToken      string
	endpoint         string
	templateName     string
	templateLanguage string
	httpClient       *http.Client
}

func NewClient(cfg ClientConfig) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	if base == "" {
		base = defaultGraphAPIBase
	}
	// Without a phone number id the base is taken as the full messages URL.
	endpoint := base
	if id := strings.TrimSpace(cfg.PhoneNumberID); id != "" {
		endpoint = fmt.Sprintf("%s/%s/messages", base, id)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	lang := strings.TrimSpace(cfg.TemplateLanguage)
	if lang == "" {
		lang = defaultTemplateLanguage
	}
	return &Client{
		accessToken:      cfg.AccessToken,
		endpoint:         endpoint,
		templateName:     strings.TrimSpace(cfg.TemplateName),
		templateLanguage: lang,
		httpClient:       httpClient,
	}
}

// Send delivers text to the recipient using the configured mode.
func (c *Client) Send(ctx context.Context, to, text string) error {
	var err error
	if c.templateName != "" && FitsTemplate(text) {
		_, err = c.SendTemplate(ctx, to, text)
	} else {
		_, err = c.SendText(ctx, to, text)
	}
	return err
}

// SendText sends a free-form text message.
func (c *Client) SendText(ctx context.Context, to, text string) (*SendResponse, error) {
	return c.send(ctx, SendRequest{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &TextContent{Body: text},
	})
}

// SendTemplate sends text through the notification template, split into its
// three body parameters.
func (c *Client) SendTemplate(ctx context.Context, to, text string) (*SendResponse, error) {
	if c.templateName == "" {
		return nil, &Error{Err: fmt.Errorf("template name is not configured")}
	}
	parts := SplitTemplateParams(text)
	params := make([]Parameter, 0, len(parts))
	for _, part := range parts {
		// The API rejects empty text parameters.
		if part == "" {
			part = "-"
		}
		params = append(params, Parameter{Type: "text", Text: part})
	}
	return c.send(ctx, SendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: &Template{
			Name:     c.templateName,
			Language: Language{Code: c.templateLanguage},
			Components: []Component{
				{Type: "body", Parameters: params},
			},
		},
	})
}

func (c *Client) send(ctx context.Context, req SendRequest) (*SendResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("marshal send request: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("create request: %w", err)}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &Error{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	var sendResp SendResponse
	if err := json.Unmarshal(respBody, &sendResp); err != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil, &Error{StatusCode: resp.StatusCode, Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	if sendResp.Error != nil {
		return &sendResp, &Error{StatusCode: resp.StatusCode, Code: sendResp.Error.Code, Message: sendResp.Error.Message}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &sendResp, &Error{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}
	return &sendResp, nil
}
