package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLLMClient struct {
	response LLMResponse
	err      error
	lastReq  LLMRequest
	calls    int
}

func (s *stubLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	s.lastReq = req
	s.calls++
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	return s.response, nil
}

func TestExtractorExtractsIntent(t *testing.T) {
	llm := &stubLLMClient{response: LLMResponse{
		Text: `{"pharmacy_name": "Farmácia X", "seller_name": "João", "customer_name_or_order_ref": "Maria"}`,
	}}
	extractor := NewExtractor(llm, Config{Model: "test-model"}, nil)

	intent, err := extractor.Extract(context.Background(), "2 caixas de dipirona para Maria, vendedor João, Farmácia X")
	require.NoError(t, err)
	assert.Equal(t, "Farmácia X", intent.PharmacyName)
	assert.Equal(t, "João", intent.SellerName)
	assert.Equal(t, "Maria", intent.CustomerNameOrOrderRef)
	assert.Empty(t, intent.ThreadKey)

	assert.Equal(t, "test-model", llm.lastReq.Model)
	assert.Equal(t, "2 caixas de dipirona para Maria, vendedor João, Farmácia X", llm.lastReq.OrderText)
	assert.Contains(t, llm.lastReq.Instructions, "pharmacy_name")
}

func TestExtractorDefaultsModel(t *testing.T) {
	llm := &stubLLMClient{response: LLMResponse{Text: `{"pharmacy_name":"A","seller_name":"","customer_name_or_order_ref":""}`}}
	_, err := NewExtractor(llm, Config{}, nil).Extract(context.Background(), "pedido")
	require.NoError(t, err)
	assert.Equal(t, DefaultBedrockModel, llm.lastReq.Model)
	assert.Equal(t, int32(300), llm.lastReq.MaxTokens)
}

func TestExtractorEmptyMessageSkipsLLM(t *testing.T) {
	llm := &stubLLMClient{}
	_, err := NewExtractor(llm, Config{}, nil).Extract(context.Background(), "   \n\t ")

	var extErr *Error
	require.True(t, errors.As(err, &extErr))
	assert.Equal(t, "empty_message", extErr.Reason)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Equal(t, 0, llm.calls)
}

func TestExtractorWrapsLLMFailure(t *testing.T) {
	cause := errors.New("throttled")
	llm := &stubLLMClient{err: cause}
	_, err := NewExtractor(llm, Config{}, nil).Extract(context.Background(), "pedido")

	var extErr *Error
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, "llm", extErr.Reason)
	assert.ErrorIs(t, err, cause)
}

func TestExtractorMalformedOutput(t *testing.T) {
	llm := &stubLLMClient{response: LLMResponse{Text: "Desculpe, não entendi o pedido."}}
	_, err := NewExtractor(llm, Config{}, nil).Extract(context.Background(), "oi")
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

func TestParseIntent(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{
			name: "fenced json",
			raw:  "```json\n{\"pharmacy_name\":\"Farmácia X\",\"seller_name\":\"João\",\"customer_name_or_order_ref\":\"Maria\"}\n```",
			want: "Farmácia X",
		},
		{
			name: "prose around object",
			raw:  "Aqui está: {\"pharmacy_name\":\" Drogaria Sul \",\"seller_name\":\"Ana\",\"customer_name_or_order_ref\":\"\"} obrigado",
			want: "Drogaria Sul",
		},
		{
			name:    "not json",
			raw:     "sem dados",
			wantErr: ErrMalformedOutput,
		},
		{
			name:    "broken json",
			raw:     `{"pharmacy_name": "X",`,
			wantErr: ErrMalformedOutput,
		},
		{
			name:    "missing key",
			raw:     `{"pharmacy_name":"X","seller_name":"Y"}`,
			wantErr: ErrMissingFields,
		},
		{
			name:    "blank pharmacy",
			raw:     `{"pharmacy_name":"  ","seller_name":"Y","customer_name_or_order_ref":"Z"}`,
			wantErr: ErrMissingFields,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent, err := ParseIntent(tt.raw)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, intent.PharmacyName)
		})
	}
}
