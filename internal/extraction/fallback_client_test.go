package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackLLMClientPrimarySucceeds(t *testing.T) {
	primary := &stubLLMClient{response: LLMResponse{Text: "primary"}}
	fallback := &stubLLMClient{response: LLMResponse{Text: "fallback"}}

	resp, err := NewFallbackLLMClient(primary, fallback, nil).Complete(context.Background(), LLMRequest{})
	require.NoError(t, err)
	assert.Equal(t, "primary", resp.Text)
	assert.Equal(t, 0, fallback.calls)
}

func TestFallbackLLMClientUsesFallback(t *testing.T) {
	primary := &stubLLMClient{err: errors.New("bedrock down")}
	fallback := &stubLLMClient{response: LLMResponse{Text: "fallback"}}

	resp, err := NewFallbackLLMClient(primary, fallback, nil).Complete(context.Background(), LLMRequest{})
	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Text)
}

func TestFallbackLLMClientBothFail(t *testing.T) {
	primary := &stubLLMClient{err: errors.New("bedrock down")}
	fallbackErr := errors.New("gemini down")
	fallback := &stubLLMClient{err: fallbackErr}

	_, err := NewFallbackLLMClient(primary, fallback, nil).Complete(context.Background(), LLMRequest{})
	assert.ErrorIs(t, err, fallbackErr)
}

func TestFallbackLLMClientWithoutFallback(t *testing.T) {
	primaryErr := errors.New("bedrock down")
	_, err := NewFallbackLLMClient(&stubLLMClient{err: primaryErr}, nil, nil).Complete(context.Background(), LLMRequest{})
	assert.ErrorIs(t, err, primaryErr)
}

func TestFallbackLLMClientSkipsFallbackAfterDeadline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	primary := &stubLLMClient{err: context.Canceled}
	fallback := &stubLLMClient{response: LLMResponse{Text: "fallback"}}

	_, err := NewFallbackLLMClient(primary, fallback, nil).Complete(ctx, LLMRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fallback.calls)
}
