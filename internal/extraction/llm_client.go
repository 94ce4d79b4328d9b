package extraction

import "context"

// LLMRequest is a single extraction turn: the instructions describing the
// JSON fields to return and the customer's order text.
type LLMRequest struct {
	Model        string
	Instructions string
	OrderText    string
	MaxTokens    int32
	// Negative leaves the provider default in place.
	Temperature float32
}

// LLMResponse carries the raw model reply. Token counts are zero when the
// provider does not report them.
type LLMResponse struct {
	Text         string
	InputTokens  int32
	OutputTokens int32
	StopReason   string
}

// LLMClient is implemented by every model provider the extractor can use.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
