package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/pharmacy-order-relay/internal/config"
	"github.com/wolfman30/pharmacy-order-relay/internal/extraction"
	"github.com/wolfman30/pharmacy-order-relay/pkg/logging"
)

// ErrNoLLMConfigured is returned when neither Bedrock nor Gemini is set up.
var ErrNoLLMConfigured = errors.New("bootstrap: no LLM provider configured")

// AWSConfigLoader loads the SDK config for Bedrock. cmd/mainconfig provides
// the production loader.
type AWSConfigLoader func(ctx context.Context, cfg *appconfig.Config) (aws.Config, error)

// BuildLLMClient wires Bedrock as the primary model with Gemini as fallback.
// Either side may be missing; the returned closer releases the Gemini client.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, loadAWS AWSConfigLoader, logger *logging.Logger) (extraction.LLMClient, func() error, error) {
	noop := func() error { return nil }
	if cfg == nil {
		return nil, noop, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var primary extraction.LLMClient
	if strings.TrimSpace(cfg.BedrockModelID) != "" {
		if loadAWS == nil {
			return nil, noop, fmt.Errorf("bootstrap: bedrock configured without an aws config loader")
		}
		awsCfg, err := loadAWS(ctx, cfg)
		if err != nil {
			return nil, noop, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		primary = extraction.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
		logger.Info("bedrock extraction enabled", "model", cfg.BedrockModelID)
	}

	var gemini *extraction.GeminiLLMClient
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		client, err := extraction.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, noop, err
		}
		gemini = client
	}

	switch {
	case primary != nil && gemini != nil:
		logger.Info("gemini fallback enabled", "model", cfg.GeminiModelID)
		return extraction.NewFallbackLLMClient(primary, gemini, logger), gemini.Close, nil
	case primary != nil:
		return primary, noop, nil
	case gemini != nil:
		logger.Info("gemini extraction enabled", "model", cfg.GeminiModelID)
		return gemini, gemini.Close, nil
	default:
		return nil, noop, ErrNoLLMConfigured
	}
}

// BuildExtractor wraps the configured LLM in an order extractor.
func BuildExtractor(llm extraction.LLMClient, cfg *appconfig.Config, logger *logging.Logger) *extraction.Extractor {
	var model string
	if cfg != nil {
		model = strings.TrimSpace(cfg.BedrockModelID)
	}
	return extraction.NewExtractor(llm, extraction.Config{Model: model}, logger)
}
