package mainconfig

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	appconfig "github.com/wolfman30/pharmacy-order-relay/internal/config"
)

const defaultRegion = "us-east-1"

// LoadAWSConfig builds the SDK config for the Bedrock client. Static keys win
// over the default credential chain when both halves are set, and
// AWS_ENDPOINT_OVERRIDE points the client at a local emulator.
func LoadAWSConfig(ctx context.Context, cfg *appconfig.Config) (aws.Config, error) {
	if cfg == nil {
		return aws.Config{}, fmt.Errorf("mainconfig: config is required")
	}
	region := strings.TrimSpace(cfg.AWSRegion)
	if region == "" {
		region = defaultRegion
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if provider := staticCredentials(cfg); provider != nil {
		opts = append(opts, config.WithCredentialsProvider(provider))
	}
	if endpoint := strings.TrimSpace(cfg.AWSEndpointOverride); endpoint != "" {
		opts = append(opts, config.WithBaseEndpoint(endpoint))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("mainconfig: load aws config: %w", err)
	}
	return awsCfg, nil
}

func staticCredentials(cfg *appconfig.Config) aws.CredentialsProvider {
	key := strings.TrimSpace(cfg.AWSAccessKeyID)
	secret := strings.TrimSpace(cfg.AWSSecretAccessKey)
	if key == "" || secret == "" {
		return nil
	}
	return credentials.NewStaticCredentialsProvider(key, secret, "")
}
