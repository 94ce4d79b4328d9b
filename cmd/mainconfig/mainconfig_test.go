package mainconfig

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/pharmacy-order-relay/internal/config"
)

func TestLoadAWSConfigStaticCredentials(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{AWSRegion: "sa-east-1", AWSAccessKeyID: "AKIATEST", AWSSecretAccessKey: "secret"}

	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "sa-east-1", awsCfg.Region)
	assert.Nil(t, awsCfg.BaseEndpoint)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "AKIATEST", creds.AccessKeyID)
}

func TestLoadAWSConfigEndpointOverride(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		AWSAccessKeyID:      "AKIATEST",
		AWSSecretAccessKey:  "secret",
		AWSEndpointOverride: " http://localhost:4566 ",
	}

	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, defaultRegion, awsCfg.Region)
	require.NotNil(t, awsCfg.BaseEndpoint)
	assert.Equal(t, "http://localhost:4566", *awsCfg.BaseEndpoint)
}

func TestLoadAWSConfigRequiresConfig(t *testing.T) {
	_, err := LoadAWSConfig(context.Background(), nil)
	require.Error(t, err)
}

func TestStaticCredentialsNeedsBothHalves(t *testing.T) {
	assert.Nil(t, staticCredentials(&appconfig.Config{AWSAccessKeyID: "AKIATEST"}))
	assert.NotNil(t, staticCredentials(&appconfig.Config{AWSAccessKeyID: "AKIATEST", AWSSecretAccessKey: "secret"}))
}
