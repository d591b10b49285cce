package mainconfig

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/lead-intake/internal/config"
)

func TestLoadAWSConfigEndpointOverride(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		AWSRegion:           "us-east-1",
		AWSAccessKeyID:      "test",
		AWSSecretAccessKey:  "test",
		AWSEndpointOverride: "http://localhost:4566",
	}

	awsCfg, err := LoadAWSConfig(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", awsCfg.Region)

	creds, err := awsCfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", creds.AccessKeyID)

	endpoint, err := awsCfg.EndpointResolverWithOptions.ResolveEndpoint(sqs.ServiceID, "us-east-1")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4566", endpoint.URL)

	_, err = awsCfg.EndpointResolverWithOptions.ResolveEndpoint("S3", "us-east-1")
	assert.Error(t, err)
}

func TestLoadAWSConfigIfNeededSkipsLocalStack(t *testing.T) {
	cfg := &appconfig.Config{
		LeadStore:             appconfig.BackendMemory,
		EnrichmentQueue:       appconfig.BackendMemory,
		EmailProvider:         appconfig.EmailStub,
		QualificationProvider: appconfig.ProviderNone,
	}

	awsCfg, err := LoadAWSConfigIfNeeded(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, awsCfg)
}
