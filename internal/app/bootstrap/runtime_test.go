package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/lead-intake/internal/config"
	"github.com/wolfman30/lead-intake/internal/leads"
	"github.com/wolfman30/lead-intake/internal/notify"
	"github.com/wolfman30/lead-intake/internal/qualification"
	"github.com/wolfman30/lead-intake/internal/ratelimit"
	"github.com/wolfman30/lead-intake/pkg/logging"
)

func TestBuildRedisClientDisabledWithoutAddr(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, logging.Discard(), true))
}

func TestBuildRedisClientUnreachableReturnsNil(t *testing.T) {
	cfg := &appconfig.Config{RedisAddr: "127.0.0.1:1"}
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.Discard(), true))
}

func TestBuildLimiterRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.RedisAddr = mr.Addr()
	cfg.RateLimitBackend = appconfig.BackendRedis
	cfg.RateLimitMaxRequests = 1

	client := BuildRedisClient(context.Background(), cfg, logging.Discard(), true)
	require.NotNil(t, client)
	defer client.Close()

	limiter, err := BuildLimiter(context.Background(), cfg, client)
	require.NoError(t, err)
	assert.IsType(t, &ratelimit.RedisLimiter{}, limiter)

	now := time.Now()
	first, err := limiter.Check(context.Background(), "203.0.113.7", now)
	require.NoError(t, err)
	assert.True(t, first.Allowed)
	second, err := limiter.Check(context.Background(), "203.0.113.7", now)
	require.NoError(t, err)
	assert.False(t, second.Allowed)
}

func TestBuildLimiterRedisWithoutClient(t *testing.T) {
	cfg := memoryConfig()
	cfg.RateLimitBackend = appconfig.BackendRedis

	_, err := BuildLimiter(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestBuildLimiterMemory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter, err := BuildLimiter(ctx, memoryConfig(), nil)
	require.NoError(t, err)
	assert.IsType(t, &ratelimit.MemoryLimiter{}, limiter)
}

func TestBuildMetricsExposesIntakeCollectors(t *testing.T) {
	handler, m := BuildMetrics()
	m.ObserveSubmission("accepted")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `leadintake_intake_submissions_total{outcome="accepted"} 1`)
	assert.True(t, strings.Contains(rr.Body.String(), "go_goroutines"))
}

func TestBuildLeadRepository(t *testing.T) {
	logger := logging.Discard()

	repo, closeRepo, err := BuildLeadRepository(context.Background(), memoryConfig(), nil, logger)
	require.NoError(t, err)
	closeRepo()
	assert.IsType(t, &leads.InMemoryRepository{}, repo)

	cfg := memoryConfig()
	cfg.LeadStore = appconfig.BackendPostgres
	_, _, err = BuildLeadRepository(context.Background(), cfg, nil, logger)
	assert.ErrorContains(t, err, "DATABASE_URL")

	cfg.LeadStore = appconfig.BackendDynamoDB
	cfg.LeadsTable = "leads"
	_, _, err = BuildLeadRepository(context.Background(), cfg, nil, logger)
	assert.ErrorIs(t, err, ErrAWSConfigRequired)

	repo, _, err = BuildLeadRepository(context.Background(), cfg, &aws.Config{Region: "us-east-1"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &leads.DynamoRepository{}, repo)
}

func TestBuildEmailSender(t *testing.T) {
	logger := logging.Discard()
	cfg := memoryConfig()

	sender, err := BuildEmailSender(cfg, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &notify.StubEmailSender{}, sender)

	cfg.EmailProvider = appconfig.EmailSendGrid
	_, err = BuildEmailSender(cfg, nil, logger)
	assert.Error(t, err)

	cfg.SendGridAPIKey = "SG.test"
	sender, err = BuildEmailSender(cfg, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &notify.SendGridSender{}, sender)

	cfg.EmailProvider = appconfig.EmailSES
	_, err = BuildEmailSender(cfg, nil, logger)
	assert.ErrorIs(t, err, ErrAWSConfigRequired)

	cfg.SESFromEmail = "hello@example.com"
	sender, err = BuildEmailSender(cfg, &aws.Config{Region: "us-east-1"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &notify.SESSender{}, sender)
}

func TestBuildAnalyzer(t *testing.T) {
	logger := logging.Discard()
	cfg := memoryConfig()

	analyzer, closeAnalyzer, err := BuildAnalyzer(context.Background(), cfg, nil, logger)
	require.NoError(t, err)
	closeAnalyzer()
	assert.IsType(t, qualification.DisabledAnalyzer{}, analyzer)

	cfg.QualificationProvider = appconfig.ProviderBedrock
	cfg.BedrockModelID = "anthropic.claude-3-haiku"
	_, _, err = BuildAnalyzer(context.Background(), cfg, nil, logger)
	assert.ErrorIs(t, err, ErrAWSConfigRequired)

	cfg.QualificationFallback = appconfig.ProviderAnthropic
	cfg.AnthropicAPIKey = "sk-test"
	analyzer, closeAnalyzer, err = BuildAnalyzer(context.Background(), cfg, &aws.Config{Region: "us-east-1"}, logger)
	require.NoError(t, err)
	closeAnalyzer()
	assert.IsType(t, &qualification.LLMAnalyzer{}, analyzer)

	cfg.QualificationProvider = "oracle"
	_, _, err = BuildAnalyzer(context.Background(), cfg, nil, logger)
	assert.Error(t, err)
}
