package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	appconfig "github.com/wolfman30/lead-intake/internal/config"
	"github.com/wolfman30/lead-intake/internal/llm"
	"github.com/wolfman30/lead-intake/internal/qualification"
	"github.com/wolfman30/lead-intake/pkg/logging"
)

// BuildAnalyzer wires the qualification provider and its optional fallback.
// With no provider configured every lead keeps its baseline record.
func BuildAnalyzer(ctx context.Context, cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) (qualification.Analyzer, func(), error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.QualificationProvider == appconfig.ProviderNone || cfg.QualificationProvider == "" {
		logger.Warn("qualification disabled; leads will not be scored")
		return qualification.DisabledAnalyzer{}, func() {}, nil
	}

	primary, closePrimary, err := buildLLMClient(ctx, cfg.QualificationProvider, cfg, awsCfg)
	if err != nil {
		return nil, nil, err
	}
	var fallback llm.Client
	closeFallback := func() {}
	if cfg.QualificationFallback != appconfig.ProviderNone && cfg.QualificationFallback != "" &&
		cfg.QualificationFallback != cfg.QualificationProvider {
		fallback, closeFallback, err = buildLLMClient(ctx, cfg.QualificationFallback, cfg, awsCfg)
		if err != nil {
			closePrimary()
			return nil, nil, err
		}
	}

	client := llm.NewFallbackClient(primary, fallback, logger)
	analyzer := qualification.NewLLMAnalyzer(client, qualification.Config{
		Timeout:   cfg.QualificationTimeout,
		MaxTokens: int32(cfg.QualificationMaxTokens),
	}, logger)
	logger.Info("qualification enabled",
		"provider", cfg.QualificationProvider,
		"fallback", cfg.QualificationFallback,
	)
	return analyzer, func() {
		closePrimary()
		closeFallback()
	}, nil
}

func buildLLMClient(ctx context.Context, provider string, cfg *appconfig.Config, awsCfg *aws.Config) (llm.Client, func(), error) {
	switch provider {
	case appconfig.ProviderBedrock:
		if awsCfg == nil {
			return nil, nil, fmt.Errorf("%w: bedrock qualification", ErrAWSConfigRequired)
		}
		return llm.NewBedrockClient(bedrockruntime.NewFromConfig(*awsCfg), cfg.BedrockModelID), func() {}, nil
	case appconfig.ProviderGemini:
		client, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, nil, err
		}
		return client, func() { _ = client.Close() }, nil
	case appconfig.ProviderAnthropic:
		client, err := llm.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModelID)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown qualification provider %q", provider)
	}
}
