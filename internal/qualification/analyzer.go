// Package qualification asks a language model to classify an accepted inquiry
// and validates the answer against the closed qualification enums.
package qualification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/lead-intake/internal/leads"
	"github.com/wolfman30/lead-intake/internal/llm"
	"github.com/wolfman30/lead-intake/pkg/logging"
)

var tracer = otel.Tracer("leadintake.internal.qualification")

var (
	// ErrAnalysisFailed wraps every qualification failure. Callers treat it as
	// non-fatal.
	ErrAnalysisFailed = errors.New("qualification: analysis failed")

	// ErrDisabled is returned by DisabledAnalyzer.
	ErrDisabled = errors.New("qualification: no provider configured")
)

// Analyzer produces a validated QualificationResult for a submission.
type Analyzer interface {
	Analyze(ctx context.Context, sub leads.Submission) (*leads.QualificationResult, error)
}

// DisabledAnalyzer always fails. Used when no provider is configured.
type DisabledAnalyzer struct{}

func (DisabledAnalyzer) Analyze(context.Context, leads.Submission) (*leads.QualificationResult, error) {
	return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, ErrDisabled)
}

// Config bounds a single model call.
type Config struct {
	Model     string
	Timeout   time.Duration
	MaxTokens int32
}

// LLMAnalyzer qualifies submissions through an llm.Client.
type LLMAnalyzer struct {
	client llm.Client
	cfg    Config
	logger *logging.Logger
}

func NewLLMAnalyzer(client llm.Client, cfg Config, logger *logging.Logger) *LLMAnalyzer {
	if client == nil {
		panic("qualification: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 800
	}
	return &LLMAnalyzer{client: client, cfg: cfg, logger: logger}
}

// rawResult mirrors the model's JSON. Unknown fields are ignored.
type rawResult struct {
	Priority             string   `json:"priority"`
	ProjectType          string   `json:"projectType"`
	EstimatedBudget      string   `json:"estimatedBudget"`
	Urgency              string   `json:"urgency"`
	Complexity           string   `json:"complexity"`
	KeyRequirements      []string `json:"keyRequirements"`
	RecommendedNextSteps []string `json:"recommendedNextSteps"`
	RiskFactors          []string `json:"riskFactors"`
	ConfidenceScore      *float64 `json:"confidenceScore"`
}

// Analyze runs one bounded model call. It does not retry.
func (a *LLMAnalyzer) Analyze(ctx context.Context, sub leads.Submission) (*leads.QualificationResult, error) {
	ctx, span := tracer.Start(ctx, "qualification.analyze")
	defer span.End()
	span.SetAttributes(attribute.String("lead.project_type", string(sub.ProjectType)))

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	prompt, err := buildUserPrompt(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: build prompt: %w", ErrAnalysisFailed, err)
	}

	started := time.Now()
	resp, err := a.client.Complete(ctx, llm.Request{
		Model:     a.cfg.Model,
		System:    []string{systemPrompt},
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		MaxTokens: a.cfg.MaxTokens,
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	result, err := parseResult(resp.Text)
	if err != nil {
		span.RecordError(err)
		a.logger.Warn("qualification response rejected",
			"error", err,
			"response_length", len(resp.Text),
		)
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	span.SetAttributes(
		attribute.String("qualification.priority", string(result.Priority)),
		attribute.Float64("qualification.confidence", result.ConfidenceScore),
	)
	a.logger.Debug("qualification completed",
		"priority", result.Priority,
		"duration_ms", time.Since(started).Milliseconds(),
		"output_tokens", resp.Usage.OutputTokens,
	)
	return result, nil
}

func parseResult(text string) (*leads.QualificationResult, error) {
	body, err := llm.ExtractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if raw.ConfidenceScore == nil {
		return nil, fmt.Errorf("%w: confidenceScore missing", leads.ErrInvalidQualification)
	}

	result := &leads.QualificationResult{
		Priority:             leads.Priority(normalizeEnum(raw.Priority)),
		ProjectType:          leads.ProjectType(normalizeEnum(raw.ProjectType)),
		EstimatedBudget:      leads.Budget(normalizeEnum(raw.EstimatedBudget)),
		Urgency:              leads.Urgency(normalizeEnum(raw.Urgency)),
		Complexity:           leads.Complexity(normalizeEnum(raw.Complexity)),
		KeyRequirements:      cleanList(raw.KeyRequirements),
		RecommendedNextSteps: cleanList(raw.RecommendedNextSteps),
		RiskFactors:          cleanList(raw.RiskFactors),
		ConfidenceScore:      *raw.ConfidenceScore,
	}
	if err := result.Validate(); err != nil {
		return nil, err
	}
	return result, nil
}

func normalizeEnum(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
