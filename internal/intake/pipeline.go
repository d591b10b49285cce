package intake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/lead-intake/internal/captcha"
	"github.com/wolfman30/lead-intake/internal/enrichment"
	"github.com/wolfman30/lead-intake/internal/leads"
	"github.com/wolfman30/lead-intake/internal/observability/metrics"
	"github.com/wolfman30/lead-intake/internal/ratelimit"
	"github.com/wolfman30/lead-intake/internal/validation"
	"github.com/wolfman30/lead-intake/pkg/logging"
)

var tracer = otel.Tracer("leadintake.internal.intake")

const unknownIdentity = "unknown"

// LeadCreator is the write side of leads.Repository used by the gate.
type LeadCreator interface {
	Create(ctx context.Context, lead *leads.Lead) (*leads.Lead, error)
}

type Config struct {
	CaptchaRequired bool
	DispatchTimeout time.Duration
}

// Pipeline sequences rate limiting, CAPTCHA and validation, persists the
// baseline lead and dispatches enrichment.
type Pipeline struct {
	limiter    ratelimit.Limiter
	captcha    captcha.Verifier
	validator  *validation.Validator
	leads      LeadCreator
	dispatcher enrichment.Dispatcher
	cfg        Config
	metrics    *metrics.IntakeMetrics
	logger     *logging.Logger
	now        func() time.Time
}

func NewPipeline(
	limiter ratelimit.Limiter,
	verifier captcha.Verifier,
	validator *validation.Validator,
	repo LeadCreator,
	dispatcher enrichment.Dispatcher,
	cfg Config,
	m *metrics.IntakeMetrics,
	logger *logging.Logger,
) *Pipeline {
	if limiter == nil {
		panic("intake: rate limiter cannot be nil")
	}
	if validator == nil {
		panic("intake: validator cannot be nil")
	}
	if repo == nil {
		panic("intake: lead repository cannot be nil")
	}
	if dispatcher == nil {
		panic("intake: enrichment dispatcher cannot be nil")
	}
	if verifier == nil {
		verifier = captcha.NoopVerifier{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 5 * time.Second
	}
	return &Pipeline{
		limiter:    limiter,
		captcha:    verifier,
		validator:  validator,
		leads:      repo,
		dispatcher: dispatcher,
		cfg:        cfg,
		metrics:    m,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Submit runs the gate. The returned error is non-nil only when the baseline
// lead could not be stored; every rejection is reported through Decision.
func (p *Pipeline) Submit(ctx context.Context, sub leads.Submission) (Decision, error) {
	ctx, span := tracer.Start(ctx, "intake.submit")
	defer span.End()

	decision, err := p.submit(ctx, sub.Normalized())
	if err != nil {
		span.RecordError(err)
		p.metrics.ObserveSubmission("error")
		return decision, err
	}
	span.SetAttributes(attribute.String("intake.outcome", string(decision.Outcome)))
	p.metrics.ObserveSubmission(string(decision.Outcome))
	return decision, nil
}

func (p *Pipeline) submit(ctx context.Context, sub leads.Submission) (Decision, error) {
	now := p.now()
	if sub.ReceivedAt.IsZero() {
		sub.ReceivedAt = now
	}
	identity := strings.TrimSpace(sub.SourceIP)
	if identity == "" {
		identity = unknownIdentity
	}

	var decision Decision

	started := time.Now()
	rl, err := p.limiter.Check(ctx, identity, now)
	p.metrics.ObserveStage("rate_limit", started)
	if err != nil {
		// The limiter is a soft defense; an unavailable backend admits the request.
		p.logger.Warn("rate limiter unavailable, admitting request", "error", err)
	} else {
		decision.RateLimit = rl
		if !rl.Allowed {
			decision.Outcome = OutcomeRateLimited
			p.logger.Info("inquiry rate limited", "identity", identity, "retry_after_seconds", rl.RetryAfterSeconds())
			return decision, nil
		}
	}

	if p.cfg.CaptchaRequired {
		if strings.TrimSpace(sub.CaptchaToken) == "" {
			decision.Outcome = OutcomeCaptchaRejected
			decision.CaptchaErrors = []string{captcha.CodeMissingInput}
			return decision, nil
		}
		started = time.Now()
		res := p.captcha.Verify(ctx, sub.CaptchaToken, sub.SourceIP)
		p.metrics.ObserveStage("captcha", started)
		if !res.Success {
			decision.Outcome = OutcomeCaptchaRejected
			decision.CaptchaErrors = res.ErrorCodes
			p.logger.Info("inquiry captcha rejected", "identity", identity, "error_codes", res.ErrorCodes)
			return decision, nil
		}
	}

	result := p.validator.Validate(sub)
	switch {
	case result.Spam:
		verdict := result.SpamVerdict
		decision.Outcome = OutcomeSpamRejected
		decision.Spam = &verdict
		p.recordSpam(ctx, sub, result)
		return decision, nil
	case !result.OK:
		decision.Outcome = OutcomeInvalid
		decision.FieldErrors = result.FieldErrors
		return decision, nil
	}

	started = time.Now()
	lead, err := p.leads.Create(ctx, leads.NewBaselineLead(sub))
	p.metrics.ObserveStage("persist", started)
	if err != nil {
		return Decision{}, fmt.Errorf("intake: persist baseline lead: %w", err)
	}
	decision.Outcome = OutcomeAccepted
	decision.LeadID = lead.ID
	p.logger.Info("inquiry accepted", "lead_id", lead.ID, "project_type", sub.ProjectType)

	p.dispatch(ctx, lead.ID, sub)
	return decision, nil
}

// recordSpam stores the rejected submission for review. Failure to store it
// does not change the rejection.
func (p *Pipeline) recordSpam(ctx context.Context, sub leads.Submission, result validation.Result) {
	lead, err := p.leads.Create(ctx, leads.NewSpamLead(sub, leads.SpamAnnotation{
		Confidence: result.SpamVerdict.Confidence,
		Reasons:    result.SpamVerdict.Reasons,
	}))
	if err != nil {
		p.logger.Error("failed to store spam lead", "error", err, "honeypot", result.Honeypot)
		return
	}
	p.logger.Info("inquiry rejected as spam",
		"lead_id", lead.ID,
		"honeypot", result.Honeypot,
		"confidence", result.SpamVerdict.Confidence,
		"reasons", result.SpamVerdict.Reasons,
	)
}

// dispatch hands the lead to enrichment. The job outlives the caller's
// request; only the enqueue itself is bounded.
func (p *Pipeline) dispatch(ctx context.Context, leadID string, sub leads.Submission) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.DispatchTimeout)
	defer cancel()

	if err := p.dispatcher.Dispatch(ctx, enrichment.NewJob(leadID, sub)); err != nil {
		p.logger.Error("failed to dispatch enrichment", "lead_id", leadID, "error", err)
	}
}
