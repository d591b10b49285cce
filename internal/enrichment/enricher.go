package enrichment

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/lead-intake/internal/leads"
	"github.com/wolfman30/lead-intake/internal/notify"
	"github.com/wolfman30/lead-intake/internal/observability/metrics"
	"github.com/wolfman30/lead-intake/internal/qualification"
	"github.com/wolfman30/lead-intake/pkg/logging"
)

var tracer = otel.Tracer("leadintake.internal.enrichment")

// State is the terminal state of one enrichment run.
type State string

const (
	StateEnriched         State = "enriched"
	StateEnrichmentFailed State = "enrichment_failed"
)

// Outcome reports how enrichment ended. Err is set only when State is
// StateEnrichmentFailed.
type Outcome struct {
	State         State
	LeadID        string
	Qualification *leads.QualificationResult
	Score         *leads.LeadScore
	Receipt       notify.Receipt
	Err           error
}

func (o Outcome) Failed() bool {
	return o.State == StateEnrichmentFailed
}

// Scorer is satisfied by *scoring.Scorer.
type Scorer interface {
	Score(q leads.QualificationResult) (leads.LeadScore, error)
}

// Notifier is satisfied by *notify.Dispatcher.
type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) notify.Receipt
}

// LeadUpdater is the write side of leads.Repository used here.
type LeadUpdater interface {
	Update(ctx context.Context, id string, patch leads.Patch) error
}

// Enricher runs qualification, scoring, notification and the final update.
type Enricher struct {
	analyzer     qualification.Analyzer
	scorer       Scorer
	notifier     Notifier
	leads        LeadUpdater
	storeTimeout time.Duration
	metrics      *metrics.IntakeMetrics
	logger       *logging.Logger
}

func NewEnricher(analyzer qualification.Analyzer, scorer Scorer, notifier Notifier, repo LeadUpdater, m *metrics.IntakeMetrics, logger *logging.Logger) *Enricher {
	if analyzer == nil {
		panic("enrichment: analyzer cannot be nil")
	}
	if scorer == nil {
		panic("enrichment: scorer cannot be nil")
	}
	if notifier == nil {
		panic("enrichment: notifier cannot be nil")
	}
	if repo == nil {
		panic("enrichment: lead repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Enricher{
		analyzer:     analyzer,
		scorer:       scorer,
		notifier:     notifier,
		leads:        repo,
		storeTimeout: 5 * time.Second,
		metrics:      m,
		logger:       logger,
	}
}

// Enrich never modifies the lead unless every stage before the update
// succeeded. Notifications are sent only for a qualified, scored lead.
func (e *Enricher) Enrich(ctx context.Context, job Job) Outcome {
	ctx, span := tracer.Start(ctx, "enrichment.enrich")
	defer span.End()
	span.SetAttributes(attribute.String("lead.id", job.LeadID))

	out := e.run(ctx, job)

	e.metrics.ObserveEnrichment(string(out.State))
	if out.Failed() {
		span.RecordError(out.Err)
		span.SetStatus(codes.Error, "enrichment failed")
		e.logger.Warn("lead enrichment failed", "lead_id", job.LeadID, "job_id", job.ID, "error", out.Err)
		return out
	}
	e.logger.Info("lead enriched",
		"lead_id", job.LeadID,
		"priority", out.Qualification.Priority,
		"score", out.Score.TotalScore,
		"client_notified", out.Receipt.ClientSent,
		"admin_notified", out.Receipt.AdminSent,
	)
	return out
}

func (e *Enricher) run(ctx context.Context, job Job) Outcome {
	out := Outcome{State: StateEnrichmentFailed, LeadID: job.LeadID}

	started := time.Now()
	q, err := e.analyzer.Analyze(ctx, job.Submission)
	e.metrics.ObserveStage("qualification", started)
	if err != nil {
		out.Err = err
		return out
	}

	score, err := e.scorer.Score(*q)
	if err != nil {
		out.Err = fmt.Errorf("enrichment: score lead: %w", err)
		return out
	}
	out.Qualification = q
	out.Score = &score

	started = time.Now()
	out.Receipt = e.notifier.Notify(ctx, notify.Notification{
		LeadID:        job.LeadID,
		Submission:    job.Submission,
		Qualification: q,
		Score:         &score,
	})
	e.metrics.ObserveStage("notification", started)

	updateCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	err = e.leads.Update(updateCtx, job.LeadID, leads.Patch{
		Qualification:  q,
		Score:          &score,
		ClientNotified: &out.Receipt.ClientSent,
		AdminNotified:  &out.Receipt.AdminSent,
	})
	if err != nil {
		out.Err = fmt.Errorf("enrichment: update lead: %w", err)
		return out
	}

	out.State = StateEnriched
	return out
}
