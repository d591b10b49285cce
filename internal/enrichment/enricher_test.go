package enrichment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/lead-intake/internal/leads"
	"github.com/wolfman30/lead-intake/internal/notify"
	"github.com/wolfman30/lead-intake/internal/qualification"
	"github.com/wolfman30/lead-intake/internal/scoring"
	"github.com/wolfman30/lead-intake/pkg/logging"
)

type stubAnalyzer struct {
	result *leads.QualificationResult
	err    error
}

func (s stubAnalyzer) Analyze(context.Context, leads.Submission) (*leads.QualificationResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	q := *s.result
	return &q, nil
}

type stubNotifier struct {
	mu      sync.Mutex
	calls   []notify.Notification
	receipt notify.Receipt
}

func (s *stubNotifier) Notify(_ context.Context, n notify.Notification) notify.Receipt {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, n)
	return s.receipt
}

func (s *stubNotifier) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type failingUpdater struct{}

func (failingUpdater) Update(context.Context, string, leads.Patch) error {
	return errors.New("connection reset")
}

func topQualification() *leads.QualificationResult {
	return &leads.QualificationResult{
		Priority:        leads.PriorityHigh,
		ProjectType:     leads.ProjectEcommerce,
		EstimatedBudget: leads.Budget50KPlus,
		Urgency:         leads.UrgencyImmediate,
		Complexity:      leads.ComplexityComplex,
		ConfidenceScore: 0.9,
	}
}

func newScorer(t *testing.T) *scoring.Scorer {
	t.Helper()
	s, err := scoring.NewScorer(scoring.DefaultWeights())
	require.NoError(t, err)
	return s
}

func createBaseline(t *testing.T, repo *leads.InMemoryRepository) (*leads.Lead, leads.Submission) {
	t.Helper()
	sub := leads.Submission{
		Name:        "Priya Shah",
		Email:       "priya@northwind.io",
		ProjectType: leads.ProjectEcommerce,
		Message:     "We need a storefront rebuild with inventory sync before the holidays.",
	}
	lead, err := repo.Create(context.Background(), leads.NewBaselineLead(sub))
	require.NoError(t, err)
	return lead, sub
}

func TestEnrich_Success(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead, sub := createBaseline(t, repo)
	notifier := &stubNotifier{receipt: notify.Receipt{ClientSent: true, AdminSent: false}}
	e := NewEnricher(stubAnalyzer{result: topQualification()}, newScorer(t), notifier, repo, nil, logging.Discard())

	out := e.Enrich(context.Background(), Job{ID: "job-1", LeadID: lead.ID, Submission: sub})

	require.Equal(t, StateEnriched, out.State)
	assert.NoError(t, out.Err)
	assert.Equal(t, 99, out.Score.TotalScore)
	require.Equal(t, 1, notifier.count())
	assert.Equal(t, lead.ID, notifier.calls[0].LeadID)

	stored, err := repo.GetByID(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, leads.StatusNew, stored.Status)
	require.NotNil(t, stored.Qualification)
	require.NotNil(t, stored.Score)
	assert.Equal(t, 99, stored.Score.TotalScore)
	assert.True(t, stored.ClientNotified)
	assert.False(t, stored.AdminNotified)
}

func TestEnrich_QualificationFailureLeavesBaseline(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead, sub := createBaseline(t, repo)
	notifier := &stubNotifier{}
	analysisErr := errors.Join(qualification.ErrAnalysisFailed, errors.New("provider down"))
	e := NewEnricher(stubAnalyzer{err: analysisErr}, newScorer(t), notifier, repo, nil, logging.Discard())

	out := e.Enrich(context.Background(), Job{LeadID: lead.ID, Submission: sub})

	assert.True(t, out.Failed())
	assert.ErrorIs(t, out.Err, qualification.ErrAnalysisFailed)
	assert.Zero(t, notifier.count(), "no notifications without a qualification")

	stored, err := repo.GetByID(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, leads.StatusNew, stored.Status)
	assert.Nil(t, stored.Qualification)
	assert.Nil(t, stored.Score)
	assert.False(t, stored.ClientNotified)
}

func TestEnrich_ScoringFailure(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	lead, sub := createBaseline(t, repo)
	q := topQualification()
	q.EstimatedBudget = "priceless"
	notifier := &stubNotifier{}
	e := NewEnricher(stubAnalyzer{result: q}, newScorer(t), notifier, repo, nil, logging.Discard())

	out := e.Enrich(context.Background(), Job{LeadID: lead.ID, Submission: sub})

	assert.True(t, out.Failed())
	assert.ErrorIs(t, out.Err, scoring.ErrUnmappedValue)
	assert.Zero(t, notifier.count())
}

func TestEnrich_UpdateFailure(t *testing.T) {
	e := NewEnricher(stubAnalyzer{result: topQualification()}, newScorer(t), &stubNotifier{}, failingUpdater{}, nil, logging.Discard())

	out := e.Enrich(context.Background(), Job{LeadID: "lead-1"})

	assert.True(t, out.Failed())
	assert.ErrorContains(t, out.Err, "update lead")
}

func TestEnrich_MissingLead(t *testing.T) {
	e := NewEnricher(stubAnalyzer{result: topQualification()}, newScorer(t), &stubNotifier{}, leads.NewInMemoryRepository(), nil, logging.Discard())

	out := e.Enrich(context.Background(), Job{LeadID: "missing"})

	assert.ErrorIs(t, out.Err, leads.ErrLeadNotFound)
}
