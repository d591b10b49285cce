package leads

import (
	"fmt"
	"strings"
)

// Priority is the qualification tier assigned to a lead.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Priorities lists every valid Priority.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// Budget is the estimated project budget bucket.
type Budget string

const (
	BudgetUnder5K  Budget = "under-5k"
	Budget5KTo15K  Budget = "5k-15k"
	Budget15KTo50K Budget = "15k-50k"
	Budget50KPlus  Budget = "50k-plus"
)

// Budgets lists every valid Budget.
var Budgets = []Budget{BudgetUnder5K, Budget5KTo15K, Budget15KTo50K, Budget50KPlus}

// Urgency describes how soon the prospect wants to start.
type Urgency string

const (
	UrgencyExploring   Urgency = "exploring"
	UrgencyPlanning    Urgency = "planning"
	UrgencyWithinMonth Urgency = "within-month"
	UrgencyImmediate   Urgency = "immediate"
)

// Urgencies lists every valid Urgency.
var Urgencies = []Urgency{UrgencyExploring, UrgencyPlanning, UrgencyWithinMonth, UrgencyImmediate}

// Complexity is the estimated delivery complexity.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Complexities lists every valid Complexity.
var Complexities = []Complexity{ComplexitySimple, ComplexityMedium, ComplexityComplex}

// Timeline returns the delivery estimate quoted to prospects.
func (c Complexity) Timeline() string {
	switch c {
	case ComplexitySimple:
		return "2-4 weeks"
	case ComplexityMedium:
		return "4-8 weeks"
	case ComplexityComplex:
		return "8-16 weeks"
	default:
		return ""
	}
}

// QualificationResult is the structured output of the qualification
// capability. Only validated values are ever stored on a lead.
type QualificationResult struct {
	Priority             Priority    `json:"priority"`
	ProjectType          ProjectType `json:"projectType"`
	EstimatedBudget      Budget      `json:"estimatedBudget"`
	Urgency              Urgency     `json:"urgency"`
	Complexity           Complexity  `json:"complexity"`
	KeyRequirements      []string    `json:"keyRequirements"`
	RecommendedNextSteps []string    `json:"recommendedNextSteps"`
	RiskFactors          []string    `json:"riskFactors"`
	ConfidenceScore      float64     `json:"confidenceScore"`
}

// Validate checks every enum against its closed set and the confidence range.
func (q QualificationResult) Validate() error {
	var problems []string
	if !contains(Priorities, q.Priority) {
		problems = append(problems, fmt.Sprintf("priority %q", q.Priority))
	}
	if !q.ProjectType.Valid() {
		problems = append(problems, fmt.Sprintf("projectType %q", q.ProjectType))
	}
	if !contains(Budgets, q.EstimatedBudget) {
		problems = append(problems, fmt.Sprintf("estimatedBudget %q", q.EstimatedBudget))
	}
	if !contains(Urgencies, q.Urgency) {
		problems = append(problems, fmt.Sprintf("urgency %q", q.Urgency))
	}
	if !contains(Complexities, q.Complexity) {
		problems = append(problems, fmt.Sprintf("complexity %q", q.Complexity))
	}
	if q.ConfidenceScore < 0 || q.ConfidenceScore > 1 {
		problems = append(problems, fmt.Sprintf("confidenceScore %v", q.ConfidenceScore))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidQualification, strings.Join(problems, ", "))
	}
	return nil
}

// LeadScore is the composite 0-100 prioritization derived from a
// QualificationResult.
type LeadScore struct {
	TotalScore      int `json:"totalScore"`
	BudgetScore     int `json:"budgetScore"`
	UrgencyScore    int `json:"urgencyScore"`
	ComplexityScore int `json:"complexityScore"`
	PriorityScore   int `json:"priorityScore"`
	QualityScore    int `json:"qualityScore"`
}

func contains[T comparable](set []T, v T) bool {
	for _, candidate := range set {
		if candidate == v {
			return true
		}
	}
	return false
}
