// Package scoring turns a validated qualification into the 0-100 lead score.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/wolfman30/lead-intake/internal/leads"
)

// MaxTotal caps the summed score.
const MaxTotal = 100

var (
	// ErrIncompleteWeights is returned when a weight table misses an enum
	// value or holds a negative weight.
	ErrIncompleteWeights = errors.New("scoring: incomplete weight tables")

	// ErrUnmappedValue is returned when a qualification carries a value that
	// no table maps.
	ErrUnmappedValue = errors.New("scoring: unmapped qualification value")
)

// Weights are the lookup tables applied to each qualification dimension.
type Weights struct {
	Budget     map[leads.Budget]int
	Urgency    map[leads.Urgency]int
	Complexity map[leads.Complexity]int
	Priority   map[leads.Priority]int
	QualityMax int
}

// DefaultWeights returns the production tables. Their maxima sum to exactly 100.
func DefaultWeights() Weights {
	return Weights{
		Budget: map[leads.Budget]int{
			leads.BudgetUnder5K:  10,
			leads.Budget5KTo15K:  15,
			leads.Budget15KTo50K: 20,
			leads.Budget50KPlus:  25,
		},
		Urgency: map[leads.Urgency]int{
			leads.UrgencyExploring:   5,
			leads.UrgencyPlanning:    10,
			leads.UrgencyWithinMonth: 15,
			leads.UrgencyImmediate:   20,
		},
		Complexity: map[leads.Complexity]int{
			leads.ComplexitySimple:  8,
			leads.ComplexityMedium:  10,
			leads.ComplexityComplex: 15,
		},
		Priority: map[leads.Priority]int{
			leads.PriorityLow:    10,
			leads.PriorityMedium: 20,
			leads.PriorityHigh:   30,
		},
		QualityMax: 10,
	}
}

// Validate checks every table is exhaustive over its enum and non-negative.
func (w Weights) Validate() error {
	var problems []string
	problems = append(problems, checkTable("budget", w.Budget, leads.Budgets)...)
	problems = append(problems, checkTable("urgency", w.Urgency, leads.Urgencies)...)
	problems = append(problems, checkTable("complexity", w.Complexity, leads.Complexities)...)
	problems = append(problems, checkTable("priority", w.Priority, leads.Priorities)...)
	if w.QualityMax < 0 {
		problems = append(problems, "quality max must be >= 0")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrIncompleteWeights, strings.Join(problems, "; "))
	}
	return nil
}

func checkTable[K ~string](name string, table map[K]int, values []K) []string {
	var problems []string
	for _, v := range values {
		weight, ok := table[v]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s missing %q", name, v))
			continue
		}
		if weight < 0 {
			problems = append(problems, fmt.Sprintf("%s %q must be >= 0", name, v))
		}
	}
	return problems
}

// Scorer is pure and safe for concurrent use.
type Scorer struct {
	weights Weights
}

// NewScorer validates weights before accepting them.
func NewScorer(weights Weights) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: weights}, nil
}

// Score maps each dimension through its table and clamps the total to MaxTotal.
func (s *Scorer) Score(q leads.QualificationResult) (leads.LeadScore, error) {
	budget, ok := s.weights.Budget[q.EstimatedBudget]
	if !ok {
		return leads.LeadScore{}, fmt.Errorf("%w: estimatedBudget %q", ErrUnmappedValue, q.EstimatedBudget)
	}
	urgency, ok := s.weights.Urgency[q.Urgency]
	if !ok {
		return leads.LeadScore{}, fmt.Errorf("%w: urgency %q", ErrUnmappedValue, q.Urgency)
	}
	complexity, ok := s.weights.Complexity[q.Complexity]
	if !ok {
		return leads.LeadScore{}, fmt.Errorf("%w: complexity %q", ErrUnmappedValue, q.Complexity)
	}
	priority, ok := s.weights.Priority[q.Priority]
	if !ok {
		return leads.LeadScore{}, fmt.Errorf("%w: priority %q", ErrUnmappedValue, q.Priority)
	}

	confidence := math.Max(0, math.Min(1, q.ConfidenceScore))
	quality := int(math.Round(confidence * float64(s.weights.QualityMax)))

	total := budget + urgency + complexity + priority + quality
	if total > MaxTotal {
		total = MaxTotal
	}
	return leads.LeadScore{
		TotalScore:      total,
		BudgetScore:     budget,
		UrgencyScore:    urgency,
		ComplexityScore: complexity,
		PriorityScore:   priority,
		QualityScore:    quality,
	}, nil
}

// ParseTable reads a "key=value,key=value" override into a weight table.
// Keys are not checked against the enum here; Weights.Validate does that.
func ParseTable[K ~string](raw string) (map[K]int, error) {
	table := make(map[K]int)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("scoring: malformed weight %q", pair)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("scoring: weight for %q: %w", key, err)
		}
		table[K(strings.ToLower(strings.TrimSpace(key)))] = n
	}
	return table, nil
}

// FormatTable renders a table in ParseTable's format with sorted keys.
func FormatTable[K ~string](table map[K]int) string {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, table[K(k)]))
	}
	return strings.Join(parts, ",")
}
