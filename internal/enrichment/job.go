// Package enrichment qualifies, scores and announces accepted leads after the
// intake response has been sent.
package enrichment

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/wolfman30/lead-intake/internal/leads"
)

var errMissingLeadID = errors.New("enrichment: job has no lead id")

// Job is the unit of background work for one accepted lead.
type Job struct {
	ID         string           `json:"id"`
	LeadID     string           `json:"leadId"`
	Submission leads.Submission `json:"submission"`
}

// NewJob builds a job for a freshly persisted lead.
func NewJob(leadID string, sub leads.Submission) Job {
	return Job{ID: uuid.NewString(), LeadID: leadID, Submission: sub}
}

func encodeJob(job Job) (Job, string, error) {
	if job.LeadID == "" {
		return Job{}, "", errMissingLeadID
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	body, err := json.Marshal(job)
	if err != nil {
		return Job{}, "", fmt.Errorf("enrichment: failed to encode job: %w", err)
	}
	return job, string(body), nil
}

func decodeJob(body string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return Job{}, fmt.Errorf("enrichment: failed to decode job: %w", err)
	}
	if job.LeadID == "" {
		return Job{}, errMissingLeadID
	}
	return job, nil
}
