package leads

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a lead.
type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusConverted Status = "converted"
	StatusRejected  Status = "rejected"
	StatusSpam      Status = "spam"
)

// ProjectType is the closed set of project categories shared by the intake
// form and the qualification output.
type ProjectType string

const (
	ProjectWebDevelopment ProjectType = "web-development"
	ProjectMobileApp      ProjectType = "mobile-app"
	ProjectEcommerce      ProjectType = "ecommerce"
	ProjectAIIntegration  ProjectType = "ai-integration"
	ProjectConsulting     ProjectType = "consulting"
	ProjectOther          ProjectType = "other"
)

// ProjectTypes lists every valid ProjectType.
var ProjectTypes = []ProjectType{
	ProjectWebDevelopment,
	ProjectMobileApp,
	ProjectEcommerce,
	ProjectAIIntegration,
	ProjectConsulting,
	ProjectOther,
}

// Valid reports whether p is a known project type.
func (p ProjectType) Valid() bool {
	for _, candidate := range ProjectTypes {
		if p == candidate {
			return true
		}
	}
	return false
}

// Submission is the raw payload received from the contact form.
type Submission struct {
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	Company      string      `json:"company,omitempty"`
	Phone        string      `json:"phone,omitempty"`
	ProjectType  ProjectType `json:"projectType"`
	Message      string      `json:"message"`
	Website      string      `json:"website,omitempty"` // honeypot, must stay empty
	CaptchaToken string      `json:"-"`
	SourceIP     string      `json:"sourceIp,omitempty"`
	UserAgent    string      `json:"userAgent,omitempty"`
	ReceivedAt   time.Time   `json:"receivedAt"`
}

// Normalized returns a copy with surrounding whitespace trimmed and the
// email lower-cased. The honeypot is left untouched.
func (s Submission) Normalized() Submission {
	s.Name = strings.TrimSpace(s.Name)
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))
	s.Company = strings.TrimSpace(s.Company)
	s.Phone = strings.TrimSpace(s.Phone)
	s.ProjectType = ProjectType(strings.ToLower(strings.TrimSpace(string(s.ProjectType))))
	s.Message = strings.TrimSpace(s.Message)
	return s
}

// SpamAnnotation records why a lead was classified as spam.
type SpamAnnotation struct {
	Confidence int      `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// Lead is the persisted aggregate for one accepted or spam-rejected submission.
type Lead struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	Email          string               `json:"email"`
	Company        string               `json:"company,omitempty"`
	Phone          string               `json:"phone,omitempty"`
	ProjectType    ProjectType          `json:"projectType"`
	Message        string               `json:"message"`
	SourceIP       string               `json:"sourceIp,omitempty"`
	Status         Status               `json:"status"`
	Spam           *SpamAnnotation      `json:"spam,omitempty"`
	Qualification  *QualificationResult `json:"qualification,omitempty"`
	Score          *LeadScore           `json:"score,omitempty"`
	ClientNotified bool                 `json:"clientNotified"`
	AdminNotified  bool                 `json:"adminNotified"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

// NewBaselineLead builds the status=new record written before enrichment.
func NewBaselineLead(sub Submission) *Lead {
	return fromSubmission(sub, StatusNew)
}

// NewSpamLead builds a status=spam record annotated with the verdict.
func NewSpamLead(sub Submission, annotation SpamAnnotation) *Lead {
	lead := fromSubmission(sub, StatusSpam)
	lead.Spam = &annotation
	return lead
}

func fromSubmission(sub Submission, status Status) *Lead {
	return &Lead{
		Name:        sub.Name,
		Email:       sub.Email,
		Company:     sub.Company,
		Phone:       sub.Phone,
		ProjectType: sub.ProjectType,
		Message:     sub.Message,
		SourceIP:    sub.SourceIP,
		Status:      status,
	}
}

// Patch carries the partial fields written by enrichment. Nil fields are left
// unchanged.
type Patch struct {
	Qualification  *QualificationResult
	Score          *LeadScore
	ClientNotified *bool
	AdminNotified  *bool
}

// Validate enforces that a score is never stored without its qualification.
func (p Patch) Validate() error {
	if p.Score != nil && p.Qualification == nil {
		return ErrScoreWithoutQualification
	}
	if p.Qualification != nil {
		if err := p.Qualification.Validate(); err != nil {
			return fmt.Errorf("leads: invalid qualification: %w", err)
		}
	}
	return nil
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Qualification == nil && p.Score == nil && p.ClientNotified == nil && p.AdminNotified == nil
}

// Apply writes the patch onto lead in place.
func (p Patch) Apply(lead *Lead) {
	if p.Qualification != nil {
		q := *p.Qualification
		lead.Qualification = &q
	}
	if p.Score != nil {
		s := *p.Score
		lead.Score = &s
	}
	if p.ClientNotified != nil {
		lead.ClientNotified = *p.ClientNotified
	}
	if p.AdminNotified != nil {
		lead.AdminNotified = *p.AdminNotified
	}
}
