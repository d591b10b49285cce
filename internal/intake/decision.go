// Package intake runs the gate stages for an inbound inquiry and commits the
// baseline lead before handing it to enrichment.
package intake

import (
	"github.com/wolfman30/lead-intake/internal/ratelimit"
	"github.com/wolfman30/lead-intake/internal/spam"
)

// Outcome is the caller-visible result of a submission.
type Outcome string

const (
	OutcomeAccepted        Outcome = "accepted"
	OutcomeRateLimited     Outcome = "rate_limited"
	OutcomeCaptchaRejected Outcome = "captcha_rejected"
	OutcomeInvalid         Outcome = "invalid"
	OutcomeSpamRejected    Outcome = "spam_rejected"
)

// Decision describes how the gate handled a submission. Rejections are
// values, not errors.
type Decision struct {
	Outcome Outcome
	LeadID  string

	// RateLimit is zero when the limiter was unavailable.
	RateLimit     ratelimit.Decision
	CaptchaErrors []string
	FieldErrors   map[string]string
	Spam          *spam.Verdict
}

func (d Decision) Accepted() bool {
	return d.Outcome == OutcomeAccepted
}
