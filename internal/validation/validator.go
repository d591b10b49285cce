// Package validation checks inquiry submissions field by field and runs the
// honeypot and content spam gates.
package validation

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/publicsuffix"

	"github.com/wolfman30/lead-intake/internal/leads"
	"github.com/wolfman30/lead-intake/internal/spam"
)

// Field names used as FieldErrors keys. They match the JSON payload.
const (
	FieldName        = "name"
	FieldEmail       = "email"
	FieldCompany     = "company"
	FieldPhone       = "phone"
	FieldProjectType = "projectType"
	FieldMessage     = "message"
)

var (
	namePattern  = regexp.MustCompile(`^[\p{L} '.-]+$`)
	phonePattern = regexp.MustCompile(`^[\d\s()+.-]+$`)
)

// defaultDisposableDomains are registrable domains of throwaway inbox services.
var defaultDisposableDomains = []string{
	"mailinator.com",
	"guerrillamail.com",
	"10minutemail.com",
	"tempmail.com",
	"temp-mail.org",
	"yopmail.com",
	"throwawaymail.com",
	"trashmail.com",
	"getnada.com",
	"sharklasers.com",
	"dispostable.com",
	"maildrop.cc",
	"fakeinbox.com",
}

// Result is the validator outcome. Spam takes precedence over FieldErrors;
// OK is true only when neither applies.
type Result struct {
	OK          bool
	FieldErrors map[string]string
	Spam        bool
	Honeypot    bool
	SpamVerdict spam.Verdict
}

// Validator runs structural validation and the embedded spam checks.
type Validator struct {
	analyzer   *spam.Analyzer
	disposable map[string]struct{}
}

// NewValidator builds a validator. extraDisposable extends the built-in
// disposable-domain denylist.
func NewValidator(analyzer *spam.Analyzer, extraDisposable ...string) *Validator {
	if analyzer == nil {
		panic("validation: spam analyzer cannot be nil")
	}
	disposable := make(map[string]struct{}, len(defaultDisposableDomains)+len(extraDisposable))
	for _, d := range append(append([]string{}, defaultDisposableDomains...), extraDisposable...) {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			disposable[d] = struct{}{}
		}
	}
	return &Validator{analyzer: analyzer, disposable: disposable}
}

// Validate expects a normalized submission (see leads.Submission.Normalized).
// Order: honeypot, then field rules, then content spam on message and company.
func (v *Validator) Validate(sub leads.Submission) Result {
	if sub.Website != "" {
		return Result{
			Spam:     true,
			Honeypot: true,
			SpamVerdict: spam.Verdict{
				IsSpam:     true,
				Confidence: 100,
				Score:      v.analyzer.Threshold(),
				Reasons:    []string{"honeypot:website"},
			},
		}
	}

	errs := make(map[string]string)
	v.checkName(sub.Name, errs)
	v.checkEmail(sub.Email, errs)
	v.checkPhone(sub.Phone, errs)
	if utf8.RuneCountInString(sub.Company) > 100 {
		errs[FieldCompany] = "must be at most 100 characters"
	}
	if sub.ProjectType == "" {
		errs[FieldProjectType] = "is required"
	} else if !sub.ProjectType.Valid() {
		errs[FieldProjectType] = "is not a supported project type"
	}
	switch n := utf8.RuneCountInString(sub.Message); {
	case n == 0:
		errs[FieldMessage] = "is required"
	case n < 10:
		errs[FieldMessage] = "must be at least 10 characters"
	case n > 2000:
		errs[FieldMessage] = "must be at most 2000 characters"
	}
	if len(errs) > 0 {
		return Result{FieldErrors: errs}
	}

	verdict := v.analyzer.Analyze(sub.Message)
	if !verdict.IsSpam && sub.Company != "" {
		if companyVerdict := v.analyzer.AnalyzeShort(sub.Company); companyVerdict.IsSpam {
			verdict = companyVerdict
		}
	}
	if verdict.IsSpam {
		return Result{Spam: true, SpamVerdict: verdict}
	}
	return Result{OK: true, SpamVerdict: verdict}
}

func (v *Validator) checkName(name string, errs map[string]string) {
	n := utf8.RuneCountInString(name)
	switch {
	case n == 0:
		errs[FieldName] = "is required"
	case n < 2:
		errs[FieldName] = "must be at least 2 characters"
	case n > 100:
		errs[FieldName] = "must be at most 100 characters"
	case !namePattern.MatchString(name):
		errs[FieldName] = "may only contain letters, spaces, apostrophes, periods and hyphens"
	}
}

func (v *Validator) checkEmail(email string, errs map[string]string) {
	if email == "" {
		errs[FieldEmail] = "is required"
		return
	}
	if len(email) > 254 {
		errs[FieldEmail] = "must be at most 254 characters"
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		errs[FieldEmail] = "must be a valid email address"
		return
	}
	at := strings.LastIndex(email, "@")
	domain := email[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		errs[FieldEmail] = "must be a valid email address"
		return
	}
	if v.isDisposable(domain) {
		errs[FieldEmail] = "disposable email addresses are not accepted"
	}
}

func (v *Validator) isDisposable(domain string) bool {
	domain = strings.ToLower(domain)
	if _, ok := v.disposable[domain]; ok {
		return true
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(domain)
	if err != nil {
		return false
	}
	_, ok := v.disposable[registrable]
	return ok
}

func (v *Validator) checkPhone(phone string, errs map[string]string) {
	if phone == "" {
		return
	}
	if len(phone) > 20 {
		errs[FieldPhone] = "must be at most 20 characters"
		return
	}
	if !phonePattern.MatchString(phone) {
		errs[FieldPhone] = "may only contain digits, spaces and + ( ) - ."
		return
	}
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits < 7 {
		errs[FieldPhone] = "must contain at least 7 digits"
	}
}
