package notify

import (
	"bytes"
	"fmt"
	"html"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/microcosm-cc/bluemonday"

	"github.com/wolfman30/lead-intake/internal/leads"
)

// sanitizer strips all markup from user-supplied text. Its entity-escaped
// output is unescaped again so the templates escape exactly once.
var sanitizer = bluemonday.StrictPolicy()

const clientHTML = `<p>Hi {{.FirstName}},</p>
<p>Thanks for reaching out{{if .Company}} on behalf of {{.Company}}{{end}}. We received your {{.ProjectType}} inquiry and our team will be in touch shortly.</p>
{{- if .Priority}}
<p>We have marked your request as <strong>{{.Priority}}</strong> priority. Projects like yours typically take <strong>{{.Timeline}}</strong>.</p>
{{- end}}
<p>{{.Signature}}</p>`

const clientText = `Hi {{.FirstName}},

Thanks for reaching out{{if .Company}} on behalf of {{.Company}}{{end}}. We received your {{.ProjectType}} inquiry and our team will be in touch shortly.
{{if .Priority}}
We have marked your request as {{.Priority}} priority. Projects like yours typically take {{.Timeline}}.
{{end}}
{{.Signature}}
`

const adminHTML = `<h2>New {{.Priority}} priority lead: {{.Name}}</h2>
<p><strong>Email:</strong> {{.Email}}{{if .Phone}}<br><strong>Phone:</strong> {{.Phone}}{{end}}{{if .Company}}<br><strong>Company:</strong> {{.Company}}{{end}}</p>
<p><strong>Project:</strong> {{.ProjectType}}, {{.Budget}}, {{.Urgency}}, {{.Complexity}} ({{.Timeline}})</p>
<p><strong>Score:</strong> {{.Score.TotalScore}}/100
(budget {{.Score.BudgetScore}}, urgency {{.Score.UrgencyScore}}, complexity {{.Score.ComplexityScore}}, priority {{.Score.PriorityScore}}, quality {{.Score.QualityScore}})</p>
<blockquote>{{.Message}}</blockquote>
{{- if .Requirements}}
<h3>Key requirements</h3>
<ul>{{range .Requirements}}<li>{{.}}</li>{{end}}</ul>
{{- end}}
{{- if .Risks}}
<h3>Risk factors</h3>
<ul>{{range .Risks}}<li>{{.}}</li>{{end}}</ul>
{{- end}}
{{- if .NextSteps}}
<h3>Recommended next steps</h3>
<ul>{{range .NextSteps}}<li>{{.}}</li>{{end}}</ul>
{{- end}}
<p><a href="{{.AdminURL}}">Open lead {{.LeadID}}</a></p>`

const adminText = `New {{.Priority}} priority lead: {{.Name}}
Email: {{.Email}}{{if .Phone}}
Phone: {{.Phone}}{{end}}{{if .Company}}
Company: {{.Company}}{{end}}
Project: {{.ProjectType}}, {{.Budget}}, {{.Urgency}}, {{.Complexity}} ({{.Timeline}})
Score: {{.Score.TotalScore}}/100 (budget {{.Score.BudgetScore}}, urgency {{.Score.UrgencyScore}}, complexity {{.Score.ComplexityScore}}, priority {{.Score.PriorityScore}}, quality {{.Score.QualityScore}})

{{.Message}}
{{range .Requirements}}
- requirement: {{.}}{{end}}{{range .Risks}}
- risk: {{.}}{{end}}{{range .NextSteps}}
- next step: {{.}}{{end}}

{{.AdminURL}}
`

var (
	clientHTMLTmpl = htmltemplate.Must(htmltemplate.New("client.html").Parse(clientHTML))
	clientTextTmpl = texttemplate.Must(texttemplate.New("client.txt").Parse(clientText))
	adminHTMLTmpl  = htmltemplate.Must(htmltemplate.New("admin.html").Parse(adminHTML))
	adminTextTmpl  = texttemplate.Must(texttemplate.New("admin.txt").Parse(adminText))
)

// view holds sanitized values shared by every template.
type view struct {
	LeadID       string
	FirstName    string
	Name         string
	Email        string
	Phone        string
	Company      string
	Message      string
	ProjectType  string
	Priority     string
	Budget       string
	Urgency      string
	Complexity   string
	Timeline     string
	Requirements []string
	Risks        []string
	NextSteps    []string
	Score        leads.LeadScore
	AdminURL     string
	Signature    string
}

func newView(n Notification, cfg Config) view {
	sub := n.Submission
	v := view{
		LeadID:      n.LeadID,
		Name:        clean(sub.Name),
		FirstName:   firstName(clean(sub.Name)),
		Email:       clean(sub.Email),
		Phone:       clean(sub.Phone),
		Company:     clean(sub.Company),
		Message:     clean(sub.Message),
		ProjectType: humanize(string(sub.ProjectType)),
		AdminURL:    AdminLeadURL(cfg.PublicBaseURL, n.LeadID),
		Signature:   cfg.Signature,
	}
	if n.Score != nil {
		v.Score = *n.Score
	}
	if q := n.Qualification; q != nil {
		v.ProjectType = humanize(string(q.ProjectType))
		v.Priority = string(q.Priority)
		v.Budget = string(q.EstimatedBudget)
		v.Urgency = humanize(string(q.Urgency))
		v.Complexity = string(q.Complexity)
		v.Timeline = q.Complexity.Timeline()
		v.Requirements = cleanAll(q.KeyRequirements)
		v.Risks = cleanAll(q.RiskFactors)
		v.NextSteps = cleanAll(q.RecommendedNextSteps)
	}
	return v
}

func renderClient(v view) (EmailMessage, error) {
	body, text, err := render(clientHTMLTmpl, clientTextTmpl, v)
	if err != nil {
		return EmailMessage{}, fmt.Errorf("notify: render client email: %w", err)
	}
	return EmailMessage{
		ToName:  v.Name,
		Subject: "We received your project inquiry",
		Body:    text,
		HTML:    body,
	}, nil
}

func renderAdmin(v view) (EmailMessage, error) {
	body, text, err := render(adminHTMLTmpl, adminTextTmpl, v)
	if err != nil {
		return EmailMessage{}, fmt.Errorf("notify: render admin email: %w", err)
	}
	return EmailMessage{
		ReplyTo: v.Email,
		Subject: fmt.Sprintf("[%s] New lead %s (score %d)", strings.ToUpper(v.Priority), v.Name, v.Score.TotalScore),
		Body:    text,
		HTML:    body,
	}, nil
}

func render(h *htmltemplate.Template, t *texttemplate.Template, v view) (string, string, error) {
	var hb, tb bytes.Buffer
	if err := h.Execute(&hb, v); err != nil {
		return "", "", err
	}
	if err := t.Execute(&tb, v); err != nil {
		return "", "", err
	}
	return hb.String(), tb.String(), nil
}

// AdminLeadURL builds the admin link for a lead.
func AdminLeadURL(baseURL, leadID string) string {
	return strings.TrimRight(baseURL, "/") + "/admin/leads/" + leadID
}

func clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(sanitizer.Sanitize(s)))
}

func cleanAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if c := clean(item); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func firstName(name string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return "there"
}

func humanize(v string) string {
	return strings.ReplaceAll(v, "-", " ")
}
