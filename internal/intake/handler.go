package intake

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/wolfman30/lead-intake/internal/leads"
	"github.com/wolfman30/lead-intake/pkg/logging"
)

// MaxBodyBytes caps the inquiry payload.
const MaxBodyBytes = 64 << 10

const acceptedMessage = "Thanks for your inquiry. We'll be in touch shortly."

// Submitter is satisfied by *Pipeline.
type Submitter interface {
	Submit(ctx context.Context, sub leads.Submission) (Decision, error)
}

// Handler serves POST /api/inquiries.
type Handler struct {
	pipeline Submitter
	logger   *logging.Logger
}

func NewHandler(pipeline Submitter, logger *logging.Logger) *Handler {
	if pipeline == nil {
		panic("intake: pipeline cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{pipeline: pipeline, logger: logger}
}

type inquiryRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Company      string `json:"company"`
	Phone        string `json:"phone"`
	ProjectType  string `json:"projectType"`
	Message      string `json:"message"`
	Website      string `json:"website"`
	CaptchaToken string `json:"captchaToken"`
}

type acceptedResponse struct {
	Success bool   `json:"success"`
	LeadID  string `json:"leadId"`
	Message string `json:"message"`
}

type rejectionResponse struct {
	Error             string            `json:"error"`
	RetryAfterSeconds int               `json:"retryAfterSeconds,omitempty"`
	FieldErrors       map[string]string `json:"fieldErrors,omitempty"`
}

// Submit handles POST /api/inquiries.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	var req inquiryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, rejectionResponse{Error: "payload_too_large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, rejectionResponse{
			Error:       "invalid",
			FieldErrors: map[string]string{"body": "must be a JSON object"},
		})
		return
	}

	decision, err := h.pipeline.Submit(r.Context(), leads.Submission{
		Name:         req.Name,
		Email:        req.Email,
		Company:      req.Company,
		Phone:        req.Phone,
		ProjectType:  leads.ProjectType(req.ProjectType),
		Message:      req.Message,
		Website:      req.Website,
		CaptchaToken: req.CaptchaToken,
		SourceIP:     clientIP(r),
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		h.logger.Error("inquiry submission failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, rejectionResponse{Error: "internal"})
		return
	}

	if decision.RateLimit.Allowed || decision.Outcome == OutcomeRateLimited {
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.RateLimit.Remaining))
	}

	switch decision.Outcome {
	case OutcomeAccepted:
		writeJSON(w, http.StatusCreated, acceptedResponse{
			Success: true,
			LeadID:  decision.LeadID,
			Message: acceptedMessage,
		})
	case OutcomeRateLimited:
		retry := decision.RateLimit.RetryAfterSeconds()
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		writeJSON(w, http.StatusTooManyRequests, rejectionResponse{Error: "rate_limited", RetryAfterSeconds: retry})
	case OutcomeCaptchaRejected:
		writeJSON(w, http.StatusBadRequest, rejectionResponse{Error: "captcha_failed"})
	case OutcomeInvalid:
		writeJSON(w, http.StatusBadRequest, rejectionResponse{Error: "invalid", FieldErrors: decision.FieldErrors})
	case OutcomeSpamRejected:
		writeJSON(w, http.StatusBadRequest, rejectionResponse{Error: "spam"})
	default:
		h.logger.Error("unknown intake outcome", "outcome", decision.Outcome)
		writeJSON(w, http.StatusInternalServerError, rejectionResponse{Error: "internal"})
	}
}

// clientIP returns the host part of RemoteAddr: the TCP peer, or the
// forwarded client when the router trusts proxy headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
