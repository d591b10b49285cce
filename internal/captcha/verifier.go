// Package captcha verifies bot-challenge tokens against a siteverify endpoint
// (Cloudflare Turnstile by default, hCaptcha and reCAPTCHA share the shape).
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/lead-intake/pkg/logging"
)

var tracer = otel.Tracer("leadintake.internal.captcha")

// DefaultVerifyURL is the Cloudflare Turnstile siteverify endpoint.
const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// Error codes reported when the verification service itself failed.
const (
	CodeMissingInput  = "missing-input-response"
	CodeInternalError = "internal-error"
	CodeBadResponse   = "bad-response"
)

// Result is the outcome of a verification call.
type Result struct {
	Success    bool
	ErrorCodes []string
}

// Verifier checks a single token for the caller at remoteIP.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) Result
}

// NoopVerifier passes every token. Used when CAPTCHA is not required.
type NoopVerifier struct{}

// Verify always succeeds.
func (NoopVerifier) Verify(context.Context, string, string) Result {
	return Result{Success: true}
}

// SiteVerifier posts tokens to a siteverify URL and fails closed.
type SiteVerifier struct {
	secret     string
	verifyURL  string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewSiteVerifier builds a verifier. An empty verifyURL selects Turnstile.
func NewSiteVerifier(secret, verifyURL string, timeout time.Duration, logger *logging.Logger) *SiteVerifier {
	if logger == nil {
		logger = logging.Default()
	}
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SiteVerifier{
		secret:    secret,
		verifyURL: verifyURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
	Hostname   string   `json:"hostname"`
}

// Verify never returns success on transport or decode failures.
func (v *SiteVerifier) Verify(ctx context.Context, token, remoteIP string) Result {
	ctx, span := tracer.Start(ctx, "captcha.verify")
	defer span.End()
	span.SetAttributes(attribute.Int("captcha.token_length", len(token)))

	if strings.TrimSpace(token) == "" {
		return Result{ErrorCodes: []string{CodeMissingInput}}
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		v.logger.Error("captcha request build failed", "error", err)
		return Result{ErrorCodes: []string{CodeInternalError}}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		v.logger.Warn("captcha verification unavailable", "error", err, "token_length", len(token))
		return Result{ErrorCodes: []string{CodeInternalError}}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
	if err != nil {
		span.RecordError(err)
		v.logger.Warn("captcha response read failed", "error", fmt.Errorf("captcha: read: %w", err), "status", resp.StatusCode)
		return Result{ErrorCodes: []string{CodeBadResponse}}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		v.logger.Warn("captcha verification rejected request", "status", resp.StatusCode, "token_length", len(token))
		return Result{ErrorCodes: []string{CodeInternalError}}
	}

	var parsed siteVerifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		v.logger.Warn("captcha response malformed", "error", fmt.Errorf("captcha: decode: %w", err))
		return Result{ErrorCodes: []string{CodeBadResponse}}
	}

	span.SetAttributes(attribute.Bool("captcha.success", parsed.Success))
	if !parsed.Success {
		v.logger.Info("captcha token rejected", "error_codes", parsed.ErrorCodes, "token_length", len(token))
	}
	return Result{Success: parsed.Success, ErrorCodes: parsed.ErrorCodes}
}
