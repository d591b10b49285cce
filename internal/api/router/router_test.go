package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	httpmiddleware "github.com/wolfman30/lead-intake/internal/http/middleware"
	"github.com/wolfman30/lead-intake/internal/intake"
	"github.com/wolfman30/lead-intake/internal/leads"
	"github.com/wolfman30/lead-intake/internal/ratelimit"
	"github.com/wolfman30/lead-intake/pkg/logging"
)

const adminSecret = "router-test-secret"

type capturingSubmitter struct {
	sourceIP string
}

func (c *capturingSubmitter) Submit(_ context.Context, sub leads.Submission) (intake.Decision, error) {
	c.sourceIP = sub.SourceIP
	return intake.Decision{
		Outcome:   intake.OutcomeAccepted,
		LeadID:    "lead-1",
		RateLimit: ratelimit.Decision{Allowed: true, Remaining: 9},
	}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *leads.InMemoryRepository, *capturingSubmitter) {
	t.Helper()
	return newTestRouterWithProxy(t, false)
}

func newTestRouterWithProxy(t *testing.T, trustProxy bool) (http.Handler, *leads.InMemoryRepository, *capturingSubmitter) {
	t.Helper()

	logger := logging.Discard()
	repo := leads.NewInMemoryRepository()
	submitter := &capturingSubmitter{}

	cfg := &Config{
		Logger:             logger,
		IntakeHandler:      intake.NewHandler(submitter, logger),
		LeadsHandler:       leads.NewHandler(repo, logger),
		AdminAuthSecret:    adminSecret,
		MetricsHandler:     http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("metrics")) }),
		CORSAllowedOrigins: []string{"https://studio.example"},
		TrustProxyHeaders:  trustProxy,
	}
	return New(cfg), repo, submitter
}

func adminToken(t *testing.T) string {
	t.Helper()
	claims := httpmiddleware.AdminClaims{
		Role: httpmiddleware.AdminRole,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops@studio.example",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(adminSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestRouterHealthEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestRouterInquiryUsesPeerAddressByDefault(t *testing.T) {
	router, _, submitter := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/inquiries", strings.NewReader(`{"name":"Jo"}`))
	req.RemoteAddr = "203.0.113.9:41000"
	req.Header.Set("X-Forwarded-For", "198.51.100.23")
	req.Header.Set("X-Real-IP", "198.51.100.24")
	req.Header.Set("Origin", "https://studio.example")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}
	if submitter.sourceIP != "203.0.113.9" {
		t.Fatalf("expected peer address, got %q", submitter.sourceIP)
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "https://studio.example" {
		t.Fatal("expected CORS headers on inquiry response")
	}
	if rr.Header().Get("X-RateLimit-Remaining") != "9" {
		t.Fatalf("expected rate limit header, got %q", rr.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRouterInquiryUsesForwardedClientIPBehindTrustedProxy(t *testing.T) {
	router, _, submitter := newTestRouterWithProxy(t, true)

	req := httptest.NewRequest(http.MethodPost, "/api/inquiries", strings.NewReader(`{"name":"Jo"}`))
	req.RemoteAddr = "10.0.0.2:41000"
	req.Header.Set("X-Forwarded-For", "198.51.100.23")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if submitter.sourceIP != "198.51.100.23" {
		t.Fatalf("expected forwarded client ip, got %q", submitter.sourceIP)
	}
}

func TestRouterMetricsEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK || rr.Body.String() != "metrics" {
		t.Fatalf("unexpected metrics response: %d %q", rr.Code, rr.Body.String())
	}
}

func TestRouterAdminLeadRequiresToken(t *testing.T) {
	router, repo, _ := newTestRouter(t)
	lead, err := repo.Create(context.Background(), leads.NewBaselineLead(leads.Submission{Name: "Priya", Email: "p@example.com"}))
	if err != nil {
		t.Fatalf("create lead: %v", err)
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/leads/"+lead.ID, nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/leads/"+lead.ID, nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var got leads.Lead
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode lead: %v", err)
	}
	if got.ID != lead.ID || got.Status != leads.StatusNew {
		t.Fatalf("unexpected lead %+v", got)
	}
}

func TestRouterAdminDisabledWithoutSecret(t *testing.T) {
	router := New(&Config{
		Logger:        logging.Discard(),
		IntakeHandler: intake.NewHandler(&capturingSubmitter{}, nil),
		LeadsHandler:  leads.NewHandler(leads.NewInMemoryRepository(), nil),
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/leads/x", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}
