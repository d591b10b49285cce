package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/wolfman30/lead-intake/internal/app/bootstrap"
)

func TestOpsRouterServesHealthAndMetrics(t *testing.T) {
	metricsHandler, m := bootstrap.BuildMetrics()
	m.ObserveEnrichment("enriched")
	r := opsRouter(metricsHandler)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), `leadintake_enrichment_jobs_total{state="enriched"} 1`) {
		t.Fatalf("expected enrichment counter to be exported")
	}
}
