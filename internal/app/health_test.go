package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"letterdesk/api/internal/metrics"
)

func TestHealthEndpoint(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var payload map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &payload)
	if payload["ok"] != true {
		t.Fatalf("expected ok true, got %v", payload["ok"])
	}
}

func TestReadyEndpointHealthy(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "*", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &payload)
	if payload["status"] != "ready" {
		t.Fatalf("expected status ready, got %v", payload["status"])
	}
}

func TestReadyEndpointDatabaseDown(t *testing.T) {
	fs := &fakeStore{
		pingFn: func(context.Context) error {
			return errors.New("connection refused")
		},
	}
	server := NewHTTPServer(newTestService(fs), "*", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d body=%s", rr.Code, rr.Body.String())
	}
	var payload map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &payload)
	if payload["status"] != "not_ready" {
		t.Fatalf("expected status not_ready, got %v", payload["status"])
	}
}

func TestUnknownRouteReturnsNotFound(t *testing.T) {
	fs := &fakeStore{getUserByIDFn: userLookup("admin")}
	server := NewHTTPServer(newTestService(fs), "*", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/nope", nil)
	req.Header.Set("Authorization", "Bearer "+bearerFor(t, "user-1"))
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestCORSHeadersOnResponses(t *testing.T) {
	server := NewHTTPServer(newTestService(&fakeStore{}), "https://letters.example.com", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://letters.example.com" {
		t.Fatalf("Allow-Origin = %q", got)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header")
	}
}

func TestMetricsEndpointAndRequestCounting(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	server := NewHTTPServer(newTestService(&fakeStore{}), "*", collector, metrics.Handler(reg))

	// Generate some traffic first.
	healthReq := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	server.Handler().ServeHTTP(httptest.NewRecorder(), healthReq)

	badReq := httptest.NewRequest(http.MethodPost, "/api/auth/signin",
		bytes.NewBufferString(`{"email":"nobody@example.com","password":"nope"}`))
	server.Handler().ServeHTTP(httptest.NewRecorder(), badReq)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "letterdesk_http_requests_total") {
		t.Fatalf("scrape output missing request counter")
	}
	if !strings.Contains(body, "letterdesk_auth_failures_total") {
		t.Fatalf("scrape output missing auth failure counter")
	}
}
