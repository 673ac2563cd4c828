package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/stitchfield/api/internal/domain"
)

func TestNewRouterHealthEndpoints(t *testing.T) {
	now := time.Date(2025, 1, 2, 9, 30, 0, 0, time.UTC)
	system := &stubSystemService{
		reportFn: func(context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{
				Status:      domain.HealthStatusOK,
				GeneratedAt: now,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK},
				},
			}, nil
		},
	}
	router := NewRouter(WithHealthHandlers(NewHealthHandlers(
		WithHealthSystemService(system),
		WithHealthClock(func() time.Time { return now }),
	)))

	rr := doRequest(router, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz returned %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	rr = doRequest(router, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz returned %d", rr.Code)
	}

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("readyz body is not JSON: %v", err)
	}
	if !body.Success || body.Data.Status != "ok" {
		t.Fatalf("unexpected readyz payload %s", rr.Body.String())
	}
}

func TestNewRouterReadyzFailsWhenDependenciesDown(t *testing.T) {
	system := &stubSystemService{
		reportFn: func(context.Context) (domain.SystemHealthReport, error) {
			return domain.SystemHealthReport{
				Status: domain.HealthStatusError,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusError, Error: "deadline exceeded"},
				},
			}, nil
		},
	}
	router := NewRouter(WithHealthHandlers(NewHealthHandlers(WithHealthSystemService(system))))

	rr := doRequest(router, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestNewRouterUnknownRoute(t *testing.T) {
	router := NewRouter()

	rr := doRequest(router, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("404 body is not JSON: %v", err)
	}
	if body.Success || body.Error != "route_not_found" {
		t.Fatalf("unexpected 404 payload %s", rr.Body.String())
	}
}

func TestNewRouterMethodNotAllowed(t *testing.T) {
	router := NewRouter(WithProductRoutes(NewProductHandlers(&stubCatalogService{}).Routes))

	rr := doRequest(router, httptest.NewRequest(http.MethodDelete, "/api/products", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestNewRouterMountsGroups(t *testing.T) {
	router := NewRouter(
		WithProductRoutes(NewProductHandlers(&stubCatalogService{}).Routes),
		WithCartRoutes(NewCartHandlers(nil, &stubCartService{}).Routes),
	)

	rr := doRequest(router, httptest.NewRequest(http.MethodGet, "/api/products", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("products mount returned %d", rr.Code)
	}

	req := requestWithIdentity(httptest.NewRequest(http.MethodGet, "/api/carts", nil), customerIdentity())
	rr = doRequest(router, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("carts mount returned %d", rr.Code)
	}
}
