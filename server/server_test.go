package server

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dispomed/dispomed-api/config"
	"github.com/dispomed/dispomed-api/entities"
	"github.com/dispomed/dispomed-api/handlers"
)

type stubRepository struct{}

func (stubRepository) Incidents(context.Context, entities.FilterState) ([]entities.Incident, error) {
	return []entities.Incident{}, nil
}

func (stubRepository) IncidentsByProduct(context.Context, int) ([]entities.Incident, error) {
	return nil, nil
}

func (stubRepository) ProductByName(context.Context, string) (entities.Product, error) {
	return entities.Product{ID: 1, Name: "doliprane"}, nil
}

func (stubRepository) Search(context.Context, string, int) ([]entities.SearchResult, error) {
	return nil, nil
}

func (stubRepository) Substitutions(context.Context, string) ([]entities.Substitution, error) {
	return nil, nil
}

func (stubRepository) EMAIncidents(context.Context, []string) ([]entities.EMAIncident, error) {
	return nil, nil
}

func (stubRepository) SalesByCIS(context.Context, []string) ([]entities.Sale, error) {
	return nil, nil
}

func (stubRepository) ATCClasses(context.Context, int) ([]entities.ATCClassRow, error) {
	return nil, nil
}

func (stubRepository) MaxReportDate(context.Context) (entities.Date, error) {
	return entities.Date{}, nil
}

type stubHealth struct{}

func (stubHealth) HealthCheck(context.Context) (string, map[string]any, int) {
	return "healthy", map[string]any{}, http.StatusOK
}

func (stubHealth) CalculateNextUpdate() time.Time { return time.Now().Add(time.Hour) }

func testConfig() *config.Config {
	return &config.Config{
		Port:           "8080",
		Address:        "127.0.0.1",
		Env:            config.EnvTest,
		LogLevel:       "info",
		MaxRequestBody: 1024,
		MaxHeaderSize:  4096,
		AllowedOrigins: []string{"*"},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	h := handlers.New(handlers.Options{Repository: stubRepository{}, Health: stubHealth{}})
	s := NewServer(testConfig(), h)
	t.Cleanup(s.limiter.Stop)
	return s
}

func TestNewServer(t *testing.T) {
	s := newTestServer(t)

	if s.server.Addr != "127.0.0.1:8080" {
		t.Errorf("Expected address 127.0.0.1:8080, got %s", s.server.Addr)
	}
	if s.server.ReadTimeout != 15*time.Second || s.server.IdleTimeout != 60*time.Second {
		t.Errorf("Unexpected timeouts %v %v", s.server.ReadTimeout, s.server.IdleTimeout)
	}
	if s.Handler() == nil {
		t.Error("Expected a router")
	}
}

func TestServerRoutes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		path         string
		expectedCode int
	}{
		{"/health", http.StatusOK},
		{"/api/incidents", http.StatusOK},
		{"/api/incidents/summary", http.StatusOK},
		{"/api/product/doliprane", http.StatusOK},
		{"/api/search?searchTerm=do", http.StatusOK},
		{"/api/ema-incidents", http.StatusBadRequest},
		{"/api/config", http.StatusOK},
		{"/api/catalog", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/uptime", http.StatusOK},
		{"/api/unknown", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			rr := httptest.NewRecorder()
			s.Handler().ServeHTTP(rr, req)

			if rr.Code != tt.expectedCode {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedCode, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestServerMetricsEndpointExposesAppMetrics(t *testing.T) {
	s := newTestServer(t)

	s.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/config", nil))

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rr.Body.String(), "http_request_total") {
		t.Error("Expected http_request_total in /metrics output")
	}
}

func TestServerRedirectsTrailingSlash(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/config/", nil))
	if rr.Code != http.StatusMovedPermanently {
		t.Errorf("Expected a redirect, got %d", rr.Code)
	}
}

func TestServerCORS(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	req.Header.Set("Origin", "https://example.org")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected a wildcard CORS origin, got %q", got)
	}
}

func TestServerCompressesJSON(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if got := rr.Header().Get("Content-Encoding"); got != "gzip" {
		t.Fatalf("Expected gzip encoding, got %q", got)
	}
	zr, err := gzip.NewReader(rr.Body)
	if err != nil {
		t.Fatalf("Failed to open gzip body: %v", err)
	}
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("Failed to read gzip body: %v", err)
	}
	if !strings.Contains(string(body), "API_BASE_URL") {
		t.Errorf("Unexpected body %s", body)
	}
}

func TestServerRequestID(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	req.Header.Set("X-Request-Id", "req-42")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
}

func TestServerStartAndShutdown(t *testing.T) {
	cfg := testConfig()
	cfg.Port = "0"
	h := handlers.New(handlers.Options{Repository: stubRepository{}, Health: stubHealth{}})
	s := NewServer(cfg, h)

	done := make(chan error, 1)
	go func() { done <- s.Start() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected a clean stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Server did not stop")
	}
}

func TestFormatUptimeHuman(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{5 * time.Second, "5s"},
		{2*time.Minute + 3*time.Second, "2m 3s"},
		{time.Hour, "1h 0m 0s"},
		{26*time.Hour + 4*time.Minute, "1d 2h 4m 0s"},
	}

	for _, tt := range tests {
		if got := formatUptimeHuman(tt.d); got != tt.expected {
			t.Errorf("formatUptimeHuman(%v) = %q, expected %q", tt.d, got, tt.expected)
		}
	}
}
