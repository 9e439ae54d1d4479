package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dispomed/dispomed-api/aggregation"
	"github.com/dispomed/dispomed-api/entities"
)

type fakeAPI struct {
	server      *httptest.Server
	searchCalls atomic.Int32
	slowStarted chan struct{}
	releaseSlow chan struct{}
	lastQuery   atomic.Value
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func productIncident(product string) entities.Incident {
	return entities.Incident{
		ID:                1,
		ProductID:         10,
		Product:           product,
		AccentedProduct:   product,
		Status:            entities.StatusRupture,
		StartDate:         entities.MustParseDate("2024-01-01"),
		CalculatedEndDate: entities.MustParseDate("2024-06-10"),
		CISCodes:          entities.CISCodes{"60001", "60002"},
	}
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{
		slowStarted: make(chan struct{}),
		releaseSlow: make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/incidents", func(w http.ResponseWriter, r *http.Request) {
		api.lastQuery.Store(r.URL.RawQuery)
		product := r.URL.Query().Get("product")
		switch product {
		case "slow":
			close(api.slowStarted)
			<-api.releaseSlow
		case "broken":
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
			return
		case "":
			product = "doliprane"
		}
		writeJSON(w, http.StatusOK, []entities.Incident{productIncident(product)})
	})
	mux.HandleFunc("GET /api/catalog", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, entities.Catalog{ReportDate: entities.MustParseDate("2024-06-10")})
	})
	mux.HandleFunc("GET /api/search", func(w http.ResponseWriter, r *http.Request) {
		api.searchCalls.Add(1)
		if r.URL.Query().Get("searchTerm") == "boom" {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Search failed"})
			return
		}
		writeJSON(w, http.StatusOK, []entities.SearchResult{{ProductID: 10, Product: "doliprane"}})
	})
	mux.HandleFunc("GET /api/substitutions/{code}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("code") == "0" {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
			return
		}
		writeJSON(w, http.StatusOK, []entities.Substitution{{CodeCISOrigine: r.PathValue("code"), CodeCISCible: "60009"}})
	})
	mux.HandleFunc("GET /api/ema-incidents", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cis_codes") == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cis_codes query param required"})
			return
		}
		writeJSON(w, http.StatusOK, []entities.EMAIncident{{CISCode: "60001"}})
	})
	mux.HandleFunc("GET /api/product/{name}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "Database Setup Required",
			"message": "createdb dispomed",
		})
	})
	mux.HandleFunc("GET /api/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, entities.AppConfig{APIBaseURL: "http://localhost:3000"})
	})

	api.server = httptest.NewServer(mux)
	t.Cleanup(api.server.Close)
	return api
}

func TestFilterQuery(t *testing.T) {
	q := FilterQuery(entities.FilterState{SearchTerm: "doli", ATCClass: "N", MoleculeID: "4,9", VaccinesOnly: true})
	expected := "atcClass=N&molecule=4%2C9&monthsToShow=12&product=doli&vaccinesOnly=true"
	if q.Encode() != expected {
		t.Errorf("Expected %s, got %s", expected, q.Encode())
	}

	if got := FilterQuery(entities.FilterState{MonthsToShow: 6}).Encode(); got != "monthsToShow=6" {
		t.Errorf("Expected only monthsToShow, got %s", got)
	}
}

func TestClientIncidents(t *testing.T) {
	api := newFakeAPI(t)
	c := New(api.server.URL + "/")

	incidents, err := c.Incidents(context.Background(), entities.FilterState{MonthsToShow: 24, SearchTerm: "amox"})
	if err != nil {
		t.Fatalf("Incidents failed: %v", err)
	}
	if len(incidents) != 1 || incidents[0].Product != "amox" {
		t.Errorf("Unexpected incidents %+v", incidents)
	}
	if q := api.lastQuery.Load().(string); q != "monthsToShow=24&product=amox" {
		t.Errorf("Unexpected query %s", q)
	}
}

func TestClientAPIError(t *testing.T) {
	api := newFakeAPI(t)
	c := New(api.server.URL)

	_, err := c.EMAIncidents(context.Background(), nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected an APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "cis_codes query param required" {
		t.Errorf("Unexpected error %+v", apiErr)
	}

	_, err = c.Product(context.Background(), "doliprane")
	if !errors.As(err, &apiErr) || apiErr.Detail != "createdb dispomed" {
		t.Errorf("Expected setup instructions in the error detail, got %v", err)
	}

	incidents, err := c.EMAIncidents(context.Background(), []string{"60001", "60002"})
	if err != nil || len(incidents) != 1 {
		t.Errorf("Unexpected result %v %v", incidents, err)
	}
}

func TestClientSearchDegradesToEmpty(t *testing.T) {
	api := newFakeAPI(t)
	c := New(api.server.URL)
	ctx := context.Background()

	if got := c.Search(ctx, "d", 12); got == nil || len(got) != 0 {
		t.Errorf("Expected an empty slice for a short term, got %v", got)
	}
	if api.searchCalls.Load() != 0 {
		t.Error("Expected no request for a short term")
	}

	if got := c.Search(ctx, "doli", 12); len(got) != 1 {
		t.Errorf("Expected one suggestion, got %v", got)
	}

	got := c.Search(ctx, "boom", 12)
	if got == nil || len(got) != 0 {
		t.Errorf("Expected an empty slice on failure, got %v", got)
	}
}

func TestClientSubstitutionsDegradeToEmpty(t *testing.T) {
	api := newFakeAPI(t)
	c := New(api.server.URL)

	if got := c.Substitutions(context.Background(), "60001"); len(got) != 1 || got[0].CodeCISCible != "60009" {
		t.Errorf("Unexpected substitutions %v", got)
	}
	if got := c.Substitutions(context.Background(), "0"); got == nil || len(got) != 0 {
		t.Errorf("Expected an empty slice on failure, got %v", got)
	}

	unreachable := New("http://127.0.0.1:1", WithHTTPClient(&http.Client{Timeout: 200 * time.Millisecond}))
	if got := unreachable.Substitutions(context.Background(), "60001"); got == nil || len(got) != 0 {
		t.Errorf("Expected an empty slice when the API is down, got %v", got)
	}
}

func TestClientConfig(t *testing.T) {
	api := newFakeAPI(t)
	cfg, err := New(api.server.URL).Config(context.Background())
	if err != nil || cfg.APIBaseURL != "http://localhost:3000" {
		t.Errorf("Unexpected config %+v %v", cfg, err)
	}
}

func TestSessionLoad(t *testing.T) {
	api := newFakeAPI(t)
	s := NewSession(New(api.server.URL))

	applied, err := s.Load(context.Background())
	if err != nil || !applied {
		t.Fatalf("Expected the initial load to apply, got %v %v", applied, err)
	}

	s.View(func(store *aggregation.Store) {
		if store.ReportDate().String() != "2024-06-10" {
			t.Errorf("Expected report date 2024-06-10, got %s", store.ReportDate())
		}
		if len(store.Products()) != 1 || store.Products()[0] != "doliprane" {
			t.Errorf("Unexpected products %v", store.Products())
		}
		if store.DisplayState() != aggregation.DisplayInitial {
			t.Errorf("Expected initial display state, got %s", store.DisplayState())
		}
	})

	monthly := s.MonthlyAggregate()
	if len(monthly) != 12 {
		t.Fatalf("Expected 12 months, got %d", len(monthly))
	}
	if last := monthly[len(monthly)-1]; last.Rupture != 2 {
		t.Errorf("Expected 2 packages in shortage in June, got %+v", last)
	}
}

func TestSessionLastIssuedWins(t *testing.T) {
	api := newFakeAPI(t)
	s := NewSession(New(api.server.URL))
	ctx := context.Background()

	type result struct {
		applied bool
		err     error
	}
	slow := make(chan result, 1)
	go func() {
		applied, err := s.SetFilters(ctx, entities.FilterState{SearchTerm: "slow", MonthsToShow: 12})
		slow <- result{applied, err}
	}()

	select {
	case <-api.slowStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("Slow request never reached the server")
	}

	applied, err := s.SetFilters(ctx, entities.FilterState{SearchTerm: "fast", MonthsToShow: 12})
	if err != nil || !applied {
		t.Fatalf("Expected the newest request to apply, got %v %v", applied, err)
	}

	close(api.releaseSlow)
	res := <-slow
	if res.applied || res.err != nil {
		t.Errorf("Expected the superseded response to be dropped, got %v %v", res.applied, res.err)
	}

	if got := s.Filters().SearchTerm; got != "fast" {
		t.Errorf("Expected filters of the last issued request, got %q", got)
	}
	s.View(func(store *aggregation.Store) {
		if len(store.Products()) != 1 || store.Products()[0] != "fast" {
			t.Errorf("Expected incidents of the last issued request, got %v", store.Products())
		}
	})
}

func TestSessionSetFiltersError(t *testing.T) {
	api := newFakeAPI(t)
	s := NewSession(New(api.server.URL))

	applied, err := s.SetFilters(context.Background(), entities.FilterState{SearchTerm: "broken"})
	if applied || err == nil {
		t.Errorf("Expected an error, got %v %v", applied, err)
	}
	if s.Filters().SearchTerm != "" {
		t.Error("Expected filters to stay unchanged after a failed fetch")
	}
}

func TestSessionSetMonthsToShow(t *testing.T) {
	api := newFakeAPI(t)
	s := NewSession(New(api.server.URL))

	if _, err := s.SetMonthsToShow(context.Background(), 36); err != nil {
		t.Fatalf("SetMonthsToShow failed: %v", err)
	}
	if s.Filters().MonthsToShow != 36 {
		t.Errorf("Expected 36 months, got %d", s.Filters().MonthsToShow)
	}
	if s.Latest() != 1 {
		t.Errorf("Expected one issued token, got %d", s.Latest())
	}
}

func TestSessionSetAllTime(t *testing.T) {
	api := newFakeAPI(t)
	s := NewSession(New(api.server.URL))
	ctx := context.Background()

	if _, err := s.SetAllTime(ctx); err == nil {
		t.Error("Expected an error before the report date is known")
	}

	if _, err := s.Load(ctx); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	applied, err := s.SetAllTime(ctx)
	if err != nil || !applied {
		t.Fatalf("Expected the all time fetch to apply, got %v %v", applied, err)
	}

	// May 2021 through June 2024
	if got := s.Filters().MonthsToShow; got != 38 {
		t.Errorf("Expected 38 months, got %d", got)
	}
	s.View(func(store *aggregation.Store) {
		if store.StartDate().String() != "2021-05-01" {
			t.Errorf("Expected the window to start on 2021-05-01, got %s", store.StartDate())
		}
	})
}
