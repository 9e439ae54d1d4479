package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/dispomed/dispomed-api/entities"
)

type summaryBody struct {
	ReportDate   string `json:"report_date"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	DisplayState string `json:"display_state"`
	Monthly      []struct {
		Date    string `json:"date"`
		Rupture int    `json:"rupture"`
		Tension int    `json:"tension"`
	} `json:"monthly"`
	RuptureSeries []struct {
		Marked bool `json:"marked"`
	} `json:"rupture_series"`
	Chart struct {
		Rows []struct {
			Product string            `json:"product"`
			Bars    []json.RawMessage `json:"bars"`
		} `json:"rows"`
	} `json:"chart"`
}

func summaryHandler() (*Handler, *fakeRepository) {
	repo := &fakeRepository{incidents: []entities.Incident{
		incident(1, 10, "doliprane", entities.StatusRupture, "2024-01-01", "2024-06-10", "60001", "60002"),
		incident(2, 11, "amoxicilline", entities.StatusTension, "2023-10-01", "2024-03-15", "60003"),
	}}
	catalog := &fakeCatalog{catalog: entities.Catalog{ReportDate: entities.MustParseDate("2024-06-10")}}
	return New(Options{Repository: repo, Catalog: catalog}), repo
}

func TestSummary(t *testing.T) {
	h, _ := summaryHandler()

	rr := serve(h, http.MethodGet, "/api/incidents/summary?monthsToShow=12")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var body summaryBody
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}

	if body.ReportDate != "2024-06-10" || body.StartDate != "2023-07-01" || body.EndDate != "2024-07-01" {
		t.Errorf("Unexpected range %s %s %s", body.ReportDate, body.StartDate, body.EndDate)
	}
	if body.DisplayState != "initial" {
		t.Errorf("Expected initial display state, got %q", body.DisplayState)
	}
	if len(body.Monthly) != 12 {
		t.Fatalf("Expected 12 months, got %d", len(body.Monthly))
	}

	feb := body.Monthly[7]
	if feb.Date != "2024-02-01" || feb.Rupture != 2 || feb.Tension != 1 {
		t.Errorf("Unexpected February aggregate %+v", feb)
	}
	june := body.Monthly[11]
	if june.Rupture != 2 || june.Tension != 0 {
		t.Errorf("Unexpected June aggregate %+v", june)
	}
	if len(body.RuptureSeries) != 12 || body.RuptureSeries[0].Marked {
		t.Errorf("Expected 12 points with no mark on an empty month, got %+v", body.RuptureSeries)
	}

	if len(body.Chart.Rows) != 2 {
		t.Fatalf("Expected 2 chart rows, got %d", len(body.Chart.Rows))
	}
	for _, row := range body.Chart.Rows {
		if len(row.Bars) != 1 {
			t.Errorf("Expected one bar for %s, got %d", row.Product, len(row.Bars))
		}
	}
}

func TestSummaryFilteredState(t *testing.T) {
	h, repo := summaryHandler()

	rr := serve(h, http.MethodGet, "/api/incidents/summary?product=doli")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"display_state":"filtered"`) {
		t.Errorf("Expected filtered display state, got %s", rr.Body.String())
	}

	repo.incidents = nil
	rr = serve(h, http.MethodGet, "/api/incidents/summary?product=zzz")
	if !strings.Contains(rr.Body.String(), `"display_state":"no_results"`) {
		t.Errorf("Expected no_results display state, got %s", rr.Body.String())
	}
}

func TestSummarySharesIncidentsCache(t *testing.T) {
	h, repo := summaryHandler()

	serve(h, http.MethodGet, "/api/incidents?monthsToShow=12")
	serve(h, http.MethodGet, "/api/incidents/summary?monthsToShow=12")
	serve(h, http.MethodGet, "/api/incidents/timeline.svg?monthsToShow=12")

	if got := repo.callCount("Incidents"); got != 1 {
		t.Errorf("Expected one repository call across endpoints, got %d", got)
	}
}

func TestSummaryValidation(t *testing.T) {
	h, _ := summaryHandler()

	for _, target := range []string{
		"/api/incidents/summary?width=10",
		"/api/incidents/summary?width=wide",
		"/api/incidents/timeline.svg?monthsToShow=0",
	} {
		rr := serve(h, http.MethodGet, target)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", target, rr.Code)
		}
	}
}

func TestSummaryDatabaseError(t *testing.T) {
	h := New(Options{Repository: &fakeRepository{err: errors.New("connection refused")}})

	rr := serve(h, http.MethodGet, "/api/incidents/summary")
	if rr.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", rr.Code)
	}
	if body := decodeError(t, rr); body.Error != "Internal server error" {
		t.Errorf("Expected a generic error, got %q", body.Error)
	}
}

func TestTimelineSVG(t *testing.T) {
	h, _ := summaryHandler()

	rr := serve(h, http.MethodGet, "/api/incidents/timeline.svg?width=400")
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "image/svg+xml") {
		t.Errorf("Expected an SVG content type, got %q", ct)
	}
	svg := rr.Body.String()
	if !strings.HasPrefix(svg, "<svg") || !strings.Contains(svg, "</svg>") {
		t.Errorf("Expected a standalone SVG document, got %q", svg)
	}
	if !strings.Contains(svg, "doliprane") {
		t.Error("Expected the product label in the SVG")
	}
}
