package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dispomed/dispomed-api/aggregation"
	"github.com/dispomed/dispomed-api/entities"
	"github.com/dispomed/dispomed-api/timeline"
	"github.com/dispomed/dispomed-api/validation"
)

const (
	defaultViewportWidth = 1024
	minViewportWidth     = 280
	maxViewportWidth     = 3840
)

// SummaryResponse is the computed data behind the summary and table charts
type SummaryResponse struct {
	ReportDate    entities.Date               `json:"report_date"`
	StartDate     entities.Date               `json:"start_date"`
	EndDate       entities.Date               `json:"end_date"`
	DisplayState  aggregation.DisplayState    `json:"display_state"`
	Monthly       []entities.MonthlyAggregate `json:"monthly"`
	RuptureSeries []timeline.SeriesPoint      `json:"rupture_series"`
	TensionSeries []timeline.SeriesPoint      `json:"tension_series"`
	Chart         timeline.Chart              `json:"chart"`
}

func viewportWidth(raw string) (float64, error) {
	if raw == "" {
		return defaultViewportWidth, nil
	}
	width, err := strconv.ParseFloat(raw, 64)
	if err != nil || width < minViewportWidth || width > maxViewportWidth {
		return 0, fmt.Errorf("invalid width %q: must be between %d and %d", raw, minViewportWidth, maxViewportWidth)
	}
	return width, nil
}

// buildSummary fetches the filtered incidents and lays out both charts
func (h *Handler) buildSummary(r *http.Request) (SummaryResponse, int, error) {
	q := r.URL.Query()
	filter, err := validation.Filter(q)
	if err != nil {
		return SummaryResponse{}, http.StatusBadRequest, err
	}
	width, err := viewportWidth(q.Get("width"))
	if err != nil {
		return SummaryResponse{}, http.StatusBadRequest, err
	}

	incidents, err := h.loadIncidents(r.Context(), filter)
	if err != nil {
		return SummaryResponse{}, http.StatusInternalServerError, err
	}

	store := aggregation.NewStore()
	if h.catalog != nil {
		store.SetReportDate(h.catalog.GetCatalog().ReportDate)
	}
	store.SetFilters(filter)
	store.Apply(incidents)

	monthly := store.MonthlyAggregate(store.Incidents())
	rupture, tension := timeline.SummarySeries(monthly, store.ReportDate(), store.Filters().MonthsToShow)
	chart := timeline.BuildChart(timeline.Input{
		Products:         store.Products(),
		AccentedProducts: store.AccentedProducts(),
		Incidents:        store.Incidents(),
		StartDate:        store.StartDate(),
		EndDate:          store.EndDate(),
		ReportDate:       store.ReportDate(),
	}, timeline.LayoutFor(width))

	return SummaryResponse{
		ReportDate:    store.ReportDate(),
		StartDate:     store.StartDate(),
		EndDate:       store.EndDate(),
		DisplayState:  store.DisplayState(),
		Monthly:       monthly,
		RuptureSeries: rupture,
		TensionSeries: tension,
		Chart:         chart,
	}, http.StatusOK, nil
}

// Summary serves GET /api/incidents/summary
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, code, err := h.buildSummary(r)
	if code == http.StatusBadRequest {
		badRequest(w, r, err)
		return
	}
	if err != nil {
		respondWithFailure(w, r, "summary", err, "")
		return
	}

	w.Header().Set("Cache-Control", incidentsCacheControl)
	RespondWithJSON(w, http.StatusOK, summary)
}

// TimelineSVG serves GET /api/incidents/timeline.svg
func (h *Handler) TimelineSVG(w http.ResponseWriter, r *http.Request) {
	summary, code, err := h.buildSummary(r)
	if code == http.StatusBadRequest {
		badRequest(w, r, err)
		return
	}
	if err != nil {
		respondWithFailure(w, r, "timeline svg", err, "")
		return
	}

	svg, err := timeline.RenderSVG(summary.Chart)
	if err != nil {
		respondWithFailure(w, r, "timeline svg", fmt.Errorf("render timeline: %w", err), "")
		return
	}

	w.Header().Set("Content-Type", "image/svg+xml; charset=utf-8")
	w.Header().Set("Cache-Control", incidentsCacheControl)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(svg)
}
