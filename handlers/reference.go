package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/dispomed/dispomed-api/entities"
	"github.com/dispomed/dispomed-api/validation"
	"github.com/go-chi/chi/v5"
)

// Search serves GET /api/search. Terms under two characters answer [].
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	term, ok, err := validation.SearchTerm(q.Get("searchTerm"))
	if err != nil {
		badRequest(w, r, err)
		return
	}
	if !ok {
		RespondWithJSON(w, http.StatusOK, []entities.SearchResult{})
		return
	}
	months, err := validation.MonthsToShow(q.Get("monthsToShow"))
	if err != nil {
		badRequest(w, r, err)
		return
	}

	results, err := h.repo.Search(r.Context(), term, months)
	if err != nil {
		respondWithFailure(w, r, "search", err, "Search failed")
		return
	}
	if results == nil {
		results = []entities.SearchResult{}
	}
	RespondWithJSON(w, http.StatusOK, results)
}

// Substitutions serves GET /api/substitutions/{cis_code}
func (h *Handler) Substitutions(w http.ResponseWriter, r *http.Request) {
	code, err := validation.CIS(chi.URLParam(r, "cis_code"))
	if err != nil {
		badRequest(w, r, err)
		return
	}

	subs, err := h.repo.Substitutions(r.Context(), code)
	if err != nil {
		respondWithFailure(w, r, "substitutions", err, "")
		return
	}
	if subs == nil {
		subs = []entities.Substitution{}
	}
	RespondWithJSON(w, http.StatusOK, subs)
}

// EMAIncidents serves GET /api/ema-incidents?cis_codes=
func (h *Handler) EMAIncidents(w http.ResponseWriter, r *http.Request) {
	codes, ok := cisCodesParam(w, r)
	if !ok {
		return
	}

	incidents, err := h.repo.EMAIncidents(r.Context(), codes)
	if err != nil {
		respondWithFailure(w, r, "ema incidents", err, "")
		return
	}
	if incidents == nil {
		incidents = []entities.EMAIncident{}
	}
	RespondWithJSON(w, http.StatusOK, incidents)
}

// SalesByCIS serves GET /api/sales-by-cis?cis_codes=
func (h *Handler) SalesByCIS(w http.ResponseWriter, r *http.Request) {
	codes, ok := cisCodesParam(w, r)
	if !ok {
		return
	}

	sales, err := h.repo.SalesByCIS(r.Context(), codes)
	if err != nil {
		respondWithFailure(w, r, "sales by cis", err, "")
		return
	}
	if sales == nil {
		sales = []entities.Sale{}
	}
	RespondWithJSON(w, http.StatusOK, sales)
}

func cisCodesParam(w http.ResponseWriter, r *http.Request) ([]string, bool) {
	codes, err := validation.CISCodes(r.URL.Query().Get("cis_codes"))
	if errors.Is(err, validation.ErrMissingCISCodes) {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if err != nil {
		badRequest(w, r, err)
		return nil, false
	}
	return codes, true
}

// Config serves GET /api/config
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, entities.AppConfig{APIBaseURL: h.apiBaseURL})
}

// Catalog serves GET /api/catalog from the in-memory reference catalog
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		RespondWithJSON(w, http.StatusOK, entities.Catalog{
			ATCClasses: []entities.ATCClass{},
			Molecules:  []entities.Molecule{},
		})
		return
	}
	if lastUpdated := h.catalog.GetLastUpdated(); !lastUpdated.IsZero() {
		w.Header().Set("Last-Modified", lastUpdated.UTC().Format(http.TimeFormat))
	}
	RespondWithJSON(w, http.StatusOK, h.catalog.GetCatalog())
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status     string         `json:"status"`
	NextUpdate string         `json:"next_update"`
	Data       map[string]any `json:"data"`
}

// Health serves GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status, details, code := h.health.HealthCheck(r.Context())
	RespondWithJSON(w, code, HealthResponse{
		Status:     status,
		NextUpdate: h.health.CalculateNextUpdate().Format(time.RFC3339),
		Data:       details,
	})
}
