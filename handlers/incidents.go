package handlers

import (
	"context"
	"net/http"

	"github.com/dispomed/dispomed-api/cache"
	"github.com/dispomed/dispomed-api/entities"
	"github.com/dispomed/dispomed-api/validation"
	"github.com/go-chi/chi/v5"
)

// Incidents serves GET /api/incidents. Results are cached per filter set.
func (h *Handler) Incidents(w http.ResponseWriter, r *http.Request) {
	filter, err := validation.Filter(r.URL.Query())
	if err != nil {
		badRequest(w, r, err)
		return
	}

	incidents, err := h.loadIncidents(r.Context(), filter)
	if err != nil {
		respondWithFailure(w, r, "incidents", err, "")
		return
	}

	w.Header().Set("Cache-Control", incidentsCacheControl)
	RespondWithJSON(w, http.StatusOK, incidents)
}

func (h *Handler) loadIncidents(ctx context.Context, filter entities.FilterState) ([]entities.Incident, error) {
	return h.incidents.GetOrLoad(ctx, cache.FilterKey(filter), func(ctx context.Context) ([]entities.Incident, error) {
		incidents, err := h.repo.Incidents(ctx, filter)
		if incidents == nil && err == nil {
			incidents = []entities.Incident{}
		}
		return incidents, err
	})
}

// IncidentsByProduct serves GET /api/incidents/product/{productId}
func (h *Handler) IncidentsByProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := validation.ProductID(chi.URLParam(r, "productId"))
	if err != nil {
		badRequest(w, r, err)
		return
	}

	incidents, err := h.repo.IncidentsByProduct(r.Context(), productID)
	if err != nil {
		respondWithFailure(w, r, "incidents by product", err, "")
		return
	}
	if incidents == nil {
		incidents = []entities.Incident{}
	}
	RespondWithJSON(w, http.StatusOK, incidents)
}

// ATCClasses serves GET /api/incidents/ATCClasses
func (h *Handler) ATCClasses(w http.ResponseWriter, r *http.Request) {
	months, err := validation.MonthsToShow(r.URL.Query().Get("monthsToShow"))
	if err != nil {
		badRequest(w, r, err)
		return
	}

	rows, err := h.repo.ATCClasses(r.Context(), months)
	if err != nil {
		respondWithFailure(w, r, "atc classes", err, "")
		return
	}
	if rows == nil {
		rows = []entities.ATCClassRow{}
	}
	RespondWithJSON(w, http.StatusOK, rows)
}
