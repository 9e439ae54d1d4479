// Package handlers serves the dispomed HTTP API: incident lists, product
// pages, search, reference data and the computed chart endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dispomed/dispomed-api/cache"
	"github.com/dispomed/dispomed-api/database"
	"github.com/dispomed/dispomed-api/entities"
	"github.com/dispomed/dispomed-api/interfaces"
	"github.com/dispomed/dispomed-api/logging"
	"github.com/dispomed/dispomed-api/repository"
)

const (
	incidentsCacheControl = "public, max-age=300"
	defaultAPIBaseURL     = "http://localhost:3000"
)

// ErrorResponse is the body of every error answer
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Handler holds the dependencies of every route
type Handler struct {
	repo       interfaces.IncidentRepository
	catalog    interfaces.CatalogStore
	health     interfaces.HealthChecker
	incidents  *cache.QueryCache[[]entities.Incident]
	apiBaseURL string
}

// Options wires a Handler. Cache and APIBaseURL are optional.
type Options struct {
	Repository interfaces.IncidentRepository
	Catalog    interfaces.CatalogStore
	Health     interfaces.HealthChecker
	Cache      *cache.QueryCache[[]entities.Incident]
	APIBaseURL string
}

// New creates a Handler
func New(opts Options) *Handler {
	h := &Handler{
		repo:       opts.Repository,
		catalog:    opts.Catalog,
		health:     opts.Health,
		incidents:  opts.Cache,
		apiBaseURL: opts.APIBaseURL,
	}
	if h.incidents == nil {
		h.incidents = cache.New[[]entities.Incident](cache.DefaultTTL)
	}
	if h.apiBaseURL == "" {
		h.apiBaseURL = defaultAPIBaseURL
	}
	return h
}

// RespondWithJSON writes payload as JSON with the given status
func RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if w.Header().Get("Last-Modified") == "" {
		w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

// RespondWithError writes an ErrorResponse
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, ErrorResponse{Error: message})
}

// classifyError maps an internal error to the status and body the client sees
func classifyError(err error) (int, ErrorResponse) {
	switch {
	case database.IsDatabaseMissing(err):
		return http.StatusInternalServerError, ErrorResponse{
			Error:   "Database Setup Required",
			Message: database.SetupInstructions,
		}
	case errors.Is(err, repository.ErrProductNotFound):
		return http.StatusNotFound, ErrorResponse{Error: "Product not found"}
	default:
		return http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"}
	}
}

// respondWithFailure logs err and answers with its classified response.
// fallback replaces the generic 500 message when set.
func respondWithFailure(w http.ResponseWriter, r *http.Request, op string, err error, fallback string) {
	code, body := classifyError(err)
	if code >= http.StatusInternalServerError {
		logging.Error("Request failed", "op", op, "path", r.URL.Path, "error", err)
		if fallback != "" && body.Message == "" {
			body.Error = fallback
		}
	}
	RespondWithJSON(w, code, body)
}

func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	logging.Warn("Unusual user input", "path", r.URL.Path, "query", r.URL.RawQuery, "error", err)
	RespondWithError(w, http.StatusBadRequest, err.Error())
}
