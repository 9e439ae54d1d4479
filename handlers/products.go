package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dispomed/dispomed-api/availability"
	"github.com/dispomed/dispomed-api/entities"
	"github.com/dispomed/dispomed-api/validation"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

// AvailabilityResponse is the product-detail summary: yearly day tallies,
// the availability score and sales grouped by CIS.
type AvailabilityResponse struct {
	ProductID int                     `json:"product_id"`
	Report    availability.Report     `json:"report"`
	Sales     []availability.CISSales `json:"sales"`
}

// ProductByName serves GET /api/product/{product}
func (h *Handler) ProductByName(w http.ResponseWriter, r *http.Request) {
	name, err := validation.ProductName(chi.URLParam(r, "product"))
	if err != nil {
		badRequest(w, r, err)
		return
	}

	product, err := h.repo.ProductByName(r.Context(), name)
	if err != nil {
		respondWithFailure(w, r, "product by name", err, "")
		return
	}
	if product.Incidents == nil {
		product.Incidents = []entities.Incident{}
	}
	RespondWithJSON(w, http.StatusOK, product)
}

// Availability serves GET /api/product/{product}/availability, where the
// path segment is the product id.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	productID, err := validation.ProductID(chi.URLParam(r, "product"))
	if err != nil {
		badRequest(w, r, err)
		return
	}

	ctx := r.Context()
	incidents, err := h.repo.IncidentsByProduct(ctx, productID)
	if err != nil {
		respondWithFailure(w, r, "availability", err, "")
		return
	}

	var (
		reportDate entities.Date
		sales      []entities.Sale
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		reportDate, err = h.reportDate(gctx)
		return err
	})
	if codes := productCISCodes(incidents); len(codes) > 0 {
		g.Go(func() error {
			var err error
			sales, err = h.repo.SalesByCIS(gctx, codes)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		respondWithFailure(w, r, "availability", err, "")
		return
	}

	RespondWithJSON(w, http.StatusOK, AvailabilityResponse{
		ProductID: productID,
		Report:    availability.Compute(incidents, reportDate),
		Sales:     availability.GroupSales(sales),
	})
}

// reportDate prefers the catalog's report date and falls back to the database
func (h *Handler) reportDate(ctx context.Context) (entities.Date, error) {
	if h.catalog != nil {
		if d := h.catalog.GetCatalog().ReportDate; !d.IsNull() {
			return d, nil
		}
	}
	d, err := h.repo.MaxReportDate(ctx)
	if err != nil {
		return entities.Date{}, fmt.Errorf("report date: %w", err)
	}
	return d, nil
}

// productCISCodes returns the distinct CIS codes of incidents in first-seen order
func productCISCodes(incidents []entities.Incident) []string {
	seen := make(map[string]struct{})
	var codes []string
	for _, inc := range incidents {
		for _, code := range inc.CISCodes {
			if _, ok := seen[code]; ok || code == "" {
				continue
			}
			seen[code] = struct{}{}
			codes = append(codes, code)
		}
	}
	return codes
}
