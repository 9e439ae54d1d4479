package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts every API route on r. The product name and the
// availability product id share one path parameter so chi sees a single
// wildcard under /api/product.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/incidents", h.Incidents)
		r.Get("/incidents/ATCClasses", h.ATCClasses)
		r.Get("/incidents/summary", h.Summary)
		r.Get("/incidents/timeline.svg", h.TimelineSVG)
		r.Get("/incidents/product/{productId}", h.IncidentsByProduct)

		r.Get("/product/{product}", h.ProductByName)
		r.Get("/product/{product}/availability", h.Availability)

		r.Get("/search", h.Search)
		r.Get("/substitutions/{cis_code}", h.Substitutions)
		r.Get("/ema-incidents", h.EMAIncidents)
		r.Get("/sales-by-cis", h.SalesByCIS)
		r.Get("/config", h.Config)
		r.Get("/catalog", h.Catalog)
	})
}
