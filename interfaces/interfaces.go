// Package interfaces defines the contracts between the layers of the dispomed
// API so each one can be swapped for a fake in tests.
package interfaces

import (
	"context"
	"database/sql"
	"time"

	"github.com/dispomed/dispomed-api/entities"
)

// Querier runs named SQL queries against the database.
type Querier interface {
	Query(ctx context.Context, name, query string, args ...any) (*sql.Rows, error)
	Ping(ctx context.Context) error
}

// IncidentRepository reads incidents and their reference data.
type IncidentRepository interface {
	Incidents(ctx context.Context, filter entities.FilterState) ([]entities.Incident, error)
	IncidentsByProduct(ctx context.Context, productID int) ([]entities.Incident, error)
	ProductByName(ctx context.Context, name string) (entities.Product, error)
	Search(ctx context.Context, term string, monthsToShow int) ([]entities.SearchResult, error)
	Substitutions(ctx context.Context, cisCode string) ([]entities.Substitution, error)
	EMAIncidents(ctx context.Context, cisCodes []string) ([]entities.EMAIncident, error)
	SalesByCIS(ctx context.Context, cisCodes []string) ([]entities.Sale, error)
	ATCClasses(ctx context.Context, monthsToShow int) ([]entities.ATCClassRow, error)
	MaxReportDate(ctx context.Context) (entities.Date, error)
}

// CatalogStore holds the reference catalog with atomic replacement so
// readers never see a half-built catalog.
type CatalogStore interface {
	GetCatalog() entities.Catalog
	GetLastUpdated() time.Time
	IsUpdating() bool
	GetServerStartTime() time.Time

	UpdateCatalog(catalog entities.Catalog)
	BeginUpdate() bool
	EndUpdate()
}

// Scheduler manages the periodic catalog refresh.
type Scheduler interface {
	Start() error
	Stop()
}

// HealthChecker reports system health for the /health endpoint.
type HealthChecker interface {
	// HealthCheck returns the status, its details and the HTTP code to answer with.
	HealthCheck(ctx context.Context) (status string, details map[string]any, httpStatus int)

	// CalculateNextUpdate returns the next scheduled catalog refresh.
	CalculateNextUpdate() time.Time
}
