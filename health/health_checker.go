// Package health reports the state of the dispomed API: database reachability
// and the freshness of the reference catalog.
package health

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/dispomed/dispomed-api/database"
	"github.com/dispomed/dispomed-api/interfaces"
	"github.com/dispomed/dispomed-api/logging"
)

const pingTimeout = 2 * time.Second

// Pinger is the part of the database the checker needs
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker implements the interfaces.HealthChecker interface
type Checker struct {
	catalog interfaces.CatalogStore
	db      Pinger
	now     func() time.Time
}

var _ interfaces.HealthChecker = (*Checker)(nil)

// NewChecker creates a health checker. db may be nil when the server runs
// without a database.
func NewChecker(catalog interfaces.CatalogStore, db Pinger) *Checker {
	return &Checker{catalog: catalog, db: db, now: time.Now}
}

// HealthCheck returns the overall status, its details and the HTTP status
// the /health endpoint answers with
func (c *Checker) HealthCheck(ctx context.Context) (status string, data map[string]any, httpStatus int) {
	catalog := c.catalog.GetCatalog()
	lastUpdate := c.catalog.GetLastUpdated()
	isUpdating := c.catalog.IsUpdating()
	dbState := c.databaseState(ctx)

	dataAge := c.now().Sub(lastUpdate)

	switch {
	case dbState != "ok":
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case lastUpdate.IsZero():
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 48*time.Hour:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 24*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case isUpdating && dataAge > 6*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"database":    dbState,
		"report_date": catalog.ReportDate.String(),
		"atc_classes": len(catalog.ATCClasses),
		"molecules":   len(catalog.Molecules),
		"is_updating": isUpdating,
	}
	if !lastUpdate.IsZero() {
		data["last_update"] = lastUpdate.Format(time.RFC3339)
		data["catalog_age_hours"] = math.Round(dataAge.Hours()*10) / 10
	}

	return status, data, httpStatus
}

func (c *Checker) databaseState(ctx context.Context) string {
	if c.db == nil {
		return "not_configured"
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := c.db.Ping(ctx); err != nil {
		if database.IsDatabaseMissing(err) {
			return "missing"
		}
		logging.Warn("Database ping failed", "error", err)
		return "unreachable"
	}
	return "ok"
}

// CalculateNextUpdate returns the next scheduled catalog refresh
func (c *Checker) CalculateNextUpdate() time.Time {
	return NextUpdateAfter(c.now())
}

// NextUpdateAfter returns the first 06:00 or 18:00 strictly after now
func NextUpdateAfter(now time.Time) time.Time {
	sixAM := time.Date(now.Year(), now.Month(), now.Day(), 6, 0, 0, 0, now.Location())
	sixPM := time.Date(now.Year(), now.Month(), now.Day(), 18, 0, 0, 0, now.Location())

	if now.Before(sixAM) {
		return sixAM
	}
	if now.Before(sixPM) {
		return sixPM
	}
	return sixAM.AddDate(0, 0, 1)
}
