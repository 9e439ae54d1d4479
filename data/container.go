// Package data provides thread-safe storage for the reference catalog served
// by the dispomed API. The catalog is swapped atomically so readers never wait
// on a refresh.
package data

import (
	"sync/atomic"
	"time"

	"github.com/dispomed/dispomed-api/entities"
	"github.com/dispomed/dispomed-api/interfaces"
	"github.com/dispomed/dispomed-api/logging"
)

// Compile-time check to ensure CatalogContainer implements CatalogStore
var _ interfaces.CatalogStore = (*CatalogContainer)(nil)

// CatalogContainer holds the catalog with atomic values for zero-downtime updates
type CatalogContainer struct {
	catalog         atomic.Value // entities.Catalog
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewCatalogContainer creates a container holding an empty catalog
func NewCatalogContainer() *CatalogContainer {
	cc := &CatalogContainer{}
	cc.catalog.Store(emptyCatalog())
	cc.lastUpdated.Store(time.Time{})
	cc.serverStartTime.Store(time.Time{})
	return cc
}

func emptyCatalog() entities.Catalog {
	return entities.Catalog{
		ATCClasses: []entities.ATCClass{},
		Molecules:  []entities.Molecule{},
	}
}

// GetCatalog returns the current catalog
func (cc *CatalogContainer) GetCatalog() entities.Catalog {
	if v := cc.catalog.Load(); v != nil {
		if catalog, ok := v.(entities.Catalog); ok {
			return catalog
		}
	}

	logging.Warn("Catalog is empty or invalid")
	return emptyCatalog()
}

// GetLastUpdated returns the timestamp of the last catalog update
func (cc *CatalogContainer) GetLastUpdated() time.Time {
	if v := cc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating returns true if a catalog refresh is in progress
func (cc *CatalogContainer) IsUpdating() bool {
	return cc.updating.Load()
}

// SetServerStartTime sets the server start time
func (cc *CatalogContainer) SetServerStartTime(startTime time.Time) {
	cc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (cc *CatalogContainer) GetServerStartTime() time.Time {
	if v := cc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// UpdateCatalog atomically replaces the catalog. Nil slices are stored as
// empty ones so the JSON shape stays stable.
func (cc *CatalogContainer) UpdateCatalog(catalog entities.Catalog) {
	if catalog.ATCClasses == nil {
		catalog.ATCClasses = []entities.ATCClass{}
	}
	if catalog.Molecules == nil {
		catalog.Molecules = []entities.Molecule{}
	}
	cc.catalog.Store(catalog)
	cc.lastUpdated.Store(time.Now())
}

// BeginUpdate marks the start of a refresh.
// Returns true if the refresh can proceed, false if another one is running
func (cc *CatalogContainer) BeginUpdate() bool {
	return cc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a refresh
func (cc *CatalogContainer) EndUpdate() {
	cc.updating.Store(false)
}
