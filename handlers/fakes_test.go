package handlers

import (
	"context"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/dispomed/dispomed-api/entities"
	"github.com/dispomed/dispomed-api/interfaces"
	"github.com/dispomed/dispomed-api/repository"
	"github.com/go-chi/chi/v5"
)

type fakeRepository struct {
	mu sync.Mutex

	incidents     []entities.Incident
	byProduct     map[int][]entities.Incident
	products      map[string]entities.Product
	searchResults []entities.SearchResult
	substitutions []entities.Substitution
	emaIncidents  []entities.EMAIncident
	sales         []entities.Sale
	atcRows       []entities.ATCClassRow
	reportDate    entities.Date
	err           error

	calls      map[string]int
	lastFilter entities.FilterState
	lastName   string
	lastTerm   string
	lastMonths int
	lastCodes  []string
}

var _ interfaces.IncidentRepository = (*fakeRepository)(nil)

func (f *fakeRepository) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeRepository) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeRepository) Incidents(ctx context.Context, filter entities.FilterState) ([]entities.Incident, error) {
	f.record("Incidents")
	f.mu.Lock()
	f.lastFilter = filter
	f.mu.Unlock()
	return f.incidents, f.err
}

func (f *fakeRepository) IncidentsByProduct(ctx context.Context, productID int) ([]entities.Incident, error) {
	f.record("IncidentsByProduct")
	return f.byProduct[productID], f.err
}

func (f *fakeRepository) ProductByName(ctx context.Context, name string) (entities.Product, error) {
	f.record("ProductByName")
	f.lastName = name
	if f.err != nil {
		return entities.Product{}, f.err
	}
	product, ok := f.products[name]
	if !ok {
		return entities.Product{}, repository.ErrProductNotFound
	}
	return product, nil
}

func (f *fakeRepository) Search(ctx context.Context, term string, monthsToShow int) ([]entities.SearchResult, error) {
	f.record("Search")
	f.lastTerm = term
	f.lastMonths = monthsToShow
	return f.searchResults, f.err
}

func (f *fakeRepository) Substitutions(ctx context.Context, cisCode string) ([]entities.Substitution, error) {
	f.record("Substitutions")
	return f.substitutions, f.err
}

func (f *fakeRepository) EMAIncidents(ctx context.Context, cisCodes []string) ([]entities.EMAIncident, error) {
	f.record("EMAIncidents")
	f.lastCodes = cisCodes
	return f.emaIncidents, f.err
}

func (f *fakeRepository) SalesByCIS(ctx context.Context, cisCodes []string) ([]entities.Sale, error) {
	f.record("SalesByCIS")
	f.mu.Lock()
	f.lastCodes = cisCodes
	f.mu.Unlock()
	return f.sales, f.err
}

func (f *fakeRepository) ATCClasses(ctx context.Context, monthsToShow int) ([]entities.ATCClassRow, error) {
	f.record("ATCClasses")
	f.lastMonths = monthsToShow
	return f.atcRows, f.err
}

func (f *fakeRepository) MaxReportDate(ctx context.Context) (entities.Date, error) {
	f.record("MaxReportDate")
	return f.reportDate, f.err
}

type fakeCatalog struct {
	catalog     entities.Catalog
	lastUpdated time.Time
}

var _ interfaces.CatalogStore = (*fakeCatalog)(nil)

func (c *fakeCatalog) GetCatalog() entities.Catalog { return c.catalog }
func (c *fakeCatalog) GetLastUpdated() time.Time { return c.lastUpdated }
func (c *fakeCatalog) IsUpdating() bool { return false }
func (c *fakeCatalog) GetServerStartTime() time.Time { return time.Time{} }
func (c *fakeCatalog) UpdateCatalog(catalog entities.Catalog) { c.catalog = catalog }
func (c *fakeCatalog) BeginUpdate() bool { return true }
func (c *fakeCatalog) EndUpdate() {}

type fakeHealth struct {
	status string
	code   int
}

func (h *fakeHealth) HealthCheck(ctx context.Context) (string, map[string]any, int) {
	return h.status, map[string]any{"catalog_age_hours": 1.5}, h.code
}

func (h *fakeHealth) CalculateNextUpdate() time.Time {
	return time.Date(2024, 6, 10, 18, 0, 0, 0, time.UTC)
}

// serve runs one request through the registered routes
func serve(h *Handler, method, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest(method, target, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func incident(id, productID int, product string, status entities.Status, start, calculatedEnd string, cis ...string) entities.Incident {
	return entities.Incident{
		ID:                id,
		ProductID:         productID,
		Product:           product,
		AccentedProduct:   product,
		Status:            status,
		StartDate:         entities.MustParseDate(start),
		CalculatedEndDate: entities.MustParseDate(calculatedEnd),
		CISCodes:          cis,
		Molecule:          "paracétamol",
		MoleculeID:        "12",
		ATCCode:           "N02BE01",
		ClasseATC:         "N - Système nerveux",
	}
}
