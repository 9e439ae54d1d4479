// Package client is a Go client for the dispomed HTTP API. Session keeps the
// chart state of one user the way the web page does: filter fetches race and
// only the most recent one is applied.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dispomed/dispomed-api/entities"
	"github.com/dispomed/dispomed-api/logging"
	"github.com/dispomed/dispomed-api/validation"
)

const defaultTimeout = 15 * time.Second

// APIError is a non-2xx answer from the API
type APIError struct {
	StatusCode int
	Message    string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error %d: %s: %s", e.StatusCode, e.Message, e.Detail)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client calls the dispomed API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the API served at baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var payload struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			apiErr.Message = payload.Error
			apiErr.Detail = payload.Message
		}
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// FilterQuery encodes f with the parameter names of /api/incidents
func FilterQuery(f entities.FilterState) url.Values {
	q := url.Values{}
	months := f.MonthsToShow
	if months <= 0 {
		months = validation.DefaultMonthsToShow
	}
	q.Set("monthsToShow", strconv.Itoa(months))
	if f.SearchTerm != "" {
		q.Set("product", f.SearchTerm)
	}
	if f.ATCClass != "" {
		q.Set("atcClass", f.ATCClass)
	}
	if f.MoleculeID != "" {
		q.Set("molecule", f.MoleculeID)
	}
	if f.VaccinesOnly {
		q.Set("vaccinesOnly", "true")
	}
	return q
}

// Incidents fetches the incidents matching f
func (c *Client) Incidents(ctx context.Context, f entities.FilterState) ([]entities.Incident, error) {
	var incidents []entities.Incident
	if err := c.getJSON(ctx, "/api/incidents", FilterQuery(f), &incidents); err != nil {
		return nil, err
	}
	return incidents, nil
}

// IncidentsByProduct fetches every incident of one product
func (c *Client) IncidentsByProduct(ctx context.Context, productID int) ([]entities.Incident, error) {
	var incidents []entities.Incident
	path := "/api/incidents/product/" + strconv.Itoa(productID)
	if err := c.getJSON(ctx, path, nil, &incidents); err != nil {
		return nil, err
	}
	return incidents, nil
}

// Product looks a product up by name
func (c *Client) Product(ctx context.Context, name string) (entities.Product, error) {
	var product entities.Product
	err := c.getJSON(ctx, "/api/product/"+url.PathEscape(name), nil, &product)
	return product, err
}

// Search returns product suggestions. Short terms and failures yield an
// empty slice: suggestions are best effort.
func (c *Client) Search(ctx context.Context, term string, monthsToShow int) []entities.SearchResult {
	results := []entities.SearchResult{}
	term, ok, err := validation.SearchTerm(term)
	if err != nil || !ok {
		return results
	}

	q := url.Values{"searchTerm": {term}}
	if monthsToShow > 0 {
		q.Set("monthsToShow", strconv.Itoa(monthsToShow))
	}
	if err := c.getJSON(ctx, "/api/search", q, &results); err != nil {
		logging.Debug("Search suggestions unavailable", "term", term, "error", err)
		return []entities.SearchResult{}
	}
	return results
}

// Substitutions returns the equivalences of a CIS code, or an empty slice
// when they cannot be fetched
func (c *Client) Substitutions(ctx context.Context, cisCode string) []entities.Substitution {
	subs := []entities.Substitution{}
	if err := c.getJSON(ctx, "/api/substitutions/"+url.PathEscape(cisCode), nil, &subs); err != nil {
		logging.Debug("Substitutions unavailable", "cis", cisCode, "error", err)
		return []entities.Substitution{}
	}
	return subs
}

// EMAIncidents fetches the European shortages reported for cisCodes
func (c *Client) EMAIncidents(ctx context.Context, cisCodes []string) ([]entities.EMAIncident, error) {
	var incidents []entities.EMAIncident
	q := url.Values{"cis_codes": {strings.Join(cisCodes, ",")}}
	if err := c.getJSON(ctx, "/api/ema-incidents", q, &incidents); err != nil {
		return nil, err
	}
	return incidents, nil
}

// SalesByCIS fetches yearly box sales for cisCodes
func (c *Client) SalesByCIS(ctx context.Context, cisCodes []string) ([]entities.Sale, error) {
	var sales []entities.Sale
	q := url.Values{"cis_codes": {strings.Join(cisCodes, ",")}}
	if err := c.getJSON(ctx, "/api/sales-by-cis", q, &sales); err != nil {
		return nil, err
	}
	return sales, nil
}

// Config fetches the public client configuration
func (c *Client) Config(ctx context.Context) (entities.AppConfig, error) {
	var cfg entities.AppConfig
	err := c.getJSON(ctx, "/api/config", nil, &cfg)
	return cfg, err
}

// Catalog fetches the ATC classes, molecules and report date
func (c *Client) Catalog(ctx context.Context) (entities.Catalog, error) {
	var catalog entities.Catalog
	err := c.getJSON(ctx, "/api/catalog", nil, &catalog)
	return catalog, err
}
