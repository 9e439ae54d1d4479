package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dispomed/dispomed-api/aggregation"
	"github.com/dispomed/dispomed-api/entities"
	"golang.org/x/sync/errgroup"
)

// Session holds one user's chart state. Every filter change issues a fetch
// tagged with a sequence token; a response is applied only when no newer
// fetch has been issued since, so the last issued request wins regardless
// of the order responses arrive in.
type Session struct {
	client *Client

	mu    sync.Mutex
	store *aggregation.Store

	seq atomic.Uint64
}

// NewSession creates a session with its own aggregation store
func NewSession(c *Client, opts ...aggregation.Option) *Session {
	return &Session{client: c, store: aggregation.NewStore(opts...)}
}

// Latest is the token of the most recently issued fetch
func (s *Session) Latest() uint64 {
	return s.seq.Load()
}

func (s *Session) issue() uint64 {
	return s.seq.Add(1)
}

// Load fetches the catalog and the default incident list together and
// installs both.
func (s *Session) Load(ctx context.Context) (bool, error) {
	token := s.issue()
	filters := s.Filters()

	var (
		catalog   entities.Catalog
		incidents []entities.Incident
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		catalog, err = s.client.Catalog(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		incidents, err = s.client.Incidents(gctx, filters)
		return err
	})
	err := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.seq.Load() {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("initial load: %w", err)
	}
	s.store.SetReportDate(entities.MaxDate(s.store.ReportDate(), catalog.ReportDate))
	s.store.Apply(incidents)
	return true, nil
}

// SetFilters fetches the incidents for f and applies them if this is still
// the latest request when the response arrives. A superseded response is
// dropped and reported as not applied, errors included.
func (s *Session) SetFilters(ctx context.Context, f entities.FilterState) (bool, error) {
	token := s.issue()
	incidents, err := s.client.Incidents(ctx, f)

	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.seq.Load() {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fetch incidents: %w", err)
	}
	s.store.SetFilters(f)
	s.store.Apply(incidents)
	return true, nil
}

// SetMonthsToShow refetches with the current filters over a new period
func (s *Session) SetMonthsToShow(ctx context.Context, months int) (bool, error) {
	f := s.Filters()
	f.MonthsToShow = months
	return s.SetFilters(ctx, f)
}

// SetAllTime refetches over every month since the start of the data set,
// up to the known report date.
func (s *Session) SetAllTime(ctx context.Context) (bool, error) {
	s.mu.Lock()
	reportDate := s.store.ReportDate()
	s.mu.Unlock()

	if reportDate.IsNull() {
		return false, errors.New("report date unknown: load the session first")
	}
	return s.SetMonthsToShow(ctx, aggregation.AllTimeMonths(reportDate))
}

// Filters returns the applied filters
func (s *Session) Filters() entities.FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Filters()
}

// View runs fn with exclusive access to the store
func (s *Session) View(fn func(store *aggregation.Store)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.store)
}

// MonthlyAggregate is the memoized monthly series of the applied incidents
func (s *Session) MonthlyAggregate() []entities.MonthlyAggregate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.MonthlyAggregate(s.store.Incidents())
}
