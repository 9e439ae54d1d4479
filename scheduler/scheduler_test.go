package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dispomed/dispomed-api/data"
	"github.com/dispomed/dispomed-api/entities"
	"github.com/dispomed/dispomed-api/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	rows       []entities.ATCClassRow
	reportDate entities.Date
	err        error
	months     atomic.Int32
	calls      atomic.Int32
	block      chan struct{}
}

func (f *fakeSource) ATCClasses(ctx context.Context, monthsToShow int) ([]entities.ATCClassRow, error) {
	f.calls.Add(1)
	f.months.Store(int32(monthsToShow))
	if f.block != nil {
		<-f.block
	}
	return f.rows, f.err
}

func (f *fakeSource) MaxReportDate(ctx context.Context) (entities.Date, error) {
	return f.reportDate, nil
}

func newSource() *fakeSource {
	return &fakeSource{
		rows: []entities.ATCClassRow{
			{ATCCode: "N", ATCDescription: "Système nerveux", MoleculeID: 12, MoleculeName: "paracétamol"},
			{ATCCode: "J", ATCDescription: "Anti-infectieux", MoleculeID: 4, MoleculeName: "amoxicilline"},
		},
		reportDate: entities.MustParseDate("2024-06-10"),
	}
}

func TestRefresh(t *testing.T) {
	container := data.NewCatalogContainer()
	source := newSource()
	s := NewScheduler(container, source)
	before := testutil.ToFloat64(metrics.CatalogRefreshTotal.WithLabelValues("success"))

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	catalog := container.GetCatalog()
	if catalog.ReportDate.String() != "2024-06-10" {
		t.Errorf("Expected report date 2024-06-10, got %s", catalog.ReportDate)
	}
	if len(catalog.ATCClasses) != 2 || catalog.ATCClasses[0].Code != "J" {
		t.Errorf("Expected sorted ATC classes, got %+v", catalog.ATCClasses)
	}
	if len(catalog.Molecules) != 2 || catalog.Molecules[0].Name != "amoxicilline" {
		t.Errorf("Expected molecules sorted by name, got %+v", catalog.Molecules)
	}
	if source.months.Load() != CatalogMonths {
		t.Errorf("Expected a %d month window, got %d", CatalogMonths, source.months.Load())
	}
	if container.IsUpdating() {
		t.Error("Expected the update flag to be released")
	}
	if container.GetLastUpdated().IsZero() {
		t.Error("Expected last updated to be set")
	}
	if got := testutil.ToFloat64(metrics.CatalogRefreshTotal.WithLabelValues("success")); got != before+1 {
		t.Errorf("Expected the success counter to grow by one, got %v -> %v", before, got)
	}
}

func TestRefreshError(t *testing.T) {
	container := data.NewCatalogContainer()
	source := newSource()
	source.err = errors.New("connection refused")
	s := NewScheduler(container, source)
	before := testutil.ToFloat64(metrics.CatalogRefreshTotal.WithLabelValues("error"))

	err := s.Refresh(context.Background())
	if err == nil || !errors.Is(err, source.err) {
		t.Fatalf("Expected a wrapped source error, got %v", err)
	}
	if !container.GetLastUpdated().IsZero() {
		t.Error("Expected the catalog to stay untouched")
	}
	if container.IsUpdating() {
		t.Error("Expected the update flag to be released after an error")
	}
	if got := testutil.ToFloat64(metrics.CatalogRefreshTotal.WithLabelValues("error")); got != before+1 {
		t.Errorf("Expected the error counter to grow by one, got %v -> %v", before, got)
	}
}

func TestRefreshSkipsWhileUpdating(t *testing.T) {
	container := data.NewCatalogContainer()
	source := newSource()
	source.block = make(chan struct{})
	s := NewScheduler(container, source)

	done := make(chan error, 1)
	go func() { done <- s.Refresh(context.Background()) }()

	deadline := time.Now().Add(time.Second)
	for !container.IsUpdating() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := s.Refresh(context.Background()); err != nil {
		t.Errorf("Expected a skipped refresh to succeed, got %v", err)
	}
	close(source.block)
	if err := <-done; err != nil {
		t.Fatalf("First refresh failed: %v", err)
	}
	if source.calls.Load() != 1 {
		t.Errorf("Expected one source call, got %d", source.calls.Load())
	}
}

func TestStartAndStop(t *testing.T) {
	container := data.NewCatalogContainer()
	s := NewScheduler(container, newSource())

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if container.GetCatalog().ReportDate.IsNull() {
		t.Error("Expected the initial load to fill the catalog")
	}
	s.Stop()
	s.Stop()
}

func TestStartSurvivesFailedInitialLoad(t *testing.T) {
	source := newSource()
	source.err = errors.New(`database "dispomed" does not exist`)
	s := NewScheduler(data.NewCatalogContainer(), source)

	if err := s.Start(); err != nil {
		t.Errorf("Expected Start to succeed without a database, got %v", err)
	}
	s.Stop()
}

func TestIsStale(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	if isStale(now.Add(-24*time.Hour), now) {
		t.Error("Expected a day-old catalog to be fresh enough")
	}
	if !isStale(now.Add(-26*time.Hour), now) {
		t.Error("Expected a 26 hour old catalog to be stale")
	}
	if !isStale(time.Time{}, now) {
		t.Error("Expected a never loaded catalog to be stale")
	}
}
