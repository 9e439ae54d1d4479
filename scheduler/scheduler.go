// Package scheduler refreshes the reference catalog of the dispomed API twice
// a day and watches that refreshes keep happening.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/dispomed/dispomed-api/data"
	"github.com/dispomed/dispomed-api/entities"
	"github.com/dispomed/dispomed-api/interfaces"
	"github.com/dispomed/dispomed-api/logging"
	"github.com/dispomed/dispomed-api/metrics"
	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"
)

const (
	// CatalogMonths is the period the catalog's ATC classes and molecules are drawn from
	CatalogMonths = 12

	refreshTimeout  = 2 * time.Minute
	staleAfter      = 25 * time.Hour
	monitorInterval = time.Hour
)

// CatalogSource is the part of the repository a refresh reads
type CatalogSource interface {
	ATCClasses(ctx context.Context, monthsToShow int) ([]entities.ATCClassRow, error)
	MaxReportDate(ctx context.Context) (entities.Date, error)
}

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler runs the catalog refresh at 06:00 and 18:00
type Scheduler struct {
	catalog   interfaces.CatalogStore
	source    CatalogSource
	scheduler *gocron.Scheduler
	stop      chan struct{}
}

// NewScheduler creates a scheduler refreshing catalog from source
func NewScheduler(catalog interfaces.CatalogStore, source CatalogSource) *Scheduler {
	return &Scheduler{
		catalog:   catalog,
		source:    source,
		scheduler: gocron.NewScheduler(time.Local),
		stop:      make(chan struct{}),
	}
}

// Start loads the catalog once, then schedules the twice-daily refresh.
// A failed first load is logged and left to the next run so the API can
// still answer with setup instructions when the database is missing.
func (s *Scheduler) Start() error {
	if err := s.Refresh(context.Background()); err != nil {
		logging.Error("Failed to perform initial catalog load", "error", err)
	}

	_, err := s.scheduler.Every(1).Days().At("06:00;18:00").Do(func() {
		if err := s.Refresh(context.Background()); err != nil {
			logging.Error("Failed to refresh catalog", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule catalog refresh", "error", err)
		return fmt.Errorf("failed to schedule catalog refresh: %w", err)
	}

	s.scheduler.StartAsync()
	go s.monitor()

	return nil
}

// Stop stops the scheduler and the staleness monitor
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
}

// Refresh rebuilds the catalog from the database and swaps it in. It is a
// no-op while another refresh runs.
func (s *Scheduler) Refresh(ctx context.Context) error {
	if !s.catalog.BeginUpdate() {
		logging.Info("Catalog refresh already in progress, skipping")
		metrics.CatalogRefreshTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	defer s.catalog.EndUpdate()

	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	start := time.Now()
	logging.Info("Starting catalog refresh", "at", start.Format(time.RFC3339))

	var (
		rows       []entities.ATCClassRow
		reportDate entities.Date
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.source.ATCClasses(gctx, CatalogMonths)
		return err
	})
	g.Go(func() error {
		var err error
		reportDate, err = s.source.MaxReportDate(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		metrics.CatalogRefreshTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("catalog refresh: %w", err)
	}

	catalog := data.BuildCatalog(rows, reportDate)
	s.catalog.UpdateCatalog(catalog)
	metrics.CatalogRefreshTotal.WithLabelValues("success").Inc()

	logging.Info("Catalog refresh completed",
		"duration", time.Since(start).String(),
		"report_date", reportDate.String(),
		"atc_classes", len(catalog.ATCClasses),
		"molecules", len(catalog.Molecules),
	)
	return nil
}

// monitor warns when the catalog has not been refreshed for over a day
func (s *Scheduler) monitor() {
	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if isStale(s.catalog.GetLastUpdated(), time.Now()) {
				logging.Warn("Catalog hasn't been refreshed in over 25 hours")
			}
		}
	}
}

func isStale(lastUpdate, now time.Time) bool {
	return now.Sub(lastUpdate) > staleAfter
}
