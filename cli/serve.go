package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/dispomed/dispomed-api/cache"
	"github.com/dispomed/dispomed-api/data"
	"github.com/dispomed/dispomed-api/database"
	"github.com/dispomed/dispomed-api/entities"
	"github.com/dispomed/dispomed-api/handlers"
	"github.com/dispomed/dispomed-api/health"
	"github.com/dispomed/dispomed-api/logging"
	"github.com/dispomed/dispomed-api/repository"
	"github.com/dispomed/dispomed-api/scheduler"
	"github.com/dispomed/dispomed-api/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API. The reference catalog is loaded at startup and
refreshed at 06:00 and 18:00. When the database is missing the server still
starts and answers every data endpoint with setup instructions.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logging.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info("Starting dispomed", "version", Version, "env", cfg.Env.String(), "addr", cfg.ListenAddr())

	db, err := database.Open(ctx, databaseOptions(cfg))
	if err != nil {
		if database.IsDatabaseMissing(err) {
			logging.Error("Database does not exist, serving setup instructions", "error", err)
		} else {
			logging.Warn("Database unavailable at startup", "error", err)
		}
		// queries keep failing until the database shows up
		if db, err = database.Connect(databaseOptions(cfg)); err != nil {
			return fmt.Errorf("configure database: %w", err)
		}
	}
	defer db.Close()

	repo := repository.New(db)

	container := data.NewCatalogContainer()
	container.SetServerStartTime(time.Now())

	sched := scheduler.NewScheduler(container, repo)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	h := handlers.New(handlers.Options{
		Repository: repo,
		Catalog:    container,
		Health:     health.NewChecker(container, db),
		Cache:      cache.New[[]entities.Incident](cfg.QueryCacheTTL, cache.WithMetrics()),
		APIBaseURL: cfg.APIBaseURL,
	})
	srv := server.NewServer(cfg, h)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	logging.Info("Server stopped")
	return nil
}
