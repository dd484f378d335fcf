// Command dashboard-api serves the competitor map and population data feed
// built from the reference tables in DATA_DIR.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/dadoscon/municipal-etl/internal/adapter/csvfile"
	httpadapter "github.com/dadoscon/municipal-etl/internal/adapter/http"
	"github.com/dadoscon/municipal-etl/internal/adapter/postgres"
	"github.com/dadoscon/municipal-etl/internal/config"
	"github.com/dadoscon/municipal-etl/internal/dashboard"
	"github.com/dadoscon/municipal-etl/internal/observability"
)

// alwaysReady reports ready once the dataset is built.
type alwaysReady struct{}

func (alwaysReady) CheckReadiness(context.Context) error { return nil }

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	tables, err := csvfile.LoadReferenceTables(cfg.DataDir)
	if err != nil {
		logger.Error("failed to load reference tables", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	var ready sharedobs.ReadinessChecker = alwaysReady{}

	// Population comes from the database when configured, otherwise from
	// populacao_ibge.csv in DATA_DIR.
	if cfg.DBEnabled() {
		repo, err := postgres.Open(cfg.DBDSN, cfg.DBTableName, cfg.BatchSize, logger)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer repo.Close()

		rows, err := repo.QueryPopulation(context.Background(), "", nil)
		if err != nil {
			logger.Error("failed to read population", "error", err)
			os.Exit(1)
		}
		tables.Population = rows
		ready = repo
	}

	data := dashboard.NewDataset(tables.Municipalities, tables.States, tables.Competitors, tables.Population, logger)
	metrics.UnmatchedMunicipios.Add(float64(data.Stats().Unmatched))
	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, metrics, logger, httpadapter.WithDataset(data))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
