// Command etl runs one population load: fetch every age band from the
// statistics API, merge, load into Postgres, export and upload. Health and
// metrics are served while the run is in progress.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/dadoscon/municipal-etl/internal/adapter/http"
	"github.com/dadoscon/municipal-etl/internal/adapter/objectstore"
	"github.com/dadoscon/municipal-etl/internal/adapter/postgres"
	"github.com/dadoscon/municipal-etl/internal/adapter/sidra"
	"github.com/dadoscon/municipal-etl/internal/config"
	"github.com/dadoscon/municipal-etl/internal/domain"
	"github.com/dadoscon/municipal-etl/internal/observability"
	"github.com/dadoscon/municipal-etl/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	source := sidra.NewClient(cfg.SidraBaseURL, cfg.SidraTimeout, metrics, logger)

	// Database load is feature-flagged via DB_DSN.
	var store pipeline.PopulationStore
	if cfg.DBEnabled() {
		repo, err := postgres.Open(cfg.DBDSN, cfg.DBTableName, cfg.BatchSize, logger)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			return 1
		}
		defer func() {
			if err := repo.Close(); err != nil {
				logger.Error("database close error", "error", err)
			}
		}()
		store = repo
		logger.Info("database load enabled", "table", cfg.DBTableName)
	} else {
		logger.Info("database load disabled")
	}

	var uploader pipeline.Uploader
	switch s3, err := objectstore.New(cfg, logger); {
	case err == nil:
		uploader = s3
		logger.Info("export upload enabled", "bucket", cfg.S3Bucket)
	case errors.Is(err, objectstore.ErrNotConfigured):
		logger.Info("export upload disabled")
	default:
		logger.Error("failed to configure object storage", "error", err)
		return 1
	}

	job := pipeline.NewPopulation(source, store, uploader, pipeline.PopulationConfig{
		Query:                sidra.NewBandQuery(domain.AgeBand{}),
		MaxAttempts:          cfg.SidraMaxAttempts,
		FullRefresh:          cfg.DBFullRefresh,
		ExportDir:            cfg.ExportDir,
		ReportUF:             cfg.ReportUF,
		ReportMunicipalities: cfg.ReportMunicipalities,
	}, metrics, logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr, job, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	exitCode := 0
	report, err := job.Run(ctx)
	switch {
	case err != nil:
		logger.Error("population run failed", "error", err)
		exitCode = 1
	case report.Rows == 0:
		logger.Warn("population run produced no rows")
		exitCode = 1
	default:
		for _, f := range report.Files {
			logger.Info("export written", "file", f)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return exitCode
}
