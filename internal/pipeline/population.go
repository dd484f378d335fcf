package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/dadoscon/municipal-etl/internal/adapter/csvfile"
	"github.com/dadoscon/municipal-etl/internal/adapter/xlsx"
	"github.com/dadoscon/municipal-etl/internal/domain"
	"github.com/dadoscon/municipal-etl/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// exportPrefix names the population export files: populacao_ibge_<date>.
const exportPrefix = "populacao_ibge_"

// PopulationConfig controls one population run.
type PopulationConfig struct {
	// Query is the statistics API query template; its Band is set per band.
	Query                domain.BandQuery
	MaxAttempts          int
	InitialBackoff       time.Duration
	MaxBackoff           time.Duration
	FullRefresh          bool
	ExportDir            string
	ReportUF             string
	ReportMunicipalities []string
}

// PopulationReport summarizes a population run.
type PopulationReport struct {
	RunID        string                 `json:"run_id"`
	Bands        int                    `json:"bands"`
	SkippedBands []string               `json:"skipped_bands,omitempty"`
	Rows         int                    `json:"rows"`
	Loaded       int64                  `json:"loaded"`
	Files        []string               `json:"files,omitempty"`
	URLs         []string               `json:"urls,omitempty"`
	Report       []domain.PopulationRow `json:"report,omitempty"`
	Duration     time.Duration          `json:"duration"`
}

// Population fetches every age band, merges them into one row per
// municipality, then loads, exports and uploads the result.
type Population struct {
	source   domain.PopulationSource
	store    PopulationStore
	uploader Uploader
	cfg      PopulationConfig
	clock    clockwork.Clock
	metrics  *observability.Metrics
	logger   *slog.Logger
	ready    atomic.Bool
}

// NewPopulation creates the population job. store and uploader may be nil to
// skip the database load and the upload.
func NewPopulation(
	source domain.PopulationSource,
	store PopulationStore,
	uploader Uploader,
	cfg PopulationConfig,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Population {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	return &Population{
		source:   source,
		store:    store,
		uploader: uploader,
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		metrics:  metrics,
		logger:   logger,
	}
}

// SetClock replaces the clock used for export file names and timings.
func (p *Population) SetClock(c clockwork.Clock) {
	p.clock = c
}

// CheckReadiness returns nil once a run has completed successfully.
func (p *Population) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("population pipeline has not completed a run yet")
	}
	return nil
}

// Run executes one full population load. Bands that keep failing are logged
// and skipped; the run fails only on load or export errors.
func (p *Population) Run(ctx context.Context) (PopulationReport, error) {
	start := p.clock.Now()
	report := PopulationReport{RunID: uuid.NewString()}
	logger := p.logger.With("job", "population", "run_id", report.RunID)

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	logger.Info("population run started", "bands", len(domain.AgeBands()))

	results := make([]domain.BandResult, 0, domain.AgeBandCount)
	for _, band := range domain.AgeBands() {
		counts, err := p.fetchWithRetry(ctx, band, logger)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			logger.Warn("age band skipped", "band", band.Column, "error", err)
			p.metrics.BandsSkipped.Inc()
			report.SkippedBands = append(report.SkippedBands, band.Column)
			continue
		}
		results = append(results, domain.BandResult{Band: band, Counts: counts})
	}
	report.Bands = len(results)

	rows := domain.MergeAgeBands(results)
	report.Rows = len(rows)
	if len(rows) == 0 {
		logger.Warn("no population data fetched, nothing to load")
		report.Duration = p.clock.Since(start)
		return report, nil
	}

	if p.store != nil {
		loaded, err := p.load(ctx, rows)
		if err != nil {
			return report, err
		}
		report.Loaded = loaded
	}

	files, err := p.export(rows)
	if err != nil {
		return report, err
	}
	report.Files = files

	if p.uploader != nil {
		prefix := "populacao/" + p.clock.Now().Format(time.DateOnly)
		for _, f := range files {
			url, err := p.uploader.UploadFile(ctx, prefix, f)
			if err != nil {
				logger.Warn("upload failed", "file", f, "error", err)
				continue
			}
			report.URLs = append(report.URLs, url)
		}
	}

	if p.store != nil && p.cfg.ReportUF != "" {
		rep, err := p.store.QueryPopulation(ctx, p.cfg.ReportUF, p.cfg.ReportMunicipalities)
		if err != nil {
			logger.Warn("report query failed", "error", err)
		}
		for _, r := range rep {
			logger.Info("population report", "municipio", r.Municipality, "uf", r.UF, "pop_total", r.Total)
		}
		report.Report = rep
	}

	report.Duration = p.clock.Since(start)
	p.metrics.RunDuration.WithLabelValues("population").Observe(report.Duration.Seconds())
	p.metrics.LastSuccess.WithLabelValues("population").Set(float64(p.clock.Now().Unix()))
	p.ready.Store(true)

	logger.Info("population run finished",
		"rows", report.Rows,
		"loaded", report.Loaded,
		"skipped_bands", len(report.SkippedBands),
		"duration", report.Duration,
	)
	return report, nil
}

// fetchWithRetry queries one band, retrying with exponential backoff.
func (p *Population) fetchWithRetry(ctx context.Context, band domain.AgeBand, logger *slog.Logger) ([]domain.BandCount, error) {
	q := p.cfg.Query
	q.Band = band

	backoff := p.cfg.InitialBackoff
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		counts, err := p.source.FetchAgeBand(ctx, q)
		if err == nil {
			return counts, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == p.cfg.MaxAttempts {
			break
		}
		logger.Debug("age band fetch failed, retrying", "band", band.Column, "attempt", attempt, "backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, p.cfg.MaxBackoff)
	}
	return nil, fmt.Errorf("%d attempts: %w", p.cfg.MaxAttempts, lastErr)
}

func (p *Population) load(ctx context.Context, rows []domain.PopulationRow) (int64, error) {
	if err := p.store.Migrate(ctx); err != nil {
		return 0, fmt.Errorf("migrate: %w", err)
	}
	load := p.store.UpsertPopulation
	if p.cfg.FullRefresh {
		load = p.store.ReplacePopulation
	}
	n, err := load(ctx, rows)
	if err != nil {
		return 0, err
	}
	p.metrics.PopulationRowsLoaded.Add(float64(len(rows)))
	return n, nil
}

// export writes the CSV and XLSX files and returns their paths.
func (p *Population) export(rows []domain.PopulationRow) ([]string, error) {
	if err := os.MkdirAll(p.cfg.ExportDir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	base := filepath.Join(p.cfg.ExportDir, exportPrefix+p.clock.Now().Format(time.DateOnly))

	csvPath := base + ".csv"
	if err := writeFile(csvPath, func(f *os.File) error {
		return csvfile.WritePopulation(f, rows, csvfile.Options{BOM: true})
	}); err != nil {
		return nil, err
	}

	xlsxPath := base + ".xlsx"
	if err := writeFile(xlsxPath, func(f *os.File) error {
		return xlsx.Write(f, xlsx.PopulationSheet(rows), xlsx.StatesSheet(domain.SumByState(rows)))
	}); err != nil {
		return nil, err
	}
	return []string{csvPath, xlsxPath}, nil
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
