package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/dadoscon/municipal-etl/internal/adapter/csvfile"
	"github.com/dadoscon/municipal-etl/internal/domain"
	"github.com/dadoscon/municipal-etl/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ContractsReport summarizes a contract cleanup run.
type ContractsReport struct {
	RunID     string                  `json:"run_id"`
	Stats     domain.ParseStats       `json:"stats"`
	Renamed   int                     `json:"renamed"`
	Unmatched []string                `json:"unmatched,omitempty"`
	Published int                     `json:"published"`
	Duration  time.Duration           `json:"duration"`
	Records   []domain.ContractRecord `json:"-"`
}

// Contracts cleans the contract ticket export: parse, normalize municipality
// names, check them against the gazetteer, write the cleaned file and publish.
type Contracts struct {
	gazetteer *domain.Gazetteer
	publisher ContractPublisher
	clock     clockwork.Clock
	metrics   *observability.Metrics
	logger    *slog.Logger
	ready     atomic.Bool
}

// NewContracts creates the cleanup job. gazetteer and publisher may be nil to
// skip the coverage check and the publish step.
func NewContracts(gazetteer *domain.Gazetteer, publisher ContractPublisher, metrics *observability.Metrics, logger *slog.Logger) *Contracts {
	return &Contracts{
		gazetteer: gazetteer,
		publisher: publisher,
		clock:     clockwork.NewRealClock(),
		metrics:   metrics,
		logger:    logger,
	}
}

// SetClock replaces the clock used for run timings.
func (c *Contracts) SetClock(clk clockwork.Clock) {
	c.clock = clk
}

// CheckReadiness returns nil once a run has completed successfully.
func (c *Contracts) CheckReadiness(_ context.Context) error {
	if !c.ready.Load() {
		return errors.New("contracts pipeline has not completed a run yet")
	}
	return nil
}

// Run reads the export from in and writes the cleaned CSV to out.
func (c *Contracts) Run(ctx context.Context, in io.Reader, out io.Writer) (ContractsReport, error) {
	start := c.clock.Now()
	report := ContractsReport{RunID: uuid.NewString()}
	logger := c.logger.With("job", "contracts", "run_id", report.RunID)

	c.metrics.PipelineRunning.Set(1)
	defer c.metrics.PipelineRunning.Set(0)

	recs, stats, err := domain.ParseContractExport(in)
	if err != nil {
		return report, fmt.Errorf("parse export: %w", err)
	}
	report.Stats = stats
	c.metrics.ContractsParsed.Add(float64(stats.Kept))
	c.metrics.ContractsSkipped.Add(float64(stats.Skipped))

	recs, report.Renamed = CleanContracts(recs)
	report.Records = recs
	report.Unmatched = c.unmatched(recs, logger)

	if err := csvfile.WriteContracts(out, recs, csvfile.Options{BOM: true}); err != nil {
		return report, fmt.Errorf("write cleaned contracts: %w", err)
	}

	if c.publisher != nil {
		n, err := c.publisher.PublishContracts(ctx, recs)
		report.Published = n
		c.metrics.ContractsPublished.Add(float64(n))
		if err != nil {
			return report, fmt.Errorf("publish contracts: %w", err)
		}
	}

	report.Duration = c.clock.Since(start)
	c.metrics.RunDuration.WithLabelValues("contracts").Observe(report.Duration.Seconds())
	c.metrics.LastSuccess.WithLabelValues("contracts").Set(float64(c.clock.Now().Unix()))
	c.ready.Store(true)

	logger.Info("contracts run finished",
		"lines", stats.Lines,
		"kept", stats.Kept,
		"skipped", stats.Skipped,
		"renamed", report.Renamed,
		"unmatched", len(report.Unmatched),
		"published", report.Published,
	)
	return report, nil
}

// CleanContracts normalizes every record's municipality name and returns the
// cleaned records with the number of names that changed.
func CleanContracts(recs []domain.ContractRecord) ([]domain.ContractRecord, int) {
	out := make([]domain.ContractRecord, len(recs))
	renamed := 0
	for i, rec := range recs {
		out[i] = domain.CleanContract(rec)
		if out[i].Municipality != rec.Municipality {
			renamed++
		}
	}
	return out, renamed
}

// unmatched returns the distinct "Name - UF" keys that have no gazetteer entry.
func (c *Contracts) unmatched(recs []domain.ContractRecord, logger *slog.Logger) []string {
	if c.gazetteer == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, rec := range recs {
		if _, ok := c.gazetteer.Lookup(rec.Municipality, rec.UF); ok {
			continue
		}
		c.metrics.UnmatchedMunicipios.Inc()
		key := rec.Municipality + " - " + rec.UF
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			logger.Debug("municipality not in gazetteer", "ticket", rec.Ticket, "municipio", rec.Municipality, "uf", rec.UF)
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
