// Command contracts cleans a contract ticket export: it repairs broken
// records, normalizes municipality names, reports names missing from the
// gazetteer, writes the cleaned semicolon CSV and optionally publishes the
// records to Kafka.
//
// Usage:
//
//	go run ./cmd/contracts -in CON.csv -out dados_exportados/contratos_limpos.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dadoscon/municipal-etl/internal/adapter/csvfile"
	"github.com/dadoscon/municipal-etl/internal/adapter/kafka"
	"github.com/dadoscon/municipal-etl/internal/adapter/xlsx"
	"github.com/dadoscon/municipal-etl/internal/config"
	"github.com/dadoscon/municipal-etl/internal/domain"
	"github.com/dadoscon/municipal-etl/internal/observability"
	"github.com/dadoscon/municipal-etl/internal/pipeline"
)

func main() {
	in := flag.String("in", "", "contract export to clean (required)")
	out := flag.String("out", "", "cleaned CSV path (default <EXPORT_DIR>/contratos_limpos.csv)")
	withXLSX := flag.Bool("xlsx", false, "also write the cleaned records as a spreadsheet next to -out")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		os.Exit(2)
	}
	os.Exit(run(*in, *out, *withXLSX))
}

func run(inPath, outPath string, withXLSX bool) int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	if outPath == "" {
		outPath = filepath.Join(cfg.ExportDir, "contratos_limpos.csv")
	}

	// The gazetteer check runs when the reference municipalities are available.
	var gazetteer *domain.Gazetteer
	if tables, err := csvfile.LoadReferenceTables(cfg.DataDir); err == nil {
		gazetteer = domain.NewGazetteer(tables.Municipalities, tables.States)
		logger.Info("gazetteer loaded", "municipalities", gazetteer.Len())
	} else {
		logger.Info("gazetteer check disabled", "reason", err)
	}

	var publisher pipeline.ContractPublisher
	if cfg.KafkaEnabled() {
		w := kafka.NewWriter(cfg, logger)
		defer func() {
			if err := w.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		publisher = w
		logger.Info("kafka publish enabled", "topic", cfg.KafkaContractsTopic)
	}

	inFile, err := os.Open(inPath)
	if err != nil {
		logger.Error("failed to open input", "error", err)
		return 1
	}
	defer inFile.Close()

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		logger.Error("failed to create output dir", "error", err)
		return 1
	}
	outFile, err := os.Create(outPath)
	if err != nil {
		logger.Error("failed to create output", "error", err)
		return 1
	}
	defer outFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	job := pipeline.NewContracts(gazetteer, publisher, metrics, logger)
	report, err := job.Run(ctx, inFile, outFile)
	if err != nil {
		logger.Error("contracts run failed", "error", err)
		return 1
	}

	if withXLSX {
		p, err := writeSpreadsheet(outPath, report.Records)
		if err != nil {
			logger.Error("spreadsheet export failed", "error", err)
			return 1
		}
		logger.Info("spreadsheet written", "file", p)
	}

	for _, name := range report.Unmatched {
		fmt.Println("unmatched:", name)
	}
	fmt.Printf("%d kept, %d skipped, %d renamed, %d unmatched, %d published -> %s\n",
		report.Stats.Kept, report.Stats.Skipped, report.Renamed, len(report.Unmatched), report.Published, outPath)
	return 0
}

// writeSpreadsheet writes recs next to csvPath as <name>.xlsx.
func writeSpreadsheet(csvPath string, recs []domain.ContractRecord) (string, error) {
	xlsxPath := strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + ".xlsx"
	out, err := os.Create(xlsxPath)
	if err != nil {
		return "", err
	}
	if err := xlsx.Write(out, xlsx.ContractsSheet(recs)); err != nil {
		out.Close()
		return "", err
	}
	return xlsxPath, out.Close()
}
