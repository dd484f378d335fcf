// Package pipeline orchestrates the population load and the contract cleanup
// jobs on top of the domain rules and the adapters.
package pipeline

import (
	"context"
	"time"

	"github.com/dadoscon/municipal-etl/internal/domain"
)

// PopulationStore persists merged population rows.
type PopulationStore interface {
	Migrate(ctx context.Context) error
	UpsertPopulation(ctx context.Context, rows []domain.PopulationRow) (int64, error)
	// ReplacePopulation swaps the stored rows for rows atomically.
	ReplacePopulation(ctx context.Context, rows []domain.PopulationRow) (int64, error)
	QueryPopulation(ctx context.Context, uf string, names []string) ([]domain.PopulationRow, error)
}

// Uploader copies an export file to remote storage and returns its URL.
type Uploader interface {
	UploadFile(ctx context.Context, prefix, path string) (string, error)
}

// ContractPublisher publishes cleaned contract records.
type ContractPublisher interface {
	PublishContracts(ctx context.Context, recs []domain.ContractRecord) (int, error)
}

const (
	defaultInitialBackoff = 200 * time.Millisecond
	defaultMaxBackoff     = 5 * time.Second
)
