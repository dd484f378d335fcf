package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dadoscon/municipal-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// populationRecord is one row of the population table.
type populationRecord struct {
	ID                int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Municipio         string    `gorm:"column:municipio;not null"`
	UF                string    `gorm:"column:uf;not null"`
	CodigoIBGE        string    `gorm:"column:codigo_ibge"`
	Pop0a14           int64     `gorm:"column:pop_0_14"`
	Pop15a19          int64     `gorm:"column:pop_15_19"`
	Pop20a29          int64     `gorm:"column:pop_20_29"`
	Pop30a39          int64     `gorm:"column:pop_30_39"`
	Pop40a49          int64     `gorm:"column:pop_40_49"`
	Pop50a59          int64     `gorm:"column:pop_50_59"`
	Pop60a74          int64     `gorm:"column:pop_60_74"`
	Pop75a99          int64     `gorm:"column:pop_75_99"`
	Pop100Mais        int64     `gorm:"column:pop_100_mais"`
	PopTotal          int64     `gorm:"column:pop_total"`
	UltimaAtualizacao time.Time `gorm:"column:ultima_atualizacao"`
}

// upsertColumns are overwritten when (municipio, uf) already exists.
var upsertColumns = []string{
	"codigo_ibge",
	"pop_0_14", "pop_15_19", "pop_20_29", "pop_30_39", "pop_40_49",
	"pop_50_59", "pop_60_74", "pop_75_99", "pop_100_mais",
	"pop_total", "ultima_atualizacao",
}

func toRecord(r domain.PopulationRow, now time.Time) populationRecord {
	b := r.Bands
	return populationRecord{
		Municipio:         r.Municipality,
		UF:                r.UF,
		CodigoIBGE:        r.IBGECode,
		Pop0a14:           b[0],
		Pop15a19:          b[1],
		Pop20a29:          b[2],
		Pop30a39:          b[3],
		Pop40a49:          b[4],
		Pop50a59:          b[5],
		Pop60a74:          b[6],
		Pop75a99:          b[7],
		Pop100Mais:        b[8],
		PopTotal:          r.Total,
		UltimaAtualizacao: now,
	}
}

func (p populationRecord) toDomain() domain.PopulationRow {
	return domain.PopulationRow{
		IBGECode:     p.CodigoIBGE,
		Municipality: p.Municipio,
		UF:           p.UF,
		Bands: [domain.AgeBandCount]int64{
			p.Pop0a14, p.Pop15a19, p.Pop20a29, p.Pop30a39, p.Pop40a49,
			p.Pop50a59, p.Pop60a74, p.Pop75a99, p.Pop100Mais,
		},
		Total: p.PopTotal,
	}
}

// Repository stores population rows in Postgres.
// It implements pipeline.PopulationStore.
type Repository struct {
	db        *gorm.DB
	table     string
	batchSize int
	clock     clockwork.Clock
	logger    *slog.Logger
}

// Open connects to Postgres and returns a repository for the given table.
func Open(dsn, table string, batchSize int, logger *slog.Logger) (*Repository, error) {
	if err := validTableName(table); err != nil {
		return nil, err
	}
	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return New(db, table, batchSize, logger)
}

// New wraps an existing gorm connection.
func New(db *gorm.DB, table string, batchSize int, logger *slog.Logger) (*Repository, error) {
	if err := validTableName(table); err != nil {
		return nil, err
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Repository{
		db:        db,
		table:     table,
		batchSize: batchSize,
		clock:     clockwork.NewRealClock(),
		logger:    logger,
	}, nil
}

// SetClock replaces the clock used for ultima_atualizacao.
func (r *Repository) SetClock(c clockwork.Clock) {
	r.clock = c
}

// Migrate creates the population table and its indexes.
func (r *Repository) Migrate(ctx context.Context) error {
	return runMigrations(ctx, r.db, r.table)
}

// UpsertPopulation inserts rows in batches, updating existing (municipio, uf) pairs.
func (r *Repository) UpsertPopulation(ctx context.Context, rows []domain.PopulationRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := r.upsert(r.db.WithContext(ctx), rows)
	if err != nil {
		return 0, err
	}
	r.logger.Info("population upserted", "table", r.table, "rows", n)
	return n, nil
}

// ReplacePopulation truncates the table and loads rows in one transaction.
// The previous contents survive when the load fails.
func (r *Repository) ReplacePopulation(ctx context.Context, rows []domain.PopulationRow) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := truncate(tx, r.table); err != nil {
			return err
		}
		var err error
		n, err = r.upsert(tx, rows)
		return err
	})
	if err != nil {
		return 0, err
	}
	r.logger.Info("population replaced", "table", r.table, "rows", n)
	return n, nil
}

// Truncate removes every row from the population table.
func (r *Repository) Truncate(ctx context.Context) error {
	return truncate(r.db.WithContext(ctx), r.table)
}

func (r *Repository) upsert(tx *gorm.DB, rows []domain.PopulationRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	now := r.clock.Now().UTC()
	records := make([]populationRecord, len(rows))
	for i, row := range rows {
		records[i] = toRecord(row, now)
	}

	res := tx.Table(r.table).
		Omit("id").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "municipio"}, {Name: "uf"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		CreateInBatches(&records, r.batchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("upsert population: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func truncate(tx *gorm.DB, table string) error {
	if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s", table)).Error; err != nil {
		return fmt.Errorf("truncate %s: %w", table, err)
	}
	return nil
}

// QueryPopulation returns the rows of the named municipalities in uf,
// largest total first. An empty uf or names matches every row.
func (r *Repository) QueryPopulation(ctx context.Context, uf string, names []string) ([]domain.PopulationRow, error) {
	var records []populationRecord
	q := r.db.WithContext(ctx).Table(r.table)
	if uf != "" {
		q = q.Where("uf = ?", uf)
	}
	if len(names) > 0 {
		q = q.Where("municipio IN ?", names)
	}
	if err := q.Order("pop_total DESC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("query population: %w", err)
	}

	rows := make([]domain.PopulationRow, len(records))
	for i, rec := range records {
		rows[i] = rec.toDomain()
	}
	return rows, nil
}

// CheckReadiness pings the database.
func (r *Repository) CheckReadiness(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying connection pool.
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
