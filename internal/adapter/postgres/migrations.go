package postgres

import (
	"context"
	"fmt"
	"regexp"

	"gorm.io/gorm"
)

var tableNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// migrationStatements returns the DDL for the population table. The name is
// interpolated, so callers must pass it through validTableName first.
func migrationStatements(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id                  BIGSERIAL PRIMARY KEY,
		municipio           TEXT NOT NULL,
		uf                  CHAR(2) NOT NULL,
		codigo_ibge         TEXT,
		pop_0_14            BIGINT NOT NULL DEFAULT 0,
		pop_15_19           BIGINT NOT NULL DEFAULT 0,
		pop_20_29           BIGINT NOT NULL DEFAULT 0,
		pop_30_39           BIGINT NOT NULL DEFAULT 0,
		pop_40_49           BIGINT NOT NULL DEFAULT 0,
		pop_50_59           BIGINT NOT NULL DEFAULT 0,
		pop_60_74           BIGINT NOT NULL DEFAULT 0,
		pop_75_99           BIGINT NOT NULL DEFAULT 0,
		pop_100_mais        BIGINT NOT NULL DEFAULT 0,
		pop_total           BIGINT NOT NULL DEFAULT 0,
		ultima_atualizacao  TIMESTAMPTZ NOT NULL DEFAULT now()
	);`, table),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS ux_%s_municipio_uf ON %s(municipio, uf);`, table, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_uf ON %s(uf);`, table, table),
		fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS codigo_ibge TEXT;`, table),
	}
}

func validTableName(table string) error {
	if !tableNameRe.MatchString(table) {
		return fmt.Errorf("invalid table name %q", table)
	}
	return nil
}

func runMigrations(ctx context.Context, db *gorm.DB, table string) error {
	for i, stmt := range migrationStatements(table) {
		if err := db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
