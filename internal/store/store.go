// Package store is the relational upsert layer over the five-table catalog
// described by the domain model: complexes, appraisal prices, transactions,
// listings, and comparisons. Every write goes through one of the named
// idempotent operations and takes a caller-supplied Querier so the caller
// controls the transaction boundary (spec: "runs inside the caller's
// transaction scope and defers commit to the caller").
package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type Store struct{ DB *sql.DB }

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{DB: db}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

// Querier is satisfied by both *sql.DB and *sql.Tx; upsert operations take
// one so callers choose their own transaction scope.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// BeginTx opens a transaction scoped to one unit of work (a (province,
// district) full-crawl batch, a KB group-task commit, etc).
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.DB.BeginTx(ctx, nil)
}

func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE TABLE IF NOT EXISTS complexes (
            id                  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            name                TEXT NOT NULL,
            province            TEXT NOT NULL,
            district            TEXT NOT NULL,
            sub_district        TEXT,
            area_code           TEXT,
            external_listing_id TEXT,
            built_year          INTEGER,
            total_units         INTEGER,
            lat                 DOUBLE PRECISION,
            lon                 DOUBLE PRECISION,
            created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_complexes_external_listing_id ON complexes(external_listing_id) WHERE external_listing_id IS NOT NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_complexes_province_district ON complexes(province, district);`,
		`CREATE INDEX IF NOT EXISTS idx_complexes_area_code ON complexes(area_code) WHERE area_code IS NOT NULL;`,
		`CREATE TABLE IF NOT EXISTS appraisal_prices (
            id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            complex_id  UUID NOT NULL REFERENCES complexes(id) ON DELETE CASCADE,
            area_sqm    DOUBLE PRECISION NOT NULL,
            price_low   INTEGER,
            price_mid   INTEGER NOT NULL,
            price_high  INTEGER,
            updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_appraisal_complex_area ON appraisal_prices(complex_id, area_sqm);`,
		`CREATE TABLE IF NOT EXISTS transactions (
            id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            complex_id   UUID NOT NULL REFERENCES complexes(id) ON DELETE CASCADE,
            area_sqm     DOUBLE PRECISION NOT NULL,
            floor        INTEGER,
            deal_price   INTEGER NOT NULL,
            deal_date    DATE NOT NULL,
            created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_complex_area ON transactions(complex_id, area_sqm);`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_deal_date ON transactions(deal_date);`,
		`CREATE TABLE IF NOT EXISTS listings (
            id                  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            complex_id          UUID NOT NULL REFERENCES complexes(id) ON DELETE CASCADE,
            external_article_id TEXT NOT NULL,
            area_sqm            DOUBLE PRECISION NOT NULL,
            floor               INTEGER,
            asking_price        INTEGER NOT NULL,
            registered_at       TIMESTAMPTZ,
            is_active           BOOLEAN NOT NULL DEFAULT TRUE,
            created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_listings_external_article_id ON listings(external_article_id);`,
		`CREATE INDEX IF NOT EXISTS idx_listings_complex ON listings(complex_id);`,
		`CREATE INDEX IF NOT EXISTS idx_listings_complex_active ON listings(complex_id, is_active);`,
		`CREATE TABLE IF NOT EXISTS comparisons (
            id                UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            complex_id        UUID NOT NULL REFERENCES complexes(id) ON DELETE CASCADE,
            area_sqm          DOUBLE PRECISION NOT NULL,
            appraisal_mid     INTEGER NOT NULL,
            recent_deal_price INTEGER NOT NULL,
            recent_deal_date  DATE NOT NULL,
            discount_rate     NUMERIC(6,2) NOT NULL,
            deal_count_3m     INTEGER NOT NULL,
            compared_at       TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_comparisons_complex_area ON comparisons(complex_id, area_sqm);`,
	}
	for _, q := range stmts {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// IsEmpty reports whether the complexes table has no rows yet — the
// first-run test the Scheduler uses to pick Full vs Incremental.
func (s *Store) IsEmpty(ctx context.Context) (bool, error) {
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT count(*) FROM complexes LIMIT 1`).Scan(&n); err != nil {
		return false, err
	}
	return n == 0, nil
}
