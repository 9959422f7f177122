package web

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const leadsSchema = `
CREATE TABLE IF NOT EXISTS leads (
    id         UUID PRIMARY KEY,
    name       TEXT NOT NULL DEFAULT '',
    email      TEXT NOT NULL DEFAULT '',
    phone      TEXT NOT NULL DEFAULT '',
    company    TEXT NOT NULL DEFAULT '',
    source     TEXT NOT NULL DEFAULT '',
    status     TEXT NOT NULL DEFAULT '',
    value      DOUBLE PRECISION NOT NULL DEFAULT 0,
    notes      TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS leads_created_at_idx ON leads (created_at DESC);
`

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresLeadStore stores leads in PostgreSQL.
type PostgresLeadStore struct {
	db   DBTX
	pool *pgxpool.Pool
}

// OpenPostgres connects, pings and ensures the leads table exists.
func OpenPostgres(ctx context.Context, url string, maxConns int) (*PostgresLeadStore, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = int32(maxConns)
	}
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresLeadStore{db: pool, pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresLeadStore wraps an existing connection or transaction.
func NewPostgresLeadStore(db DBTX) *PostgresLeadStore {
	return &PostgresLeadStore{db: db}
}

func (s *PostgresLeadStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, leadsSchema); err != nil {
		return fmt.Errorf("create leads table: %w", err)
	}
	return nil
}

// Close releases the pool when the store opened it.
func (s *PostgresLeadStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresLeadStore) Create(ctx context.Context, lead *Lead) error {
	id := uuid.New()
	lead.ID = id.String()
	err := s.db.QueryRow(ctx, `
		INSERT INTO leads (id, name, email, phone, company, source, status, value, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		id, lead.Name, lead.Email, lead.Phone, lead.Company,
		lead.Source, lead.Status, lead.Value, lead.Notes,
	).Scan(&lead.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert lead: %w", err)
	}
	return nil
}

func (s *PostgresLeadStore) List(ctx context.Context, limit int) ([]Lead, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id::text, name, email, phone, company, source, status, value, notes, created_at
		FROM leads
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}

	leads, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Lead, error) {
		var l Lead
		err := row.Scan(&l.ID, &l.Name, &l.Email, &l.Phone, &l.Company,
			&l.Source, &l.Status, &l.Value, &l.Notes, &l.CreatedAt)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan leads: %w", err)
	}
	return leads, nil
}
