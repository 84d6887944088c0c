package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kl-higa/public-mtg-monitor2/pkg/models"
)

const queryTimeout = 5 * time.Second

// Schema creates the registry tables.
const Schema = `
CREATE TABLE IF NOT EXISTS sources (
	id         SERIAL PRIMARY KEY,
	agency     TEXT,
	name       TEXT,
	index_url  TEXT,
	active     BOOLEAN,
	note       TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS recipients (
	email      TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'active',
	sources    TEXT NOT NULL DEFAULT '*',
	token      TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Connect creates a Postgres connection pool.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dsn: %w", err)
	}
	cfg.MaxConns = 5
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return pool, nil
}

// Postgres reads sources and recipients from the registry tables.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps a connection pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, queryTimeout)
}

// Migrate creates the registry tables if they don't exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	if _, err := p.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to migrate registry: %w", err)
	}
	return nil
}

// Sources returns the usable source rows.
func (p *Postgres) Sources(ctx context.Context) ([]models.Source, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx, `SELECT id, agency, name, index_url, active, note FROM sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var raw []SourceRow
	for rows.Next() {
		var r SourceRow
		if err := rows.Scan(&r.ID, &r.Agency, &r.Name, &r.IndexURL, &r.Active, &r.Note); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sources: %w", err)
	}
	return FilterSources(raw), nil
}

// Recipients returns every recipient row.
func (p *Postgres) Recipients(ctx context.Context) ([]models.Recipient, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx, `SELECT email, status, sources, token FROM recipients ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipients: %w", err)
	}
	defer rows.Close()

	var out []models.Recipient
	for rows.Next() {
		var r models.Recipient
		if err := rows.Scan(&r.Email, &r.Status, &r.Sources, &r.Token); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recipients: %w", err)
	}
	return out, nil
}

// UpsertRecipient inserts a recipient or updates its status and sources.
func (p *Postgres) UpsertRecipient(ctx context.Context, r models.Recipient) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	_, err := p.pool.Exec(ctx, `
INSERT INTO recipients (email, status, sources, token)
VALUES ($1, $2, $3, $4)
ON CONFLICT (email) DO UPDATE SET status = EXCLUDED.status, sources = EXCLUDED.sources, updated_at = now()
`, r.Email, r.Status, r.Sources, r.Token)
	if err != nil {
		return fmt.Errorf("failed to upsert recipient: %w", err)
	}
	return nil
}

// AddSource inserts an active source and returns its ID.
func (p *Postgres) AddSource(ctx context.Context, s models.Source) (int, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	var id int
	err := p.pool.QueryRow(ctx, `
INSERT INTO sources (agency, name, index_url, active, note)
VALUES ($1, $2, $3, TRUE, NULLIF($4, ''))
RETURNING id
`, s.Agency, s.Name, s.IndexURL, s.Note).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source: %w", err)
	}
	return id, nil
}
