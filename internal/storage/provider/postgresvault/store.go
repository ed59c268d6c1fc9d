// Package postgresvault persists vault records in PostgreSQL, for
// deployments that centralize local-engine state in an existing database.
package postgresvault

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"veil/pkg/platform/sentinel"
)

type Provider struct {
	db *sql.DB
}

// Open connects to PostgreSQL and ensures the vault table exists.
func Open(dsn string) (*Provider, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres vault: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres vault: %w", err)
	}
	const schema = `
CREATE TABLE IF NOT EXISTS vault (
    key        TEXT PRIMARY KEY,
    value      BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init vault schema: %w", err)
	}
	return &Provider{db: db}, nil
}

// New wraps an existing database handle. The table must already exist.
func New(db *sql.DB) *Provider {
	return &Provider{db: db}
}

// Close closes the underlying database handle.
func (p *Provider) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Provider) StoreEncrypted(ctx context.Context, key string, value []byte) error {
	_, err := p.db.ExecContext(ctx, `
INSERT INTO vault (key, value, updated_at) VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

func (p *Provider) RetrieveEncrypted(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.db.QueryRowContext(ctx, `SELECT value FROM vault WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve %s: %w", key, err)
	}
	return value, nil
}

func (p *Provider) RemoveEncrypted(ctx context.Context, key string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM vault WHERE key = $1`, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (p *Provider) ClearAllEncrypted(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM vault`); err != nil {
		return fmt.Errorf("clear vault: %w", err)
	}
	return nil
}

func (p *Provider) Keys(ctx context.Context, prefix string) ([]string, error) {
	// left() instead of LIKE: bucket prefixes contain underscores, which
	// LIKE would treat as wildcards.
	rows, err := p.db.QueryContext(ctx,
		`SELECT key FROM vault WHERE left(key, length($1)) = $1`, prefix)
	if err != nil {
		return nil, fmt.Errorf("list keys %s*: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
