// Package sqlitevault persists encrypted records in a local SQLite file.
// Values are sealed with ChaCha20-Poly1305 before they touch disk; the data
// key is expanded from a root key fetched through a KeySource, never stored
// alongside the data.
package sqlitevault

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"veil/internal/storage"
	"veil/pkg/platform/sentinel"
)

type Provider struct {
	db     *sql.DB
	cipher *cipher
}

// Open opens (and if needed initializes) a SQLite vault at path.
func Open(path string, keys storage.KeySource) (*Provider, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("vault path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite vault: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite vault: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	rootKey, err := keys.RootKey(context.Background())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("fetch root key: %w", err)
	}
	c, err := newCipher(rootKey)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Provider{db: db, cipher: c}, nil
}

func initSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS vault (
    key        TEXT PRIMARY KEY,
    value      BLOB NOT NULL,
    updated_at INTEGER NOT NULL
);`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init vault schema: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (p *Provider) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

func (p *Provider) StoreEncrypted(ctx context.Context, key string, value []byte) error {
	sealed, err := p.cipher.seal(key, value)
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	_, err = p.db.ExecContext(ctx, `
INSERT INTO vault (key, value, updated_at) VALUES (?, ?, unixepoch())
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, sealed)
	if err != nil {
		return fmt.Errorf("store %s: %w", key, err)
	}
	return nil
}

func (p *Provider) RetrieveEncrypted(ctx context.Context, key string) ([]byte, error) {
	var sealed []byte
	err := p.db.QueryRowContext(ctx, `SELECT value FROM vault WHERE key = ?`, key).Scan(&sealed)
	if err == sql.ErrNoRows {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve %s: %w", key, err)
	}
	plain, err := p.cipher.open(key, sealed)
	if err != nil {
		return nil, fmt.Errorf("unseal %s: %w", key, err)
	}
	return plain, nil
}

func (p *Provider) RemoveEncrypted(ctx context.Context, key string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM vault WHERE key = ?`, key); err != nil {
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
	rows, err := p.db.QueryContext(ctx,
		`SELECT key FROM vault WHERE key >= ? AND key < ?`, prefix, prefix+"\xff")
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
