package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// PostgresTable is created by the migrations package.
const PostgresTable = "aggregate_cache"

const (
	querySelectEntry = `
		SELECT payload
		FROM aggregate_cache
		WHERE key = $1
	`

	queryUpsertEntry = `
		INSERT INTO aggregate_cache (key, payload, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key)
		DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`

	queryDeleteEntry = `
		DELETE FROM aggregate_cache
		WHERE key = $1
	`

	queryPendingKeys = `
		SELECT key
		FROM aggregate_cache
		ORDER BY updated_at, key
		LIMIT $1
	`
)

// Postgres keeps pending aggregates in the aggregate_cache table so they
// survive restarts and are visible to every indexer process.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Retrieve(ctx context.Context, key string) (*Entry, error) {
	var payload []byte
	err := p.db.QueryRowContext(ctx, querySelectEntry, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}
	entry, err := decodeEntry(payload)
	if err != nil {
		return nil, fmt.Errorf("cache entry %s: %w", key, err)
	}
	return entry, nil
}

func (p *Postgres) Store(ctx context.Context, key string, entry *Entry) error {
	payload, err := encodeEntry(entry)
	if err != nil {
		return fmt.Errorf("cache entry %s: %w", key, err)
	}
	if _, err := p.db.ExecContext(ctx, queryUpsertEntry, key, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to store cache entry %s: %w", key, err)
	}
	slog.Debug("[AggregateCache] Stored", "key", key, "bytes", len(payload))
	return nil
}

func (p *Postgres) Remove(ctx context.Context, key string) error {
	if _, err := p.db.ExecContext(ctx, queryDeleteEntry, key); err != nil {
		return fmt.Errorf("failed to remove cache entry %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Keys(ctx context.Context, limit int) ([]string, error) {
	var lim interface{}
	if limit > 0 {
		lim = limit
	}
	rows, err := p.db.QueryContext(ctx, queryPendingKeys, lim)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan cache key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cache key iteration error: %w", err)
	}
	return keys, nil
}
