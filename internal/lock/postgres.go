package lock

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/aggindex/internal/core/partition"
)

const (
	queryAdvisoryLock = `
		SELECT pg_advisory_lock($1)
	`

	queryAdvisoryUnlock = `
		SELECT pg_advisory_unlock($1)
	`
)

// postgresBackend takes session-level advisory locks, so every lease pins
// one pooled connection until it is released.
type postgresBackend struct {
	db *sql.DB
}

// NewPostgres returns a Locker shared by every process using db.
func NewPostgres(db *sql.DB, acquireTimeout time.Duration) *Locker {
	return &Locker{backend: &postgresBackend{db: db}, acquireTimeout: acquireTimeout}
}

func (b *postgresBackend) name() string { return "postgres" }

func (b *postgresBackend) lock(ctx context.Context, key string) (func(context.Context) error, error) {
	conn, err := b.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	id := partition.LockID(key)
	if _, err := conn.ExecContext(ctx, queryAdvisoryLock, id); err != nil {
		conn.Close()
		return nil, err
	}

	return func(ctx context.Context) error {
		defer conn.Close()
		var released bool
		if err := conn.QueryRowContext(ctx, queryAdvisoryUnlock, id).Scan(&released); err != nil {
			return fmt.Errorf("failed to unlock: %w", err)
		}
		if !released {
			slog.Warn("[Lock] Advisory lock was not held on release", "key", key, "lock_id", id)
		}
		return nil
	}, nil
}
