package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationFilesArePaired(t *testing.T) {
	ups, err := fs.Glob(MigrationFiles, "*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		_, err := fs.Stat(MigrationFiles, down)
		require.NoError(t, err, "missing down migration for %s", up)
	}
}

func TestCacheTableMigration(t *testing.T) {
	body, err := fs.ReadFile(MigrationFiles, "000001_create_aggregate_cache.up.sql")
	require.NoError(t, err)
	sql := string(body)
	require.Contains(t, sql, "CREATE TABLE IF NOT EXISTS aggregate_cache")
	require.Contains(t, sql, "payload    BYTEA NOT NULL")
	require.Contains(t, sql, "ON aggregate_cache (updated_at, key)")
}
