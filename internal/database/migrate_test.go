package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMigrationNames(t *testing.T) {
	names, err := migrationNames("postgres")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_sources.sql", "002_platform_stats.sql", "003_reports_cache.sql"}, names)

	_, err = migrationNames("mysql")
	assert.Error(t, err)
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("CREATE TABLE a (x INT);\n\n  CREATE INDEX i ON a (x) ;\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a (x)"}, stmts)
}

func TestApplyMigrations(t *testing.T) {
	var executed []string
	err := applyMigrations(context.Background(), "clickhouse", zap.NewNop(), func(ctx context.Context, stmt string) error {
		executed = append(executed, stmt)
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, executed)
	assert.True(t, strings.Contains(executed[0], "interval_snapshots"))

	err = applyMigrations(context.Background(), "postgres", zap.NewNop(), func(ctx context.Context, stmt string) error {
		return errors.New("permission denied")
	})
	assert.ErrorContains(t, err, "001_sources.sql")
}

func TestClickHouseSnapshotsCollapseRetries(t *testing.T) {
	var ddl string
	err := applyMigrations(context.Background(), "clickhouse", zap.NewNop(), func(ctx context.Context, stmt string) error {
		if strings.Contains(stmt, "CREATE TABLE") && strings.Contains(stmt, "interval_snapshots") {
			ddl = stmt
		}
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, ddl)
	assert.Contains(t, ddl, "ReplacingMergeTree(inserted_at)")
}
