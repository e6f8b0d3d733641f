package migrations

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

type recordingExecer struct {
	statements []string
}

func (e *recordingExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	e.statements = append(e.statements, sql)
	return pgconn.CommandTag{}, nil
}

func TestApplyRunsEveryMigration(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	require.Equal(t, []string{"0001_receiving.up.sql"}, names)

	db := &recordingExecer{}
	require.NoError(t, Apply(context.Background(), db))
	require.Len(t, db.statements, 1)
	for _, table := range []string{"goods_received_notes", "grn_line_items", "inventory_balances", "idempotency_keys", "audit_logs"} {
		require.True(t, strings.Contains(db.statements[0], "CREATE TABLE IF NOT EXISTS "+table), table)
	}
}
