package backend_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cchexcode/qop/pkg/backend"
)

func TestSQLiteAdapter_InitApplyFetch(t *testing.T) {
	ctx := context.Background()
	adapter := backend.SQLite{}

	pool, err := adapter.Connect(ctx, ":memory:", 1)
	require.NoError(t, err)
	defer adapter.Close(pool)

	tx, err := adapter.Begin(ctx, pool)
	require.NoError(t, err)
	require.NoError(t, adapter.InitLedger(ctx, tx, "", "__qop"))
	require.NoError(t, adapter.Commit(ctx, tx))

	tx, err = adapter.Begin(ctx, pool)
	require.NoError(t, err)
	require.NoError(t, adapter.ExecSQL(ctx, tx, "CREATE TABLE t (x INTEGER)"))
	comment := "first"
	require.NoError(t, adapter.InsertLedgerRow(ctx, tx, "", "__qop", backend.LedgerRow{
		ID: "1000", Version: "dev", Up: "CREATE TABLE t (x INTEGER)", Down: "DROP TABLE t",
		Comment: &comment,
	}))
	require.NoError(t, adapter.InsertLogRow(ctx, tx, "", "__qop", backend.LogRow{
		ID: "log1", MigrationID: "1000", Operation: "up", SQLCommand: "CREATE TABLE t (x INTEGER)",
	}))
	require.NoError(t, adapter.Commit(ctx, tx))

	ids, err := adapter.FetchAppliedIDs(ctx, pool, "", "__qop")
	require.NoError(t, err)
	assert.Equal(t, []string{"1000"}, ids)

	down, ok, err := adapter.FetchDownSQL(ctx, pool, "", "__qop", "1000")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "DROP TABLE t", down)

	locked, err := adapter.IsLocked(ctx, pool, "", "__qop", "1000")
	require.NoError(t, err)
	assert.False(t, locked)

	hist, err := adapter.FetchHistory(ctx, pool, "", "__qop")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "1000", hist[0].ID)
	require.NotNil(t, hist[0].Comment)
	assert.Equal(t, "first", *hist[0].Comment)
}

func TestSQLiteAdapter_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	adapter := backend.SQLite{}

	pool, err := adapter.Connect(ctx, ":memory:", 1)
	require.NoError(t, err)
	defer adapter.Close(pool)

	tx, err := adapter.Begin(ctx, pool)
	require.NoError(t, err)
	require.NoError(t, adapter.InitLedger(ctx, tx, "", "__qop"))
	require.NoError(t, adapter.Commit(ctx, tx))

	tx, err = adapter.Begin(ctx, pool)
	require.NoError(t, err)
	err = adapter.ExecSQL(ctx, tx, "NOT VALID SQL")
	assert.Error(t, err)
	require.NoError(t, adapter.Rollback(ctx, tx))

	ids, err := adapter.FetchAppliedIDs(ctx, pool, "", "__qop")
	require.NoError(t, err)
	assert.Empty(t, ids)
}
