package tx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE events (name TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func count(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&n))
	return n
}

func TestRun_Commits(t *testing.T) {
	db := openDB(t)

	err := Run(context.Background(), db, func(ctx context.Context) error {
		sqlTx, ok := From(ctx)
		require.True(t, ok)
		_, err := sqlTx.ExecContext(ctx, `INSERT INTO events (name) VALUES ('registered')`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count(t, db))
}

func TestRun_RollsBackOnError(t *testing.T) {
	db := openDB(t)
	boom := errors.New("boom")

	err := Run(context.Background(), db, func(ctx context.Context) error {
		sqlTx, _ := From(ctx)
		_, err := sqlTx.ExecContext(ctx, `INSERT INTO events (name) VALUES ('lost')`)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, count(t, db))
}

func TestRun_RollsBackOnPanic(t *testing.T) {
	db := openDB(t)

	assert.Panics(t, func() {
		_ = Run(context.Background(), db, func(ctx context.Context) error {
			sqlTx, _ := From(ctx)
			_, _ = sqlTx.ExecContext(ctx, `INSERT INTO events (name) VALUES ('lost')`)
			panic("handler exploded")
		})
	})
	assert.Equal(t, 0, count(t, db))
}

func TestRun_NestedJoinsOuterTransaction(t *testing.T) {
	db := openDB(t)

	err := Run(context.Background(), db, func(ctx context.Context) error {
		outer, _ := From(ctx)
		return Run(ctx, db, func(ctx context.Context) error {
			inner, ok := From(ctx)
			require.True(t, ok)
			assert.Same(t, outer, inner)
			_, err := inner.ExecContext(ctx, `INSERT INTO events (name) VALUES ('nested')`)
			return err
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count(t, db))
}

func TestWithTx_NilLeavesContextUntouched(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithTx(ctx, nil))
	_, ok := From(ctx)
	assert.False(t, ok)
}
