package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func setupSQLite(t *testing.T) *SQL {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "store.db")
	s, err := OpenSQL(context.Background(), SQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite(t *testing.T) {
	testStore(t, setupSQLite(t))
}

func TestSQLite_Reopen(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "store.db")

	s1, err := OpenSQL(ctx, SQLite, dsn)
	require.NoError(t, err)
	gen, err := s1.Write(ctx, "registry/manifest.json", []byte("{}"), Absent)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := OpenSQL(ctx, SQLite, dsn)
	require.NoError(t, err)
	defer s2.Close()

	_, got, err := s2.Read(ctx, "registry/manifest.json")
	require.NoError(t, err)
	assert.Equal(t, gen, got)
}

func TestOpenSQL_EmptyDSN(t *testing.T) {
	_, err := OpenSQL(context.Background(), SQLite, "")
	assert.Error(t, err)
}

func TestNewSQL_Invalid(t *testing.T) {
	_, err := NewSQL(context.Background(), nil, SQLite)
	assert.ErrorIs(t, err, errDBNotInitialized)

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	defer db.Close()
	_, err = NewSQL(context.Background(), db, Dialect("oracle"))
	assert.Error(t, err)
}

func TestSQL_NilDB(t *testing.T) {
	s := &SQL{dialect: SQLite}
	ctx := context.Background()

	_, err := s.Exists(ctx, "k")
	assert.ErrorIs(t, err, errDBNotInitialized)
	_, _, err = s.Read(ctx, "k")
	assert.ErrorIs(t, err, errDBNotInitialized)
	_, err = s.Write(ctx, "k", nil, Unconditional)
	assert.ErrorIs(t, err, errDBNotInitialized)
	assert.NoError(t, s.Close())
}

func TestRebind(t *testing.T) {
	pg := &SQL{dialect: Postgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &SQL{dialect: SQLite}
	assert.Equal(t, "SELECT ?", lite.rebind("SELECT ?"))
}

func TestPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("pwgate"),
		postgres.WithUsername("pwgate"),
		postgres.WithPassword("pwgate"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := OpenSQL(ctx, Postgres, dsn)
	require.NoError(t, err)
	defer s.Close()

	testStore(t, s)
}
