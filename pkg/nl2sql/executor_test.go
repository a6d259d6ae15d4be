package nl2sql

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	stmts := []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER, amount REAL)`,
		`INSERT INTO users (id, name) VALUES (1, 'ada'), (2, 'linus'), (3, 'grace')`,
		`INSERT INTO orders (id, user_id, amount) VALUES (1, 1, 9.5), (2, 1, 20), (3, 2, 5)`,
	}
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}
	return db
}

func TestExecutorSchemaDDL(t *testing.T) {
	ex := NewExecutorWithDB(newTestDB(t), 0)

	ddl, err := ex.SchemaDDL(context.Background())
	require.NoError(t, err)
	assert.Contains(t, ddl, "CREATE TABLE users")
	assert.Contains(t, ddl, "CREATE TABLE orders")
}

func TestExecutorQuery(t *testing.T) {
	ex := NewExecutorWithDB(newTestDB(t), 0)

	cols, rows, truncated, err := ex.Query(context.Background(), "SELECT id, name FROM users ORDER BY id")
	require.NoError(t, err)
	assert.False(t, truncated)
	assert.Equal(t, []string{"id", "name"}, cols)
	require.Len(t, rows, 3)
	assert.Equal(t, "ada", rows[0]["name"])
}

func TestExecutorRowCap(t *testing.T) {
	ex := NewExecutorWithDB(newTestDB(t), 2)

	_, rows, truncated, err := ex.Query(context.Background(), "SELECT id FROM users")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.True(t, truncated)
}

func TestExecutorQueryError(t *testing.T) {
	ex := NewExecutorWithDB(newTestDB(t), 0)

	_, _, _, err := ex.Query(context.Background(), "SELECT * FROM missing")
	require.Error(t, err)
}
