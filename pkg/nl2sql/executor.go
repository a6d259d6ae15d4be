package nl2sql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

const defaultMaxRows = 100

// Executor runs validated queries against a SQLite database with a row cap.
type Executor struct {
	db      *sql.DB
	maxRows int
}

// NewExecutor opens the SQLite database at path. maxRows <= 0 means
// defaultMaxRows.
func NewExecutor(path string, maxRows int) (*Executor, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	return &Executor{db: db, maxRows: maxRows}, nil
}

// NewExecutorWithDB wraps an already-open database. Useful for tests and for
// sharing a pool.
func NewExecutorWithDB(db *sql.DB, maxRows int) *Executor {
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	return &Executor{db: db, maxRows: maxRows}
}

// Close releases the underlying database handle.
func (e *Executor) Close() error { return e.db.Close() }

// SchemaDDL returns the CREATE statements of all user tables, used to ground
// the model prompt in the actual schema.
func (e *Executor) SchemaDDL(ctx context.Context) (string, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return "", fmt.Errorf("read schema: %w", err)
	}
	defer rows.Close()

	var ddl []string
	for rows.Next() {
		var stmt sql.NullString
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("scan schema: %w", err)
		}
		if stmt.Valid {
			ddl = append(ddl, stmt.String+";")
		}
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("read schema: %w", err)
	}
	return strings.Join(ddl, "\n"), nil
}

// Query runs stmt and returns the result columns plus at most maxRows rows as
// column-name maps. Truncated reports whether the row cap cut the result
// short.
func (e *Executor) Query(ctx context.Context, stmt string) (cols []string, rows []map[string]any, truncated bool, err error) {
	dbRows, err := e.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, nil, false, fmt.Errorf("execute query: %w", err)
	}
	defer dbRows.Close()

	cols, err = dbRows.Columns()
	if err != nil {
		return nil, nil, false, fmt.Errorf("read columns: %w", err)
	}

	for dbRows.Next() {
		if len(rows) >= e.maxRows {
			truncated = true
			break
		}

		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := dbRows.Scan(ptrs...); err != nil {
			return nil, nil, false, fmt.Errorf("scan row: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			row[col] = v
		}
		rows = append(rows, row)
	}
	if err := dbRows.Err(); err != nil {
		return nil, nil, false, fmt.Errorf("iterate rows: %w", err)
	}

	return cols, rows, truncated, nil
}
