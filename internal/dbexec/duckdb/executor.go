package duckdb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/sqlscout/sqlscout/internal/dbexec"
)

// Executor runs queries against an in-process DuckDB database. Intended for
// dev deployments that have no warehouse to point the agent at.
type Executor struct {
	db       *sql.DB
	rowLimit int
}

func Open(path string, rowLimit int) (*Executor, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	return &Executor{db: db, rowLimit: rowLimit}, nil
}

func (e *Executor) Close() error {
	return e.db.Close()
}

// DB exposes the underlying handle so schema reflection can share it.
func (e *Executor) DB() *sql.DB {
	return e.db
}

func (e *Executor) Execute(ctx context.Context, sqlText string) (dbexec.Result, error) {
	wrapped, err := dbexec.WrapWithRowLimit(sqlText, e.rowLimit)
	if err != nil {
		return dbexec.Result{}, err
	}

	rows, err := e.db.QueryContext(ctx, wrapped)
	if err != nil {
		return dbexec.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return dbexec.CollectRows(rows)
}
