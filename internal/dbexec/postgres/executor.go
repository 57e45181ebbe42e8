package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sqlscout/sqlscout/internal/dbexec"
)

type Config struct {
	RowLimit         int
	StatementTimeout time.Duration
}

// Executor runs queries against a shared Postgres pool, checking out a
// dedicated connection per attempt and returning it on every path.
type Executor struct {
	db  *sql.DB
	cfg Config
}

func NewExecutor(db *sql.DB, cfg Config) *Executor {
	return &Executor{db: db, cfg: cfg}
}

func (e *Executor) Execute(ctx context.Context, sqlText string) (dbexec.Result, error) {
	if e.db == nil {
		return dbexec.Result{}, fmt.Errorf("database handle is required")
	}

	wrapped, err := dbexec.WrapWithRowLimit(sqlText, e.cfg.RowLimit)
	if err != nil {
		return dbexec.Result{}, err
	}

	if e.cfg.StatementTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.StatementTimeout)
		defer cancel()
	}

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return dbexec.Result{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	rows, err := conn.QueryContext(ctx, wrapped)
	if err != nil {
		return dbexec.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return dbexec.CollectRows(rows)
}
