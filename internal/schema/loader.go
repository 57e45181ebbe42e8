package schema

import (
	"context"
	"database/sql"
	"fmt"
)

const columnsQuery = `
SELECT c.table_name,
       c.column_name,
       c.data_type,
       c.is_nullable = 'YES' AS is_nullable,
       COALESCE(d.description, '') AS column_comment,
       COALESCE(pk.is_primary_key, FALSE) AS is_primary_key
FROM information_schema.columns c
LEFT JOIN pg_catalog.pg_statio_all_tables st
       ON st.schemaname = c.table_schema AND st.relname = c.table_name
LEFT JOIN pg_catalog.pg_description d
       ON d.objoid = st.relid AND d.objsubid = c.ordinal_position
LEFT JOIN (
    SELECT kcu.table_schema, kcu.table_name, kcu.column_name, TRUE AS is_primary_key
    FROM information_schema.table_constraints tc
    JOIN information_schema.key_column_usage kcu
      ON kcu.constraint_name = tc.constraint_name
     AND kcu.table_schema = tc.table_schema
    WHERE tc.constraint_type = 'PRIMARY KEY'
) pk ON pk.table_schema = c.table_schema
    AND pk.table_name = c.table_name
    AND pk.column_name = c.column_name
WHERE c.table_schema = $1
ORDER BY c.table_name ASC, c.ordinal_position ASC`

// duckdbColumnsQuery reflects the same shape from DuckDB, which lacks the
// pg_catalog comment and constraint tables.
const duckdbColumnsQuery = `
SELECT c.table_name,
       c.column_name,
       c.data_type,
       c.is_nullable = 'YES' AS is_nullable,
       '' AS column_comment,
       FALSE AS is_primary_key
FROM information_schema.columns c
WHERE c.table_schema = $1
ORDER BY c.table_name ASC, c.ordinal_position ASC`

type Loader struct {
	db           *sql.DB
	databaseName string
	schemas      []string
	query        string
}

func NewLoader(db *sql.DB, databaseName string, schemas []string) *Loader {
	return &Loader{db: db, databaseName: databaseName, schemas: schemas, query: columnsQuery}
}

// NewDuckDBLoader reflects schemas from an in-process DuckDB database used
// in dev deployments.
func NewDuckDBLoader(db *sql.DB, databaseName string, schemas []string) *Loader {
	return &Loader{db: db, databaseName: databaseName, schemas: schemas, query: duckdbColumnsQuery}
}

// Load reflects every configured schema into an immutable Dictionary.
func (l *Loader) Load(ctx context.Context) (*Dictionary, error) {
	if l.db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if len(l.schemas) == 0 {
		return nil, fmt.Errorf("at least one schema is required")
	}

	dictionary := &Dictionary{DatabaseName: l.databaseName}
	for _, schemaName := range l.schemas {
		loaded, err := l.loadSchema(ctx, schemaName)
		if err != nil {
			return nil, fmt.Errorf("load schema %q: %w", schemaName, err)
		}
		dictionary.Schemas = append(dictionary.Schemas, loaded)
	}
	return dictionary, nil
}

func (l *Loader) loadSchema(ctx context.Context, schemaName string) (Schema, error) {
	rows, err := l.db.QueryContext(ctx, l.query, schemaName)
	if err != nil {
		return Schema{}, fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	loaded := Schema{Name: schemaName}
	var current *Table
	for rows.Next() {
		var (
			tableName string
			column    Column
		)
		if err := rows.Scan(&tableName, &column.Name, &column.DataType, &column.Nullable, &column.Comment, &column.IsPrimaryKey); err != nil {
			return Schema{}, fmt.Errorf("scan column row: %w", err)
		}
		if current == nil || current.Name != tableName {
			loaded.Tables = append(loaded.Tables, Table{Name: tableName})
			current = &loaded.Tables[len(loaded.Tables)-1]
		}
		current.Columns = append(current.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return Schema{}, fmt.Errorf("iterate column rows: %w", err)
	}
	return loaded, nil
}
