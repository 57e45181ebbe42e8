// Package dbexec runs approved SELECT statements against a live database.
// Connections are acquired per attempt and never held across the approval
// suspension.
package dbexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type Result struct {
	Columns []string
	Rows    [][]any
}

type Executor interface {
	Execute(ctx context.Context, sqlText string) (Result, error)
}

// FormatText renders the result set as plain text for the rendering model.
func (r Result) FormatText() string {
	var b strings.Builder
	b.WriteString(strings.Join(r.Columns, " | "))
	b.WriteString("\n")
	for _, row := range r.Rows {
		cells := make([]string, len(row))
		for i, value := range row {
			if value == nil {
				cells[i] = "NULL"
				continue
			}
			cells[i] = fmt.Sprint(value)
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "(%d rows)", len(r.Rows))
	return b.String()
}

func WrapWithRowLimit(sqlText string, rowLimit int) (string, error) {
	trimmed := stripTrailingSemicolons(sqlText)
	if trimmed == "" {
		return "", fmt.Errorf("sql is required")
	}
	if rowLimit > 0 {
		return fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", trimmed, rowLimit), nil
	}
	return trimmed, nil
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}

func CollectRows(rows *sql.Rows) (Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return Result{Columns: columns, Rows: resultRows}, nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}
