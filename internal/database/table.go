package database

import (
	"context"
	"fmt"
)

// Column represents a result set column
type Column struct {
	Name     string
	Type     string
	Nullable bool
	// Repeated columns hold a slice of Type values per row
	Repeated bool
}

// Table is a fully materialized result set
type Table struct {
	Columns []Column
	Rows    [][]interface{}
}

// ColumnNames returns the column names in result order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// NumRows returns the number of rows in the table
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// QueryToTable runs query and loads the entire result set into memory
func (e *Engine) QueryToTable(ctx context.Context, query string, args ...interface{}) (*Table, error) {
	e.logf("%s %v", query, args)

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}

	table := &Table{Columns: make([]Column, len(types))}
	for i, ct := range types {
		nullable, ok := ct.Nullable()
		table.Columns[i] = Column{
			Name:     ct.Name(),
			Type:     ct.DatabaseTypeName(),
			Nullable: nullable || !ok,
		}
	}

	for rows.Next() {
		values := make([]interface{}, len(types))
		valuePtrs := make([]interface{}, len(types))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		table.Rows = append(table.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return table, nil
}
