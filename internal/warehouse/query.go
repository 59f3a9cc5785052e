package warehouse

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/gerhard-ee/gbqetl/internal/database"
)

// QueryToTable runs query in BigQuery and loads the whole result into memory
func (c *Client) QueryToTable(ctx context.Context, query string) (*database.Table, error) {
	if query == "" {
		return nil, fmt.Errorf("query string not specified")
	}

	it, err := c.bq.Query(query).Read(ctx)
	if err != nil {
		return nil, remoteError("query", err)
	}

	var rows [][]bigquery.Value
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, remoteError("read query results", err)
		}
		rows = append(rows, row)
	}

	return tableFromResults(it.Schema, rows)
}

// tableFromResults keeps repeated columns as slices. RECORD columns are
// rejected since an exported table has no way to describe their sub-fields.
func tableFromResults(sch bigquery.Schema, rows [][]bigquery.Value) (*database.Table, error) {
	table := &database.Table{Columns: make([]database.Column, len(sch))}
	for i, field := range sch {
		if field.Type == bigquery.RecordFieldType || len(field.Schema) > 0 {
			return nil, fmt.Errorf("query result column %s is a RECORD; select its fields individually", field.Name)
		}
		table.Columns[i] = database.Column{
			Name:     field.Name,
			Type:     string(field.Type),
			Nullable: !field.Required && !field.Repeated,
			Repeated: field.Repeated,
		}
	}

	table.Rows = make([][]interface{}, len(rows))
	for i, row := range rows {
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		table.Rows[i] = values
	}
	return table, nil
}
