package columnar

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/gerhard-ee/gbqetl/internal/database"
)

// WriteCSV writes a header row followed by one record per table row. Loading
// the file therefore needs a skip of one leading row.
func WriteCSV(table *database.Table, path string) error {
	for _, col := range table.Columns {
		if col.Repeated {
			return fmt.Errorf("column %s is REPEATED and cannot be written as CSV", col.Name)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)

	if err := w.Write(table.ColumnNames()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	record := make([]string, len(table.Columns))
	for n, row := range table.Rows {
		for i, val := range row {
			if val == nil {
				record[i] = ""
			} else {
				record[i] = toString(val)
			}
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", n, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return file.Close()
}
