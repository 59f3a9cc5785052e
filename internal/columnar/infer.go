package columnar

import (
	"strings"
	"time"

	"github.com/gerhard-ee/gbqetl/internal/database"
	"github.com/gerhard-ee/gbqetl/internal/schema"
)

var sqlTypes = map[string]string{
	"INT":              "INTEGER",
	"INTEGER":          "INTEGER",
	"BIGINT":           "INTEGER",
	"SMALLINT":         "INTEGER",
	"TINYINT":          "INTEGER",
	"MEDIUMINT":        "INTEGER",
	"INT2":             "INTEGER",
	"INT4":             "INTEGER",
	"INT8":             "INTEGER",
	"SERIAL":           "INTEGER",
	"BIGSERIAL":        "INTEGER",
	"HUGEINT":          "INTEGER",
	"UBIGINT":          "INTEGER",
	"FLOAT":            "FLOAT",
	"FLOAT4":           "FLOAT",
	"FLOAT8":           "FLOAT",
	"REAL":             "FLOAT",
	"DOUBLE":           "FLOAT",
	"DOUBLE PRECISION": "FLOAT",
	"NUMERIC":          "NUMERIC",
	"DECIMAL":          "NUMERIC",
	"MONEY":            "NUMERIC",
	"BOOL":             "BOOLEAN",
	"BOOLEAN":          "BOOLEAN",
	"BIT":              "BOOLEAN",
	"DATE":             "DATE",
	"TIMESTAMP":        "TIMESTAMP",
	"TIMESTAMPTZ":      "TIMESTAMP",
	"DATETIME":         "TIMESTAMP",
	"DATETIME2":        "TIMESTAMP",
	"DATETIMEOFFSET":   "TIMESTAMP",
	"SMALLDATETIME":    "TIMESTAMP",
	"INT64":            "INTEGER",
	"FLOAT64":          "FLOAT",
	"BIGNUMERIC":       "NUMERIC",
	"STRING":           "STRING",
	"BYTES":            "BYTES",
	"BYTEA":            "BYTES",
	"BLOB":             "BYTES",
	"BINARY":           "BYTES",
	"VARBINARY":        "BYTES",
}

// InferSchema derives a warehouse schema from the database column types of
// table. Columns whose type is unknown fall back to the Go type of their
// first non-nil value, then to STRING.
func InferSchema(table *database.Table) schema.Schema {
	out := make(schema.Schema, len(table.Columns))
	for i, col := range table.Columns {
		typ, ok := sqlTypes[baseType(col.Type)]
		if !ok {
			typ = typeFromValues(table, i)
		}

		mode := schema.ModeNullable
		switch {
		case col.Repeated:
			mode = schema.ModeRepeated
		case !col.Nullable:
			mode = schema.ModeRequired
		}
		out[i] = schema.Column{Name: col.Name, Type: typ, Mode: mode}
	}
	return out
}

// "VARCHAR(255)" -> "VARCHAR", "timestamp with time zone" -> "TIMESTAMP"
func baseType(dbType string) string {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	if strings.HasPrefix(t, "TIMESTAMP") {
		return "TIMESTAMP"
	}
	return t
}

func typeFromValues(table *database.Table, col int) string {
	for _, row := range table.Rows {
		switch row[col].(type) {
		case nil:
			continue
		case int, int8, int16, int32, int64, uint8, uint16, uint32, uint64:
			return "INTEGER"
		case float32, float64:
			return "FLOAT"
		case bool:
			return "BOOLEAN"
		case time.Time:
			return "TIMESTAMP"
		default:
			return "STRING"
		}
	}
	return "STRING"
}
