package schema

import (
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
)

var fieldTypes = map[string]bigquery.FieldType{
	"STRING":     bigquery.StringFieldType,
	"BYTES":      bigquery.BytesFieldType,
	"INTEGER":    bigquery.IntegerFieldType,
	"INT64":      bigquery.IntegerFieldType,
	"FLOAT":      bigquery.FloatFieldType,
	"FLOAT64":    bigquery.FloatFieldType,
	"NUMERIC":    bigquery.NumericFieldType,
	"BIGNUMERIC": bigquery.BigNumericFieldType,
	"BOOLEAN":    bigquery.BooleanFieldType,
	"BOOL":       bigquery.BooleanFieldType,
	"TIMESTAMP":  bigquery.TimestampFieldType,
	"DATE":       bigquery.DateFieldType,
	"TIME":       bigquery.TimeFieldType,
	"DATETIME":   bigquery.DateTimeFieldType,
	"GEOGRAPHY":  bigquery.GeographyFieldType,
	"JSON":       bigquery.JSONFieldType,
	"RECORD":     bigquery.RecordFieldType,
	"STRUCT":     bigquery.RecordFieldType,
	"INTERVAL":   bigquery.IntervalFieldType,
}

// FieldType maps a type token to its BigQuery field type. RECORD and STRUCT
// are recognized but a Schema cannot carry their sub-fields.
func FieldType(token string) (bigquery.FieldType, bool) {
	ft, ok := fieldTypes[strings.ToUpper(strings.TrimSpace(token))]
	return ft, ok
}

// BigQuery projects the schema onto BigQuery field schemas
func (s Schema) BigQuery() (bigquery.Schema, error) {
	out := make(bigquery.Schema, 0, len(s))
	for _, col := range s {
		ft, ok := FieldType(col.Type)
		if !ok {
			return nil, newValidationError(col.Name, RuleUnknownType,
				fmt.Sprintf("unknown type %q for column `%s`", col.Type, col.Name))
		}
		if ft == bigquery.RecordFieldType {
			return nil, newValidationError(col.Name, RuleNestedType,
				fmt.Sprintf("column `%s` has nested type %s, which needs sub-fields a column spec cannot declare", col.Name, strings.ToUpper(col.Type)))
		}
		out = append(out, &bigquery.FieldSchema{
			Name:     col.Name,
			Type:     ft,
			Required: col.Mode == ModeRequired,
			Repeated: col.Mode == ModeRepeated,
		})
	}
	return out, nil
}

// FromBigQuery converts the top-level fields of a BigQuery schema
func FromBigQuery(bq bigquery.Schema) Schema {
	out := make(Schema, len(bq))
	for i, field := range bq {
		mode := ModeNullable
		switch {
		case field.Repeated:
			mode = ModeRepeated
		case field.Required:
			mode = ModeRequired
		}
		out[i] = Column{Name: field.Name, Type: string(field.Type), Mode: mode}
	}
	return out
}
