package columnar

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/gerhard-ee/gbqetl/internal/schema"
)

type kind int

const (
	kindString kind = iota
	kindBytes
	kindInt
	kindFloat
	kindBool
	kindTimestamp
	kindDate
)

// parquetColumn carries the Parquet tag and value conversion for one column
type parquetColumn struct {
	name     string
	tag      string
	kind     kind
	repeated bool
	required bool
}

func newParquetColumn(col schema.Column) (parquetColumn, error) {
	if strings.ContainsAny(col.Name, ",=") {
		return parquetColumn{}, fmt.Errorf("column name %q cannot be stored in parquet", col.Name)
	}

	var k kind
	var physical string
	switch strings.ToUpper(col.Type) {
	case "INTEGER", "INT64":
		k, physical = kindInt, "type=INT64"
	case "FLOAT", "FLOAT64":
		k, physical = kindFloat, "type=DOUBLE"
	case "BOOLEAN", "BOOL":
		k, physical = kindBool, "type=BOOLEAN"
	case "TIMESTAMP", "DATETIME":
		k, physical = kindTimestamp, "type=INT64, convertedtype=TIMESTAMP_MICROS"
	case "DATE":
		k, physical = kindDate, "type=INT32, convertedtype=DATE"
	case "BYTES":
		k, physical = kindBytes, "type=BYTE_ARRAY"
	default:
		k, physical = kindString, "type=BYTE_ARRAY, convertedtype=UTF8"
	}

	repetition := "OPTIONAL"
	switch col.Mode {
	case schema.ModeRequired:
		repetition = "REQUIRED"
	case schema.ModeRepeated:
		repetition = "REPEATED"
	}

	return parquetColumn{
		name:     col.Name,
		tag:      fmt.Sprintf("name=%s, %s, repetitiontype=%s", col.Name, physical, repetition),
		kind:     k,
		repeated: col.Mode == schema.ModeRepeated,
		required: col.Mode == schema.ModeRequired,
	}, nil
}

func (c parquetColumn) convert(v interface{}) (interface{}, error) {
	if v == nil {
		if c.required {
			return nil, fmt.Errorf("column %s is REQUIRED but value is null", c.name)
		}
		if c.repeated {
			return []interface{}{}, nil
		}
		return nil, nil
	}

	if !c.repeated {
		return c.convertScalar(v)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, fmt.Errorf("column %s is REPEATED but value is %T", c.name, v)
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		item, err := c.convertScalar(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out[i] = item
	}
	return out, nil
}

func (c parquetColumn) convertScalar(v interface{}) (interface{}, error) {
	switch c.kind {
	case kindInt:
		return toInt64(c.name, v)
	case kindFloat:
		return toFloat64(c.name, v)
	case kindBool:
		return toBool(c.name, v)
	case kindTimestamp:
		t, err := toTime(c.name, v)
		if err != nil {
			return nil, err
		}
		return t.UnixMicro(), nil
	case kindDate:
		t, err := toTime(c.name, v)
		if err != nil {
			return nil, err
		}
		y, m, d := t.Date()
		return int32(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400), nil
	default:
		return toString(v), nil
	}
}

func toString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case *big.Rat:
		return x.FloatString(9)
	default:
		return fmt.Sprint(x)
	}
}

func toInt64(name string, v interface{}) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint:
		return uintToInt64(name, uint64(x))
	case uint64:
		return uintToInt64(name, x)
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("column %s: cannot convert %q to INTEGER", name, x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("column %s: cannot convert %T to INTEGER", name, v)
	}
}

func uintToInt64(name string, x uint64) (int64, error) {
	if x > math.MaxInt64 {
		return 0, fmt.Errorf("column %s: value %d overflows INTEGER", name, x)
	}
	return int64(x), nil
}

func toFloat64(name string, v interface{}) (float64, error) {
	switch x := v.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("column %s: cannot convert %q to FLOAT", name, x)
		}
		return f, nil
	default:
		n, err := toInt64(name, v)
		if err != nil {
			return 0, fmt.Errorf("column %s: cannot convert %T to FLOAT", name, v)
		}
		return float64(n), nil
	}
}

func toBool(name string, v interface{}) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, fmt.Errorf("column %s: cannot convert %q to BOOLEAN", name, x)
		}
		return b, nil
	default:
		n, err := toInt64(name, v)
		if err != nil {
			return false, fmt.Errorf("column %s: cannot convert %T to BOOLEAN", name, v)
		}
		return n != 0, nil
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

func toTime(name string, v interface{}) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("column %s: cannot parse %q as a timestamp", name, x)
	case fmt.Stringer:
		// civil.Date and civil.DateTime from warehouse query results
		return toTime(name, x.String())
	default:
		return time.Time{}, fmt.Errorf("column %s: cannot convert %T to a timestamp", name, v)
	}
}
