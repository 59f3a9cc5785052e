// Package columnar serializes in-memory tables to local Parquet and CSV files
// ready to be appended to a warehouse table.
package columnar

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/gerhard-ee/gbqetl/internal/database"
	"github.com/gerhard-ee/gbqetl/internal/schema"
)

// Compression is a Parquet page compression codec
type Compression string

const (
	CompressionGzip   Compression = "GZIP"
	CompressionSnappy Compression = "SNAPPY"
	CompressionZstd   Compression = "ZSTD"
	CompressionNone   Compression = "NONE"
)

// DefaultCompression is used when no codec is requested
const DefaultCompression = CompressionGzip

var codecs = map[Compression]parquet.CompressionCodec{
	CompressionGzip:   parquet.CompressionCodec_GZIP,
	CompressionSnappy: parquet.CompressionCodec_SNAPPY,
	CompressionZstd:   parquet.CompressionCodec_ZSTD,
	CompressionNone:   parquet.CompressionCodec_UNCOMPRESSED,
}

// ParseCompression validates a codec name; the empty string selects the default
func ParseCompression(name string) (Compression, error) {
	c := Compression(strings.ToUpper(strings.TrimSpace(name)))
	if c == "" {
		return DefaultCompression, nil
	}
	if c == "UNCOMPRESSED" {
		return CompressionNone, nil
	}
	if _, ok := codecs[c]; !ok {
		return "", fmt.Errorf("unsupported compression: %s", name)
	}
	return c, nil
}

const writerParallelism = 4

// WriteParquet writes table to path using a schema inferred from its columns
func WriteParquet(table *database.Table, path string, compression Compression) error {
	return WriteParquetWithSchema(table, InferSchema(table), path, compression)
}

// WriteParquetWithSchema writes table to path, typing each column by the
// matching descriptor of sch
func WriteParquetWithSchema(table *database.Table, sch schema.Schema, path string, compression Compression) error {
	if len(sch) != len(table.Columns) {
		return fmt.Errorf("schema has %d columns, table has %d", len(sch), len(table.Columns))
	}

	codec, ok := codecs[compression]
	if !ok {
		return fmt.Errorf("unsupported compression: %s", compression)
	}

	columns := make([]parquetColumn, len(sch))
	for i, col := range sch {
		pc, err := newParquetColumn(col)
		if err != nil {
			return err
		}
		columns[i] = pc
	}

	schemaJSON, err := parquetSchemaJSON(columns)
	if err != nil {
		return err
	}

	// rows are written to a temp file so a failed export never leaves a
	// truncated file at path
	tmp := path + ".tmp"
	if err := writeParquetFile(table, columns, schemaJSON, tmp, codec); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move parquet file into place: %w", err)
	}
	return nil
}

func writeParquetFile(table *database.Table, columns []parquetColumn, schemaJSON, path string, codec parquet.CompressionCodec) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewJSONWriter(schemaJSON, fw, writerParallelism)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = codec

	for n, row := range table.Rows {
		record := make(map[string]interface{}, len(columns))
		for i, pc := range columns {
			v, err := pc.convert(row[i])
			if err != nil {
				return fmt.Errorf("row %d: %w", n, err)
			}
			record[pc.name] = v
		}

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to encode row %d: %w", n, err)
		}
		if err := pw.Write(string(data)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", n, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet file: %w", err)
	}
	return nil
}

// ReadParquetRowCount returns the number of rows stored in a Parquet file
func ReadParquetRowCount(path string) (int64, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, nil, 1)
	if err != nil {
		return 0, fmt.Errorf("failed to read parquet footer: %w", err)
	}
	defer pr.ReadStop()

	return pr.GetNumRows(), nil
}

type parquetSchemaNode struct {
	Tag    string              `json:"Tag"`
	Fields []parquetSchemaNode `json:"Fields,omitempty"`
}

func parquetSchemaJSON(columns []parquetColumn) (string, error) {
	root := parquetSchemaNode{Tag: "name=parquet_go_root, repetitiontype=REQUIRED"}
	for _, pc := range columns {
		root.Fields = append(root.Fields, parquetSchemaNode{Tag: pc.tag})
	}
	data, err := json.Marshal(root)
	if err != nil {
		return "", fmt.Errorf("failed to encode parquet schema: %w", err)
	}
	return string(data), nil
}
