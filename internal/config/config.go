package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Commands understood by the CLI
const (
	CommandListDatasets  = "list-datasets"
	CommandListTables    = "list-tables"
	CommandCreateDataset = "create-dataset"
	CommandCreateTable   = "create-table"
	CommandDescribeTable = "describe-table"
	CommandExport        = "export"
	CommandLoad          = "load"
	CommandJobStatus     = "job-status"
)

// Commands returns every supported command in display order
func Commands() []string {
	return []string{
		CommandListDatasets,
		CommandListTables,
		CommandCreateDataset,
		CommandCreateTable,
		CommandDescribeTable,
		CommandExport,
		CommandLoad,
		CommandJobStatus,
	}
}

// Config represents the run configuration
type Config struct {
	Command string `yaml:"command"`

	// BigQuery
	ProjectID       string `yaml:"project"`
	CredentialsFile string `yaml:"credentials"`
	Location        string `yaml:"location"`
	Endpoint        string `yaml:"endpoint"`

	// Source database
	DSN   string `yaml:"dsn"`
	Query string `yaml:"query"`
	Echo  bool   `yaml:"echo"`

	// Export
	Output      string `yaml:"output"`
	Format      string `yaml:"format"`
	Compression string `yaml:"compression"`

	// Datasets and tables
	Dataset    string `yaml:"dataset"`
	Table      string `yaml:"table"`
	SchemaFile string `yaml:"schema_file"`

	// Load
	Input       string `yaml:"input"`
	Destination string `yaml:"destination"`
	AutoDetect  bool   `yaml:"autodetect"`
	SkipRows    int64  `yaml:"skip_rows"`

	// Job tracking
	JobID     string `yaml:"job_id"`
	Wait      bool   `yaml:"wait"`
	StateType string `yaml:"state_type"`
	StateDir  string `yaml:"state_dir"`
	Namespace string `yaml:"namespace"`
}

// Default returns the configuration used when neither flags nor a file set a value
func Default() Config {
	return Config{
		AutoDetect: true,
		SkipRows:   1,
		StateType:  "file",
		StateDir:   ".gbqetl",
		Namespace:  "default",
	}
}

// LoadFile reads a YAML configuration file over the defaults
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks that the flags required by the selected command are set
func (c Config) Validate() error {
	var missing []string
	require := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	switch c.Command {
	case "":
		return fmt.Errorf("command is required, one of: %s", strings.Join(Commands(), ", "))
	case CommandListDatasets, CommandListTables:
	case CommandCreateDataset:
		require("dataset", c.Dataset)
	case CommandCreateTable:
		require("dataset", c.Dataset)
		require("table", c.Table)
		require("schema-file", c.SchemaFile)
	case CommandDescribeTable:
		require("dataset", c.Dataset)
		require("table", c.Table)
	case CommandExport:
		require("dsn", c.DSN)
		require("query", c.Query)
		require("output", c.Output)
		if c.Format != "" && c.Format != "parquet" && c.Format != "csv" {
			return fmt.Errorf("unsupported export format: %s", c.Format)
		}
	case CommandLoad:
		require("input", c.Input)
		require("destination", c.Destination)
		if c.SkipRows < 0 {
			return fmt.Errorf("skip-rows must not be negative")
		}
	case CommandJobStatus:
		require("job-id", c.JobID)
	default:
		return fmt.Errorf("unsupported command: %s", c.Command)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required flags for %s: %s", c.Command, strings.Join(missing, ", "))
	}

	switch c.StateType {
	case "", "memory", "file", "kubernetes":
	default:
		return fmt.Errorf("unsupported state type: %s", c.StateType)
	}
	return nil
}

// WarehouseDSN selects BigQuery itself as the export source
const WarehouseDSN = "bigquery://"

// NeedsWarehouse reports whether the command talks to BigQuery
func (c Config) NeedsWarehouse() bool {
	return c.Command != CommandExport || c.DSN == WarehouseDSN
}
