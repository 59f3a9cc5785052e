package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gbqetl.yaml")
	content := `command: load
project: my-project
credentials: /secrets/sa.json
input: tweets.parquet
destination: raw.tweets
skip_rows: 0
state_type: memory
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Command != CommandLoad || cfg.ProjectID != "my-project" || cfg.CredentialsFile != "/secrets/sa.json" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if cfg.SkipRows != 0 || cfg.StateType != "memory" {
		t.Errorf("file values did not override defaults: %+v", cfg)
	}
	// untouched keys keep their defaults
	if cfg.Location != "" || !cfg.AutoDetect || cfg.Namespace != "default" {
		t.Errorf("defaults lost: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg != Default() {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFile(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}

	unknown := filepath.Join(dir, "unknown.yaml")
	if err := os.WriteFile(unknown, []byte("bucket: x\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	if _, err := LoadFile(unknown); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing command",
			cfg:     Config{},
			wantErr: "command is required",
		},
		{
			name:    "unknown command",
			cfg:     Config{Command: "drop-table"},
			wantErr: "unsupported command",
		},
		{
			name: "list datasets needs nothing else",
			cfg:  Config{Command: CommandListDatasets},
		},
		{
			name:    "create table without schema",
			cfg:     Config{Command: CommandCreateTable, Dataset: "raw", Table: "tweets"},
			wantErr: "schema-file",
		},
		{
			name: "export",
			cfg:  Config{Command: CommandExport, DSN: "sqlite://data.db", Query: "select 1", Output: "out.parquet"},
		},
		{
			name:    "export bad format",
			cfg:     Config{Command: CommandExport, DSN: "sqlite://data.db", Query: "select 1", Output: "out.xlsx", Format: "xlsx"},
			wantErr: "unsupported export format",
		},
		{
			name:    "load missing destination",
			cfg:     Config{Command: CommandLoad, Input: "tweets.csv"},
			wantErr: "destination",
		},
		{
			name:    "load negative skip rows",
			cfg:     Config{Command: CommandLoad, Input: "tweets.csv", Destination: "raw.tweets", SkipRows: -1},
			wantErr: "skip-rows",
		},
		{
			name:    "job status without id",
			cfg:     Config{Command: CommandJobStatus},
			wantErr: "job-id",
		},
		{
			name:    "bad state type",
			cfg:     Config{Command: CommandJobStatus, JobID: "job", StateType: "redis"},
			wantErr: "unsupported state type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNeedsWarehouse(t *testing.T) {
	if (Config{Command: CommandExport, DSN: "sqlite://x.db"}).NeedsWarehouse() {
		t.Error("export from a database should not need the warehouse")
	}
	if !(Config{Command: CommandExport, DSN: "bigquery://"}).NeedsWarehouse() {
		t.Error("export from bigquery needs the warehouse")
	}
	if !(Config{Command: CommandLoad}).NeedsWarehouse() {
		t.Error("load needs the warehouse")
	}
}
