package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gerhard-ee/gbqetl/internal/database"
)

func TestSeed(t *testing.T) {
	ctx := context.Background()
	engine, err := database.NewEngine(ctx, "sqlite://"+filepath.Join(t.TempDir(), "seed.db"), database.Options{})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	defer engine.Close()

	if err := seed(ctx, engine, "test_table", 5); err != nil {
		t.Fatalf("seed() error = %v", err)
	}

	table, err := engine.QueryToTable(ctx, "SELECT id, name, score FROM test_table ORDER BY id")
	if err != nil {
		t.Fatalf("QueryToTable() error = %v", err)
	}
	if table.NumRows() != 5 {
		t.Errorf("Expected 5 rows, got %d", table.NumRows())
	}
	if table.Rows[0][1] != "test1" {
		t.Errorf("Expected first name test1, got %v", table.Rows[0][1])
	}

	if err := seed(ctx, engine, "test_table", 1); err == nil {
		t.Error("Expected error seeding an existing table")
	}
}
