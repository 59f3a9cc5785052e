package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/gerhard-ee/gbqetl/internal/database"
)

var (
	dsn   = flag.String("dsn", "sqlite://test.db", "Connection string of the database to seed")
	table = flag.String("table", "test_table", "Name of the table to create")
	rows  = flag.Int("rows", 2, "Number of rows to insert")
)

// seed creates name and fills it with n sample rows
func seed(ctx context.Context, engine *database.Engine, name string, n int) error {
	_, err := engine.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE %s (
			id INTEGER NOT NULL,
			name VARCHAR(64) NOT NULL,
			score DOUBLE PRECISION,
			created_at TIMESTAMP
		)
	`, name))
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	for i := 1; i <= n; i++ {
		_, err := engine.Exec(ctx,
			fmt.Sprintf("INSERT INTO %s (id, name, score, created_at) VALUES (%d, 'test%d', %d.5, CURRENT_TIMESTAMP)", name, i, i, i))
		if err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}
	return nil
}

func main() {
	flag.Parse()
	ctx := context.Background()

	engine, err := database.NewEngine(ctx, *dsn, database.Options{})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer engine.Close()

	if err := seed(ctx, engine, *table, *rows); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	fmt.Printf("Test table %s created successfully with %d rows\n", *table, *rows)
}
