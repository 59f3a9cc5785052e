package database

import (
	"context"
	"fmt"
	"os"
	"testing"
)

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Runs against a live server only when TEST_DB_HOST is set
func TestPostgresEngine(t *testing.T) {
	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("TEST_DB_HOST not set, skipping PostgreSQL integration test")
	}

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		getEnvOrDefault("TEST_DB_USER", "postgres"),
		getEnvOrDefault("TEST_DB_PASSWORD", "postgres"),
		getEnvOrDefault("TEST_DB_HOST", "localhost"),
		getEnvOrDefault("TEST_DB_PORT", "5432"),
		getEnvOrDefault("TEST_DB_NAME", "postgres"),
	)

	for _, scheme := range []string{"postgres", "pgx"} {
		t.Run(scheme, func(t *testing.T) {
			conn := scheme + dsn[len("postgres"):]
			engine, err := NewEngine(context.Background(), conn, Options{Echo: true})
			if err != nil {
				t.Fatalf("Failed to connect: %v", err)
			}
			defer engine.Close()

			table, err := engine.QueryToTable(context.Background(), "SELECT generate_series(1, 3) AS n")
			if err != nil {
				t.Fatalf("QueryToTable() error = %v", err)
			}
			if table.NumRows() != 3 {
				t.Errorf("NumRows() = %d, want 3", table.NumRows())
			}
		})
	}
}
