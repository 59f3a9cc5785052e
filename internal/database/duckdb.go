//go:build cgo
// +build cgo

package database

import (
	"net/url"

	_ "github.com/marcboeker/go-duckdb"
)

func init() {
	resolvers["duckdb"] = resolveDuckDB
}

// duckdb:///abs/path.duckdb, duckdb://relative.duckdb or duckdb:// for in-memory
func resolveDuckDB(u *url.URL, raw string) (Target, error) {
	return Target{Driver: "duckdb", DSN: stripScheme(raw)}, nil
}
