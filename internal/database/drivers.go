package database

// database/sql drivers reachable through NewEngine
import (
	_ "github.com/databricks/databricks-sql-go"
	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)
