package database

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/snowflakedb/gosnowflake"
)

// Target is a resolved database/sql driver name and data source name
type Target struct {
	Driver string
	DSN    string
}

type resolver func(u *url.URL, raw string) (Target, error)

var resolvers = map[string]resolver{
	"postgres":   resolvePostgres,
	"postgresql": resolvePostgres,
	"pgx":        resolvePgx,
	"mysql":      resolveMySQL,
	"sqlserver":  resolveSQLServer,
	"mssql":      resolveSQLServer,
	"snowflake":  resolveSnowflake,
	"databricks": resolveDatabricks,
	"sqlite":     resolveSQLite,
}

// Drivers returns the connection string schemes supported by this build
func Drivers() []string {
	schemes := make([]string, 0, len(resolvers))
	for scheme := range resolvers {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	return schemes
}

// ParseConnectionString resolves a URL-style connection string into the
// driver and DSN expected by the registered database/sql driver
func ParseConnectionString(connectionString string) (Target, error) {
	scheme, _, ok := strings.Cut(connectionString, "://")
	if !ok || scheme == "" {
		return Target{}, fmt.Errorf("invalid connection string: missing scheme (expected e.g. postgres://...)")
	}
	scheme = strings.ToLower(scheme)

	resolve, ok := resolvers[scheme]
	if !ok {
		return Target{}, fmt.Errorf("unsupported database type: %s", scheme)
	}

	u, err := url.Parse(connectionString)
	if err != nil {
		// sqlite and duckdb paths are not always valid URLs; their resolvers only use raw
		u = nil
	}
	target, err := resolve(u, connectionString)
	if err != nil {
		return Target{}, fmt.Errorf("invalid %s connection string: %w", scheme, err)
	}
	return target, nil
}

func requireURL(u *url.URL) error {
	if u == nil {
		return fmt.Errorf("malformed URL")
	}
	return nil
}

func stripScheme(raw string) string {
	_, rest, _ := strings.Cut(raw, "://")
	return rest
}

func resolvePostgres(u *url.URL, raw string) (Target, error) {
	if err := requireURL(u); err != nil {
		return Target{}, err
	}
	return Target{Driver: "postgres", DSN: raw}, nil
}

func resolvePgx(u *url.URL, raw string) (Target, error) {
	if err := requireURL(u); err != nil {
		return Target{}, err
	}
	return Target{Driver: "pgx", DSN: "postgres://" + stripScheme(raw)}, nil
}

func resolveMySQL(u *url.URL, raw string) (Target, error) {
	if err := requireURL(u); err != nil {
		return Target{}, err
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" && u.Host != "" {
		cfg.Addr = net.JoinHostPort(u.Hostname(), "3306")
	}
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true

	query := u.Query()
	if len(query) > 0 {
		cfg.Params = make(map[string]string, len(query))
		for key := range query {
			cfg.Params[key] = query.Get(key)
		}
	}

	return Target{Driver: "mysql", DSN: cfg.FormatDSN()}, nil
}

func resolveSQLServer(u *url.URL, raw string) (Target, error) {
	if err := requireURL(u); err != nil {
		return Target{}, err
	}
	return Target{Driver: "sqlserver", DSN: "sqlserver://" + stripScheme(raw)}, nil
}

func resolveSnowflake(u *url.URL, raw string) (Target, error) {
	dsn := stripScheme(raw)
	if _, err := gosnowflake.ParseDSN(dsn); err != nil {
		return Target{}, err
	}
	return Target{Driver: "snowflake", DSN: dsn}, nil
}

func resolveDatabricks(u *url.URL, raw string) (Target, error) {
	if err := requireURL(u); err != nil {
		return Target{}, err
	}
	if u.Host == "" {
		return Target{}, fmt.Errorf("missing workspace host")
	}
	return Target{Driver: "databricks", DSN: stripScheme(raw)}, nil
}

// sqlite://relative.db, sqlite:///abs/path.db or sqlite:// for in-memory
func resolveSQLite(u *url.URL, raw string) (Target, error) {
	path := stripScheme(raw)
	if path == "" || path == ":memory:" {
		return Target{Driver: "sqlite", DSN: ":memory:"}, nil
	}
	return Target{Driver: "sqlite", DSN: path}, nil
}
