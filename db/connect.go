package db

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"

	"datalens/models"
)

// ErrUnsupportedBackend is returned when the request names a database kind
// outside the supported set.
var ErrUnsupportedBackend = errors.New("unsupported database type")

// Open opens a connection for exactly one request. The caller owns the
// returned handle and must close it before the request finishes, on every
// exit path.
func Open(cfg models.ConnectionConfig) (*sql.DB, error) {
	driver, dsn, err := BuildDSN(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", cfg.Kind, err)
	}

	// One request, one connection. No pooling across requests.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return conn, nil
}

// BuildDSN maps a ConnectionConfig onto a registered database/sql driver
// name and its connection string.
func BuildDSN(cfg models.ConnectionConfig) (driver string, dsn string, err error) {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	switch cfg.Kind {
	case models.KindMySQL:
		port := cfg.Port
		if port == 0 {
			port = 3306
		}
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			cfg.Username, cfg.Password, host, port, cfg.Database)
		return "mysql", dsn, nil

	case models.KindPostgres:
		port := cfg.Port
		if port == 0 {
			port = 5432
		}
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(cfg.Username, cfg.Password),
			Host:   fmt.Sprintf("%s:%d", host, port),
			Path:   "/" + cfg.Database,
		}
		return "pgx", u.String(), nil

	case models.KindSQLite:
		// The database field carries the file path.
		return "sqlite3", cfg.Database, nil

	case models.KindSQLServer:
		port := cfg.Port
		if port == 0 {
			port = 1433
		}
		dsn = fmt.Sprintf("server=%s;port=%d;database=%s", host, port, cfg.Database)
		if cfg.Username != "" {
			dsn += fmt.Sprintf(";user id=%s;password=%s", cfg.Username, cfg.Password)
		} else {
			dsn += ";trusted_connection=true"
		}
		return "sqlserver", dsn, nil

	case models.KindDuckDB:
		return "duckdb", cfg.Database, nil

	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedBackend, cfg.Kind)
	}
}
