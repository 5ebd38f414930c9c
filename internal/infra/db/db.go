package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"meli-inventory-sync/internal/config"
)

// DB wraps sql.DB with the driver name so schema and queries can branch on
// dialect.
type DB struct {
	*sql.DB
	driver string
}

func Open(cfg config.DatabaseConfig, mysqlCfg config.MysqlConfig) (*DB, error) {
	switch cfg.Driver {
	case config.DriverMysql:
		conn, err := openMysql(mysqlCfg)
		if err != nil {
			return nil, err
		}
		return &DB{DB: conn, driver: cfg.Driver}, nil
	case config.DriverSqlite, "":
		return OpenSqlite(cfg.Path)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}
}

// OpenSqlite opens (creating if needed) a SQLite database file. ":memory:"
// is accepted for tests.
func OpenSqlite(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("db: sqlite path is empty")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("db: create dir %s: %w", dir, err)
			}
		}
	}
	conn, err := sql.Open(config.DriverSqlite, path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open %w", err)
	}
	// One writer at a time; also keeps a :memory: database alive on one connection.
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sqlite: ping %w", err)
	}
	return &DB{DB: conn, driver: config.DriverSqlite}, nil
}

func (db *DB) Driver() string {
	return db.driver
}

// Migrate creates the tables if they do not exist.
func (db *DB) Migrate(ctx context.Context) error {
	statements := sqliteSchema
	if db.driver == config.DriverMysql {
		statements = mysqlSchema
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("db: migrate: %w", err)
		}
	}
	return nil
}
