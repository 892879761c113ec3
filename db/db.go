package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"useradmin/config"
	"useradmin/logger"
)

//go:embed migrations/*/*.sql
var migrations embed.FS

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// goose keeps its dialect, filesystem and logger in package globals.
var migrateMu sync.Mutex

// Open connects to the database identified by driver and dsn and verifies the
// connection. SQLite files get their parent directory created on demand.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	switch driver {
	case config.DriverSQLite:
		return openSQLite(ctx, dsn)
	case config.DriverMySQL:
		return openMySQL(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func openSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	if !strings.HasPrefix(dsn, "file:") && !strings.Contains(dsn, ":memory:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	if strings.ContainsRune(dsn, '?') {
		dsn += "&"
	} else {
		dsn += "?"
	}
	dsn += "_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"

	handle, err := sql.Open(config.DriverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if err := handle.PingContext(ctx); err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}
	// one writer at a time; requests queue on the pool instead of hitting SQLITE_BUSY
	handle.SetMaxOpenConns(1)
	return handle, nil
}

func openMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL DSN: %w", err)
	}
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["charset"]; !ok {
		cfg.Params["charset"] = "utf8mb4"
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create MySQL connector: %w", err)
	}
	handle := sql.OpenDB(connector)
	if err := handle.PingContext(ctx); err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to ping MySQL database: %w", err)
	}
	handle.SetConnMaxLifetime(3 * time.Minute)
	return handle, nil
}

// Migrate applies every pending migration for driver.
func Migrate(ctx context.Context, handle *sql.DB, driver string, log zerolog.Logger) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetLogger(logger.GooseLogger{Log: log.With().Str("component", "migrate").Logger()})
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(driver); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, handle, "migrations/"+driver); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a unique constraint failure from
// either supported driver.
func IsUniqueViolation(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry
	}
	return false
}
