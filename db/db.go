package db

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Supported storage backends, selected by the DATABASE_URL scheme.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds connection settings for New.
type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DB represents a database connection
type DB struct {
	conn   *sqlx.DB
	driver string
	url    string
	logger *zap.Logger
	// Prepared statements cache
	stmtCache struct {
		sync.RWMutex
		statements map[string]*sqlx.Stmt
	}
}

// New opens the storage handle described by cfg.URL.
// The handle is meant to be opened once by the process entry point and closed on shutdown.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	driver, dsn, err := parseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	logger.Info("Connecting to database", zap.String("driver", driver))
	conn, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDatabaseConnection, err)
	}

	maxOpenConns := cfg.MaxOpenConns
	if maxOpenConns <= 0 {
		maxOpenConns = 25
	}
	maxIdleConns := cfg.MaxIdleConns
	if maxIdleConns <= 0 {
		maxIdleConns = 25
	}
	connMaxLifetime := cfg.ConnMaxLifetime
	if connMaxLifetime <= 0 {
		connMaxLifetime = 5 * time.Minute
	}
	// sqlite allows a single writer
	if driver == DriverSQLite {
		maxOpenConns = 1
		maxIdleConns = 1
	}

	conn.SetMaxOpenConns(maxOpenConns)
	conn.SetMaxIdleConns(maxIdleConns)
	conn.SetConnMaxLifetime(connMaxLifetime)

	database := newDB(conn, driver, logger)
	database.url = cfg.URL

	logger.Info("Database connection established",
		zap.String("driver", driver),
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns),
		zap.Duration("conn_max_lifetime", connMaxLifetime))
	return database, nil
}

func newDB(conn *sqlx.DB, driver string, logger *zap.Logger) *DB {
	if logger == nil {
		logger = zap.NewNop()
	}
	database := &DB{
		conn:   conn,
		driver: driver,
		logger: logger,
	}
	database.stmtCache.statements = make(map[string]*sqlx.Stmt)
	return database
}

// parseURL maps a DATABASE_URL onto a registered sql driver name and its DSN.
func parseURL(raw string) (driver, dsn string, err error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "", "", fmt.Errorf("%w: malformed database url", ErrInvalidInput)
	}

	switch u.Scheme {
	case "postgres", "postgresql":
		return DriverPostgres, raw, nil
	case "sqlite", "sqlite3":
		path := strings.TrimPrefix(raw, u.Scheme+"://")
		if path == "" {
			return "", "", fmt.Errorf("%w: sqlite url without a path", ErrInvalidInput)
		}
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return DriverSQLite, path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnsupportedDriver, u.Scheme)
	}
}

// Driver returns the backend in use.
func (db *DB) Driver() string {
	return db.driver
}

// getStmt returns a prepared statement from cache or creates a new one
func (db *DB) getStmt(ctx context.Context, query string) (*sqlx.Stmt, error) {
	db.stmtCache.RLock()
	stmt, exists := db.stmtCache.statements[query]
	db.stmtCache.RUnlock()

	if exists {
		return stmt, nil
	}

	db.stmtCache.Lock()
	defer db.stmtCache.Unlock()

	// Double-check after acquiring write lock
	if stmt, exists = db.stmtCache.statements[query]; exists {
		return stmt, nil
	}

	stmt, err := db.conn.PreparexContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	db.stmtCache.statements[query] = stmt
	return stmt, nil
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseConnection, err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	// Close all prepared statements
	db.stmtCache.Lock()
	for _, stmt := range db.stmtCache.statements {
		stmt.Close()
	}
	db.stmtCache.statements = make(map[string]*sqlx.Stmt)
	db.stmtCache.Unlock()

	// Close the database connection
	return db.conn.Close()
}
