package db

import (
	"embed"
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFiles embed.FS

// Migrate applies all pending schema migrations for the active backend.
func (db *DB) Migrate() error {
	src, err := iofs.New(migrationFiles, "migrations/"+db.driver)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	target, err := migrateURL(db.driver, db.url)
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, target)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	version, dirty, _ := m.Version()
	db.logger.Info("Database schema up to date",
		zap.String("driver", db.driver),
		zap.Uint("version", version),
		zap.Bool("dirty", dirty))
	return nil
}

// migrateURL rewrites the configured url into the form golang-migrate registers its drivers under.
func migrateURL(driver, raw string) (string, error) {
	switch driver {
	case DriverPostgres:
		return raw, nil
	case DriverSQLite:
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("%w: malformed database url", ErrInvalidInput)
		}
		u.Scheme = "sqlite"
		return u.String(), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
}
