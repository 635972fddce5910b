package db

import "fmt"

// Common errors
var (
	ErrProjectNotFound    = fmt.Errorf("project not found")
	ErrSummaryNotFound    = fmt.Errorf("summary not found")
	ErrInvalidInput       = fmt.Errorf("invalid input")
	ErrDatabaseConnection = fmt.Errorf("database connection error")
	ErrUnsupportedDriver  = fmt.Errorf("unsupported database driver")
	ErrMigrationFailed    = fmt.Errorf("migration failed")
)
