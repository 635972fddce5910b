package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"ghtrending/models"
)

const projectColumns = `id, name, full_name, description, language, stars, url, created_at, updated_at`

// GetProjectByFullName looks a project up by its natural key.
func (db *DB) GetProjectByFullName(ctx context.Context, fullName string) (*models.Project, error) {
	if fullName == "" {
		return nil, fmt.Errorf("%w: project full name cannot be empty", ErrInvalidInput)
	}

	stmt, err := db.getStmt(ctx, db.conn.Rebind(`
		SELECT `+projectColumns+`
		FROM projects
		WHERE full_name = ?
	`))
	if err != nil {
		return nil, err
	}

	var project models.Project
	if err := stmt.GetContext(ctx, &project, fullName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, fullName)
		}
		return nil, fmt.Errorf("failed to get project %s: %w", fullName, err)
	}

	return &project, nil
}

// GetProjectByID retrieves a project by its surrogate id.
func (db *DB) GetProjectByID(ctx context.Context, id int64) (*models.Project, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: project id must be positive", ErrInvalidInput)
	}

	var project models.Project
	query := db.conn.Rebind(`SELECT ` + projectColumns + ` FROM projects WHERE id = ?`)
	if err := db.conn.GetContext(ctx, &project, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrProjectNotFound, id)
		}
		return nil, fmt.Errorf("failed to get project %d: %w", id, err)
	}

	return &project, nil
}

// CreateProject inserts a new project and returns its id.
// A duplicate full_name is rejected by the unique constraint.
func (db *DB) CreateProject(ctx context.Context, project *models.Project) (int64, error) {
	if project.FullName == "" || project.Name == "" {
		return 0, fmt.Errorf("%w: project name and full name cannot be empty", ErrInvalidInput)
	}
	if project.Stars < 0 {
		return 0, fmt.Errorf("%w: stars cannot be negative", ErrInvalidInput)
	}

	stmt, err := db.getStmt(ctx, db.conn.Rebind(`
		INSERT INTO projects (
			name, full_name, description, language, stars, url, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`))
	if err != nil {
		return 0, err
	}

	var id int64
	if err := stmt.GetContext(ctx, &id,
		project.Name, project.FullName, project.Description, project.Language,
		project.Stars, project.URL, project.CreatedAt, project.UpdatedAt,
	); err != nil {
		return 0, fmt.Errorf("failed to create project %s: %w", project.FullName, err)
	}

	project.ID = id
	db.logger.Debug("Project created", zap.String("full_name", project.FullName), zap.Int64("id", id))
	return id, nil
}

// UpdateProject overwrites the mutable observation fields of an existing project.
func (db *DB) UpdateProject(ctx context.Context, project *models.Project) error {
	if project.ID <= 0 {
		return fmt.Errorf("%w: project id must be positive", ErrInvalidInput)
	}
	if project.Stars < 0 {
		return fmt.Errorf("%w: stars cannot be negative", ErrInvalidInput)
	}

	stmt, err := db.getStmt(ctx, db.conn.Rebind(`
		UPDATE projects
		SET stars = ?, description = ?, updated_at = ?
		WHERE id = ?
	`))
	if err != nil {
		return err
	}

	res, err := stmt.ExecContext(ctx, project.Stars, project.Description, project.UpdatedAt, project.ID)
	if err != nil {
		return fmt.Errorf("failed to update project %s: %w", project.FullName, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: id %d", ErrProjectNotFound, project.ID)
	}

	return nil
}
