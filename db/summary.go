package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ghtrending/models"
)

// ListProjectsWithoutSummary returns up to limit projects that have no summary yet,
// most starred first.
func (db *DB) ListProjectsWithoutSummary(ctx context.Context, limit int) ([]models.Project, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := db.conn.Rebind(`
		SELECT p.id, p.name, p.full_name, p.description, p.language, p.stars, p.url,
			p.created_at, p.updated_at
		FROM projects p
		LEFT JOIN summaries su ON su.project_id = p.id
		WHERE su.id IS NULL
		ORDER BY p.stars DESC, p.id ASC
		LIMIT ?
	`)

	var projects []models.Project
	if err := db.conn.SelectContext(ctx, &projects, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list projects without summary: %w", err)
	}
	return projects, nil
}

// SaveSummary stores the summary for a project. An existing summary is kept.
func (db *DB) SaveSummary(ctx context.Context, summary *models.Summary) error {
	if summary.ProjectID <= 0 || summary.SummaryText == "" {
		return fmt.Errorf("%w: summary needs a project and text", ErrInvalidInput)
	}

	query := db.conn.Rebind(`
		INSERT INTO summaries (project_id, summary_text, analysis, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (project_id) DO NOTHING
	`)

	if _, err := db.conn.ExecContext(ctx, query,
		summary.ProjectID, summary.SummaryText, summary.Analysis, summary.CreatedAt, summary.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to save summary for project %d: %w", summary.ProjectID, err)
	}
	return nil
}

// GetSummaryByProjectID retrieves the summary attached to a project.
func (db *DB) GetSummaryByProjectID(ctx context.Context, projectID int64) (*models.Summary, error) {
	if projectID <= 0 {
		return nil, fmt.Errorf("%w: project id must be positive", ErrInvalidInput)
	}

	var summary models.Summary
	query := db.conn.Rebind(`
		SELECT id, project_id, summary_text, analysis, created_at, updated_at
		FROM summaries
		WHERE project_id = ?
	`)
	if err := db.conn.GetContext(ctx, &summary, query, projectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: project %d", ErrSummaryNotFound, projectID)
		}
		return nil, fmt.Errorf("failed to get summary for project %d: %w", projectID, err)
	}
	return &summary, nil
}
