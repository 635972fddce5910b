package db

import (
	"context"
	"fmt"
	"time"

	"ghtrending/models"
)

const trendingSelect = `
	SELECT
		s.id AS snapshot_id, s.rank, s.stars_at_snapshot, s.date,
		p.id AS project_id, p.name, p.full_name, p.description, p.language,
		p.stars, p.url, p.created_at, p.updated_at
	FROM trending_snapshots s
	JOIN projects p ON p.id = s.project_id
`

// InsertSnapshot appends one observation row. Snapshots are never updated.
func (db *DB) InsertSnapshot(ctx context.Context, snapshot *models.TrendingSnapshot) (int64, error) {
	if snapshot.ProjectID <= 0 {
		return 0, fmt.Errorf("%w: snapshot must reference a project", ErrInvalidInput)
	}
	if snapshot.Date.IsZero() {
		return 0, fmt.Errorf("%w: snapshot date cannot be zero", ErrInvalidInput)
	}

	stmt, err := db.getStmt(ctx, db.conn.Rebind(`
		INSERT INTO trending_snapshots (date, project_id, stars_at_snapshot, rank, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`))
	if err != nil {
		return 0, err
	}

	var id int64
	if err := stmt.GetContext(ctx, &id,
		snapshot.Date, snapshot.ProjectID, snapshot.StarsAtSnapshot, snapshot.Rank, snapshot.CreatedAt,
	); err != nil {
		return 0, fmt.Errorf("failed to insert snapshot for project %d: %w", snapshot.ProjectID, err)
	}

	snapshot.ID = id
	return id, nil
}

// ListTrending returns snapshots newest batch first, then by rank within a batch.
// The language filter is a case-insensitive exact match on the project language.
func (db *DB) ListTrending(ctx context.Context, q models.TrendingQuery) ([]models.TrendingEntry, error) {
	q = models.NewTrendingQuery(q.Language, q.Limit)

	query := trendingSelect
	args := []interface{}{}
	if q.Language != "" {
		query += ` WHERE LOWER(p.language) = LOWER(?)`
		args = append(args, q.Language)
	}
	query += ` ORDER BY s.date DESC, s.rank ASC, s.id ASC LIMIT ?`
	args = append(args, q.Limit)

	var rows []trendingRow
	if err := db.conn.SelectContext(ctx, &rows, db.conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list trending snapshots: %w", err)
	}

	entries := make([]models.TrendingEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.entry())
	}
	return entries, nil
}

// ListProjectHistory returns the rank and star trajectory of one project, newest first.
func (db *DB) ListProjectHistory(ctx context.Context, projectID int64, limit int) ([]models.TrendingSnapshot, error) {
	if projectID <= 0 {
		return nil, fmt.Errorf("%w: project id must be positive", ErrInvalidInput)
	}
	limit = models.NewTrendingQuery("", limit).Limit

	query := db.conn.Rebind(`
		SELECT id, date, project_id, stars_at_snapshot, rank, created_at
		FROM trending_snapshots
		WHERE project_id = ?
		ORDER BY date DESC, id DESC
		LIMIT ?
	`)

	var snapshots []models.TrendingSnapshot
	if err := db.conn.SelectContext(ctx, &snapshots, query, projectID, limit); err != nil {
		return nil, fmt.Errorf("failed to list history for project %d: %w", projectID, err)
	}
	return snapshots, nil
}

// HasSnapshotBatch reports whether any snapshot was taken at exactly date.
func (db *DB) HasSnapshotBatch(ctx context.Context, date time.Time) (bool, error) {
	if date.IsZero() {
		return false, fmt.Errorf("%w: date cannot be zero", ErrInvalidInput)
	}

	var exists bool
	query := db.conn.Rebind(`SELECT EXISTS (SELECT 1 FROM trending_snapshots WHERE date = ?)`)
	if err := db.conn.GetContext(ctx, &exists, query, date); err != nil {
		return false, fmt.Errorf("failed to check snapshot batch: %w", err)
	}
	return exists, nil
}
