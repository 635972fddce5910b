package db

import (
	"time"

	"ghtrending/models"
)

// trendingRow is one snapshot joined with its owning project.
type trendingRow struct {
	SnapshotID      int64     `db:"snapshot_id"`
	Rank            *int      `db:"rank"`
	StarsAtSnapshot int       `db:"stars_at_snapshot"`
	Date            time.Time `db:"date"`

	ProjectID   int64     `db:"project_id"`
	Name        string    `db:"name"`
	FullName    string    `db:"full_name"`
	Description string    `db:"description"`
	Language    *string   `db:"language"`
	Stars       int       `db:"stars"`
	URL         string    `db:"url"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r trendingRow) entry() models.TrendingEntry {
	return models.TrendingEntry{
		Rank:            r.Rank,
		StarsAtSnapshot: r.StarsAtSnapshot,
		Date:            r.Date,
		Project: models.Project{
			ID:          r.ProjectID,
			Name:        r.Name,
			FullName:    r.FullName,
			Description: r.Description,
			Language:    r.Language,
			Stars:       r.Stars,
			URL:         r.URL,
			CreatedAt:   r.CreatedAt,
			UpdatedAt:   r.UpdatedAt,
		},
	}
}
