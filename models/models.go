// Package models defines the core data structures used throughout the application.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidTimeWindow is returned for a time window outside daily/weekly/monthly.
	ErrInvalidTimeWindow = errors.New("invalid time window")
	// ErrCycleInProgress is returned when a scrape cycle is requested while another runs.
	ErrCycleInProgress = errors.New("a scrape cycle is already running")
)

// TimeWindow selects the period a trending listing covers.
type TimeWindow string

const (
	Daily   TimeWindow = "daily"
	Weekly  TimeWindow = "weekly"
	Monthly TimeWindow = "monthly"
)

// ParseTimeWindow accepts daily, weekly or monthly (case-insensitive).
// An empty value means daily.
func ParseTimeWindow(s string) (TimeWindow, error) {
	switch w := TimeWindow(strings.ToLower(strings.TrimSpace(s))); w {
	case "":
		return Daily, nil
	case Daily, Weekly, Monthly:
		return w, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTimeWindow, s)
	}
}

// Project is the canonical, deduplicated identity of a repository.
// FullName ("owner/repo") is the natural key.
type Project struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	FullName    string    `db:"full_name" json:"full_name"`
	Description string    `db:"description" json:"description"`
	Language    *string   `db:"language" json:"language"`
	Stars       int       `db:"stars" json:"stars"`
	URL         string    `db:"url" json:"url"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TrendingSnapshot is an append-only observation of a project's position in a listing.
type TrendingSnapshot struct {
	ID              int64     `db:"id" json:"id"`
	Date            time.Time `db:"date" json:"date"`
	ProjectID       int64     `db:"project_id" json:"project_id"`
	StarsAtSnapshot int       `db:"stars_at_snapshot" json:"stars_at_snapshot"`
	Rank            *int      `db:"rank" json:"rank"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// CandidateRecord is one row extracted from a listing document and not yet persisted.
type CandidateRecord struct {
	Rank        int
	Name        string
	FullName    string
	Owner       string
	Description string
	Language    *string
	Stars       int
	URL         string
}

// TrendingEntry is the read model returned to presentation consumers.
type TrendingEntry struct {
	Rank            *int      `json:"rank"`
	Project         Project   `json:"project"`
	StarsAtSnapshot int       `json:"stars_at_snapshot"`
	Date            time.Time `json:"date"`
}

// Summary is generated text attached to a project.
type Summary struct {
	ID          int64     `db:"id" json:"id"`
	ProjectID   int64     `db:"project_id" json:"project_id"`
	SummaryText string    `db:"summary_text" json:"summary_text"`
	Analysis    string    `db:"analysis" json:"analysis"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

const (
	DefaultTrendingLimit = 30
	MaxTrendingLimit     = 100
)

// TrendingQuery filters and bounds a trending read.
type TrendingQuery struct {
	Language string
	Limit    int
}

// NewTrendingQuery creates a TrendingQuery with a validated limit.
// A limit below 1 becomes DefaultTrendingLimit; anything above MaxTrendingLimit is capped.
func NewTrendingQuery(language string, limit int) TrendingQuery {
	if limit < 1 {
		limit = DefaultTrendingLimit
	}
	if limit > MaxTrendingLimit {
		limit = MaxTrendingLimit
	}
	return TrendingQuery{
		Language: strings.TrimSpace(language),
		Limit:    limit,
	}
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
