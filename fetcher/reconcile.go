package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"ghtrending/db"
	"ghtrending/models"
)

// Store defines the storage operations needed by the reconciler
type Store interface {
	GetProjectByFullName(ctx context.Context, fullName string) (*models.Project, error)
	CreateProject(ctx context.Context, project *models.Project) (int64, error)
	UpdateProject(ctx context.Context, project *models.Project) error
	InsertSnapshot(ctx context.Context, snapshot *models.TrendingSnapshot) (int64, error)
}

// Reconciler maps candidate records onto projects and appends one snapshot per record.
// It assumes no other reconciliation runs concurrently; the unique full_name
// constraint in storage is the only guard against duplicate projects.
type Reconciler struct {
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

type ReconcilerOption func(*Reconciler)

// WithClock replaces time.Now as the source of the batch timestamp.
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

func NewReconciler(store Store, logger *zap.Logger, opts ...ReconcilerOption) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reconciler{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SaveBatch persists records in order under one shared timestamp and returns how
// many snapshots were written. The first storage failure aborts the batch; rows
// already written stay committed and the partial count is returned with the error.
func (r *Reconciler) SaveBatch(ctx context.Context, records []models.CandidateRecord) (int, error) {
	now := r.now().UTC()
	saved := 0

	for _, record := range records {
		project, err := r.upsertProject(ctx, record, now)
		if err != nil {
			r.logger.Error("Failed to reconcile project",
				zap.Error(err),
				zap.String("full_name", record.FullName),
				zap.Int("saved", saved))
			return saved, err
		}

		snapshot := &models.TrendingSnapshot{
			Date:            now,
			ProjectID:       project.ID,
			StarsAtSnapshot: record.Stars,
			Rank:            models.IntPtr(record.Rank),
			CreatedAt:       now,
		}
		if _, err := r.store.InsertSnapshot(ctx, snapshot); err != nil {
			r.logger.Error("Failed to store snapshot",
				zap.Error(err),
				zap.String("full_name", record.FullName),
				zap.Int("saved", saved))
			return saved, fmt.Errorf("failed to store snapshot for %s: %w", record.FullName, err)
		}
		saved++
	}

	r.logger.Info("Saved trending batch",
		zap.Int("saved", saved),
		zap.Time("date", now))
	return saved, nil
}

func (r *Reconciler) upsertProject(ctx context.Context, record models.CandidateRecord, now time.Time) (*models.Project, error) {
	existing, err := r.store.GetProjectByFullName(ctx, record.FullName)
	switch {
	case err == nil:
		existing.Stars = record.Stars
		existing.Description = record.Description
		existing.UpdatedAt = now
		if err := r.store.UpdateProject(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to update project %s: %w", record.FullName, err)
		}
		return existing, nil

	case errors.Is(err, db.ErrProjectNotFound):
		project := &models.Project{
			Name:        record.Name,
			FullName:    record.FullName,
			Description: record.Description,
			Language:    record.Language,
			Stars:       record.Stars,
			URL:         record.URL,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		id, err := r.store.CreateProject(ctx, project)
		if err != nil {
			return nil, fmt.Errorf("failed to create project %s: %w", record.FullName, err)
		}
		project.ID = id
		return project, nil

	default:
		return nil, fmt.Errorf("failed to look up project %s: %w", record.FullName, err)
	}
}
