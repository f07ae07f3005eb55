package repository

import (
	"context"

	"github.com/timmy/russtat/internal/domain"
	"gorm.io/gorm"
)

// RunRepository records fetch runs.
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run.
func (r *RunRepository) Create(ctx context.Context, run *domain.FetchRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Update saves the counters and status of a run.
func (r *RunRepository) Update(ctx context.Context, run *domain.FetchRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// ListRecent returns the latest runs, newest first.
func (r *RunRepository) ListRecent(ctx context.Context, limit int) ([]domain.FetchRun, error) {
	var runs []domain.FetchRun
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
