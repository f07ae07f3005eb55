package service

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/timmy/russtat/internal/domain"
	"github.com/timmy/russtat/internal/logger"
	"github.com/timmy/russtat/internal/repository"
)

// Loader persists parsed datasets. Its OnDataset method is a ResultFunc.
type Loader struct {
	datasets *repository.DatasetRepository
	logger   *logger.Logger

	saved  atomic.Int64
	failed atomic.Int64
	empty  atomic.Int64
}

// LoaderStats counts what a Loader received.
type LoaderStats struct {
	Saved  int64
	Failed int64 // persistence errors
	Empty  int64 // nil outcomes from failed jobs
}

// NewLoader creates a loader writing through repo.
func NewLoader(repo *repository.DatasetRepository, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.GetDefault()
	}
	return &Loader{datasets: repo, logger: log}
}

// OnDataset stores ds in its own transaction. A nil ds marks a failed job and
// is only counted.
func (l *Loader) OnDataset(ctx context.Context, ds *domain.Dataset) {
	log := logger.FromContext(ctx)
	if ds == nil {
		l.empty.Add(1)
		log.Debug("No dataset to load")
		return
	}

	start := time.Now()
	record, err := l.datasets.SaveDataset(ctx, ds)
	if err != nil {
		l.failed.Add(1)
		log.WithField(logger.FieldDataset, ds.ID).WithError(err).Error("Failed to save dataset")
		return
	}
	l.saved.Add(1)

	logger.With(logger.Fields{
		logger.FieldDataset: ds.ID,
		"record_id":         record.ID,
		logger.FieldCount:   record.ObservationCount,
	}).WithDuration(time.Since(start).Milliseconds()).Info(ctx, "Dataset saved")
}

// Stats returns a snapshot of the loader counters.
func (l *Loader) Stats() LoaderStats {
	return LoaderStats{
		Saved:  l.saved.Load(),
		Failed: l.failed.Load(),
		Empty:  l.empty.Load(),
	}
}
