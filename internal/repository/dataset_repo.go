package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/timmy/russtat/internal/domain"
	"gorm.io/gorm"
)

// observationBatchSize bounds the rows per INSERT when replacing observations.
const observationBatchSize = 500

// DatasetRepository handles dataset and observation persistence.
type DatasetRepository struct {
	db *gorm.DB
}

// NewDatasetRepository creates a new DatasetRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *DatasetRepository: repository instance bound to db.
func NewDatasetRepository(db *gorm.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// SaveDataset upserts the dataset header by external ID and replaces its
// observations, all in one transaction.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - ds: parsed dataset.
// Returns:
//   - *domain.DatasetRecord: stored header with its record ID.
//   - error: non-nil if any statement fails; nothing is written then.
func (r *DatasetRepository) SaveDataset(ctx context.Context, ds *domain.Dataset) (*domain.DatasetRecord, error) {
	if ds.ID == "" {
		return nil, fmt.Errorf("dataset without id: %w", domain.ErrInvalidArgument)
	}

	record := domain.NewDatasetRecord(ds)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing domain.DatasetRecord
		err := tx.Select("id", "created_at").Where("external_id = ?", ds.ID).First(&existing).Error
		switch {
		case err == nil:
			record.ID = existing.ID
			record.CreatedAt = existing.CreatedAt
			if err := tx.Where("dataset_id = ?", record.ID).Delete(&domain.ObservationRecord{}).Error; err != nil {
				return fmt.Errorf("delete observations: %w", err)
			}
			if err := tx.Save(record).Error; err != nil {
				return fmt.Errorf("update dataset: %w", err)
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			record.ID = uuid.New().String()
			if err := tx.Create(record).Error; err != nil {
				return fmt.Errorf("create dataset: %w", err)
			}
		default:
			return fmt.Errorf("look up dataset: %w", err)
		}

		rows := domain.NewObservationRecords(record.ID, ds.Observations)
		if len(rows) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(rows, observationBatchSize).Error; err != nil {
			return fmt.Errorf("insert observations: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

// GetByID retrieves a dataset header by record ID or external ID.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - id: record UUID or portal dataset ID.
// Returns:
//   - *domain.DatasetRecord: dataset header if found.
//   - error: wraps domain.ErrNotFound if no dataset matches.
func (r *DatasetRepository) GetByID(ctx context.Context, id string) (*domain.DatasetRecord, error) {
	var record domain.DatasetRecord
	err := r.db.WithContext(ctx).Where("id = ? OR external_id = ?", id, id).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("dataset %q: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListObservations returns the observations of a dataset in insertion order.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - datasetID: record UUID.
//   - limit: maximum rows, 0 for all.
//   - offset: rows to skip.
// Returns:
//   - []domain.ObservationRecord: observation rows.
//   - error: non-nil if the query fails.
func (r *DatasetRepository) ListObservations(ctx context.Context, datasetID string, limit, offset int) ([]domain.ObservationRecord, error) {
	var rows []domain.ObservationRecord
	q := r.db.WithContext(ctx).Where("dataset_id = ?", datasetID).Order("id ASC").Offset(offset)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ExistingTitles returns the full names of all stored datasets.
func (r *DatasetRepository) ExistingTitles(ctx context.Context) (map[string]struct{}, error) {
	var names []string
	if err := r.db.WithContext(ctx).Model(&domain.DatasetRecord{}).Pluck("full_name", &names).Error; err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out, nil
}

// ClassifierRow is the (path, dataset) pair read back for tree building.
type ClassifierRow struct {
	ID             string
	ClassifierPath string
	FullName       string
}

// ClassifierRows returns every stored dataset's classifier path and name,
// ordered by path.
func (r *DatasetRepository) ClassifierRows(ctx context.Context) ([]ClassifierRow, error) {
	var rows []ClassifierRow
	err := r.db.WithContext(ctx).
		Model(&domain.DatasetRecord{}).
		Select("id", "classifier_path", "full_name").
		Order("classifier_path ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns the number of stored datasets.
func (r *DatasetRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.DatasetRecord{}).Count(&count).Error
	return count, err
}
