package repository

import (
	"context"
	"fmt"

	"github.com/chemviz/equipment-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// recordBatchSize bounds the rows per INSERT statement when bulk-creating records
const recordBatchSize = 500

// DatasetRepository handles datasets and their equipment records.
// Every read and delete is scoped to the owning user.
type DatasetRepository struct {
	db *gorm.DB
}

func NewDatasetRepository(db *gorm.DB) *DatasetRepository {
	return &DatasetRepository{db: db}
}

// CreateWithRetention inserts the dataset and its records, then evicts the owner's
// oldest datasets beyond retentionCap. All of it commits or rolls back together.
// The owner's user row is locked for the duration on PostgreSQL so concurrent
// uploads by the same user apply retention one at a time.
// Returns the evicted datasets.
func (r *DatasetRepository) CreateWithRetention(ctx context.Context, dataset *domain.Dataset, records []domain.EquipmentRecord, retentionCap int) ([]domain.Dataset, error) {
	var evicted []domain.Dataset

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, dataset.UserID); err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Create(dataset).Error; err != nil {
			return fmt.Errorf("failed to create dataset: %w", err)
		}

		if len(records) > 0 {
			for i := range records {
				records[i].DatasetID = dataset.ID
			}
			if err := tx.CreateInBatches(records, recordBatchSize).Error; err != nil {
				return fmt.Errorf("failed to create equipment records: %w", err)
			}
		}

		var err error
		evicted, err = enforceRetention(tx, dataset.UserID, retentionCap)
		return err
	})
	if err != nil {
		return nil, err
	}

	return evicted, nil
}

// EnforceRetention applies the retention cap to one user in its own transaction
func (r *DatasetRepository) EnforceRetention(ctx context.Context, userID uint, retentionCap int) ([]domain.Dataset, error) {
	var evicted []domain.Dataset

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, userID); err != nil {
			return err
		}
		var err error
		evicted, err = enforceRetention(tx, userID, retentionCap)
		return err
	})
	if err != nil {
		return nil, err
	}

	return evicted, nil
}

// UsersOverCap returns the ids of users owning more than retentionCap datasets
func (r *DatasetRepository) UsersOverCap(ctx context.Context, retentionCap int) ([]uint, error) {
	var userIDs []uint
	err := r.db.WithContext(ctx).
		Model(&domain.Dataset{}).
		Select("user_id").
		Group("user_id").
		Having("COUNT(*) > ?", retentionCap).
		Order("user_id").
		Pluck("user_id", &userIDs).Error
	return userIDs, err
}

// ListByUser returns the user's datasets newest first
func (r *DatasetRepository) ListByUser(ctx context.Context, userID uint, limit int) ([]domain.Dataset, error) {
	var datasets []domain.Dataset
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("uploaded_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&datasets).Error
	return datasets, err
}

// CountByUser returns how many datasets the user owns
func (r *DatasetRepository) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Dataset{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	return count, err
}

// GetByIDForUser loads a dataset owned by userID. A dataset owned by someone
// else is indistinguishable from a missing one.
func (r *DatasetRepository) GetByIDForUser(ctx context.Context, id, userID uint) (*domain.Dataset, error) {
	var dataset domain.Dataset
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&dataset).Error
	if err != nil {
		return nil, err
	}
	return &dataset, nil
}

// GetWithRecordsForUser loads an owned dataset with its records ordered by equipment name
func (r *DatasetRepository) GetWithRecordsForUser(ctx context.Context, id, userID uint) (*domain.Dataset, error) {
	var dataset domain.Dataset
	err := r.db.WithContext(ctx).
		Preload("Records", func(db *gorm.DB) *gorm.DB {
			return db.Order("equipment_name ASC").Order("id ASC")
		}).
		Where("id = ? AND user_id = ?", id, userID).
		First(&dataset).Error
	if err != nil {
		return nil, err
	}
	return &dataset, nil
}

// DeleteForUser removes an owned dataset and its records. Returns the removed
// dataset, or gorm.ErrRecordNotFound when the user owns no such dataset.
func (r *DatasetRepository) DeleteForUser(ctx context.Context, id, userID uint) (*domain.Dataset, error) {
	var dataset domain.Dataset

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&dataset).Error; err != nil {
			return err
		}
		return deleteDatasets(tx, []uint{dataset.ID})
	})
	if err != nil {
		return nil, err
	}

	return &dataset, nil
}

// lockUser takes a row lock on the user so concurrent writers for the same
// user serialize. SQLite has no row locks; its single writer serializes instead.
func lockUser(tx *gorm.DB, userID uint) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	var user domain.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&user, "id = ?", userID).Error
	if err != nil {
		return fmt.Errorf("failed to lock user %d: %w", userID, err)
	}
	return nil
}

func enforceRetention(tx *gorm.DB, userID uint, retentionCap int) ([]domain.Dataset, error) {
	if retentionCap < 1 {
		retentionCap = domain.DefaultRetentionCap
	}

	var count int64
	if err := tx.Model(&domain.Dataset{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to count datasets: %w", err)
	}

	excess := int(count) - retentionCap
	if excess <= 0 {
		return nil, nil
	}

	var oldest []domain.Dataset
	err := tx.Where("user_id = ?", userID).
		Order("uploaded_at ASC").
		Order("id ASC").
		Limit(excess).
		Find(&oldest).Error
	if err != nil {
		return nil, fmt.Errorf("failed to select datasets for eviction: %w", err)
	}

	ids := make([]uint, len(oldest))
	for i, d := range oldest {
		ids[i] = d.ID
	}
	if err := deleteDatasets(tx, ids); err != nil {
		return nil, err
	}

	return oldest, nil
}

// deleteDatasets removes records before their datasets so the cascade holds
// even where the database does not enforce foreign keys
func deleteDatasets(tx *gorm.DB, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	if err := tx.Where("dataset_id IN ?", ids).Delete(&domain.EquipmentRecord{}).Error; err != nil {
		return fmt.Errorf("failed to delete equipment records: %w", err)
	}
	if err := tx.Where("id IN ?", ids).Delete(&domain.Dataset{}).Error; err != nil {
		return fmt.Errorf("failed to delete datasets: %w", err)
	}
	return nil
}
