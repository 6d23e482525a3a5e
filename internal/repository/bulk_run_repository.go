package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tunebridge/console/internal/models"
)

type BulkRunRepository interface {
	Create(ctx context.Context, run *models.BulkRun) error
	AddItem(ctx context.Context, item *models.BulkRunItem) error
	Complete(ctx context.Context, id uuid.UUID, succeeded, failed int) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.BulkRun, error)
	List(ctx context.Context, filter *models.BulkRunFilter) ([]models.BulkRun, int64, error)
}

type bulkRunRepository struct {
	db *gorm.DB
}

func NewBulkRunRepository(db *gorm.DB) BulkRunRepository {
	return &bulkRunRepository{db: db}
}

func (r *bulkRunRepository) Create(ctx context.Context, run *models.BulkRun) error {
	return r.db.WithContext(ctx).Omit("Items").Create(run).Error
}

func (r *bulkRunRepository) AddItem(ctx context.Context, item *models.BulkRunItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(item).Error; err != nil {
			return err
		}
		column := "succeeded"
		if item.Outcome == models.BulkItemFailed {
			column = "failed"
		}
		return tx.Model(&models.BulkRun{}).
			Where("id = ?", item.RunID).
			UpdateColumn(column, gorm.Expr(column+" + ?", 1)).Error
	})
}

func (r *bulkRunRepository) Complete(ctx context.Context, id uuid.UUID, succeeded, failed int) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.BulkRun{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"state":        models.BulkRunCompleted,
			"succeeded":    succeeded,
			"failed":       failed,
			"completed_at": &now,
		}).Error
}

func (r *bulkRunRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.BulkRun, error) {
	var run models.BulkRun
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		First(&run, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *bulkRunRepository) List(ctx context.Context, filter *models.BulkRunFilter) ([]models.BulkRun, int64, error) {
	var runs []models.BulkRun
	var total int64

	query := r.db.WithContext(ctx).Model(&models.BulkRun{})
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.OperatorID != "" {
		query = query.Where("operator_id = ?", filter.OperatorID)
	}
	if filter.State != "" {
		query = query.Where("state = ?", filter.State)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	err := query.
		Order("started_at DESC").
		Offset(offset).
		Limit(filter.Limit).
		Find(&runs).Error
	if err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}
